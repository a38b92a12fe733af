package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
)

func sampleReservation() *models.Reservation {
	return &models.Reservation{
		ID:              "r1",
		Code:            "RES-20260905-0001",
		AreaID:          "a1",
		UserID:          "u1",
		Date:            time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		StartTime:       "18:00",
		EndTime:         "21:00",
		DurationMinutes: 180,
		GuestCount:      40,
		BaseCost:        210000,
		DepositAmount:   100000,
		TotalCost:       310000,
		State:           models.ReservationPending,
	}
}

func TestCreateBooked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM areas WHERE id = $1 FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations WHERE area_id = $1 AND date = $2 AND state = ANY($3) AND NOT (end_time <= $4 OR start_time >= $5)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateBooked(context.Background(), sampleReservation())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookedConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM areas WHERE id = $1 FOR UPDATE")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations WHERE area_id = $1 AND date = $2 AND state = ANY($3) AND NOT (end_time <= $4 OR start_time >= $5)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.CreateBooked(context.Background(), sampleReservation())
	require.ErrorIs(t, err, ErrSlotConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRating(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET rating = $2, rated_at = $3, updated_at = $3 WHERE id = $1")).
		WithArgs("r1", 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE areas SET rating_average = (rating_average * rating_count + $2) / (rating_count + 1), rating_count = rating_count + 1, updated_at = $3 WHERE id = $1")).
		WithArgs("a1", 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetRating(context.Background(), "r1", "a1", 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBlockingByAreaDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "area_id", "user_id", "date", "start_time", "end_time", "duration_minutes", "guest_count", "state", "created_at", "updated_at"}).
		AddRow("r1", "RES-20260905-0001", "a1", "u1", now, "10:00", "12:00", 120, 5, string(models.ReservationConfirmed), now, now)
	mock.ExpectQuery("SELECT (.+) FROM reservations WHERE area_id = \\$1 AND date = \\$2 AND state = ANY\\(\\$3\\) ORDER BY start_time").
		WillReturnRows(rows)

	reservations, err := repo.FindBlockingByAreaDate(context.Background(), "a1", now)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, "10:00", reservations[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}
