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

func TestExistsChargeForPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM charges WHERE unit_id = $1 AND concept_id = $2 AND period = $3 AND state <> 'cancelled'")).
		WithArgs("unit1", "concept1", "2026-08").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsChargeForPeriod(context.Background(), "unit1", "concept1", "2026-08")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPaymentMovesChargeToPaid(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	chargeRows := sqlmock.NewRows([]string{"id", "unit_id", "concept_id", "period", "amount", "paid_amount", "due_date", "state", "description", "last_interest_period", "created_at", "updated_at"}).
		AddRow("c1", "unit1", "concept1", "2026-08", 350.0, 200.0, now, string(models.ChargePartial), "", "", now, now)
	mock.ExpectQuery("SELECT (.+) FROM charges WHERE id = \\$1 FOR UPDATE").
		WithArgs("c1").
		WillReturnRows(chargeRows)
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE charges SET paid_amount = $2, state = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("c1", 350.0, string(models.ChargePaid), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	charge, err := repo.ApplyPayment(context.Background(), &models.Payment{
		ChargeID: "c1",
		UserID:   "u1",
		Amount:   150,
		Method:   "transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChargePaid, charge.State)
	assert.Equal(t, 350.0, charge.PaidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyInterestSkipsAlreadyStampedPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE charges SET amount = amount + $2, last_interest_period = $3, updated_at = $4 WHERE id = $1 AND (last_interest_period IS NULL OR last_interest_period <> $3)")).
		WithArgs("c1", 7.0, "2026-08", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyInterest(context.Background(), "c1", 7.0, "2026-08")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBillingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE charges SET state = 'overdue', updated_at = $1 WHERE state IN ('pending','partial') AND due_date < $1")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.MarkOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
