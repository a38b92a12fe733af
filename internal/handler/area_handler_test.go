package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/service"
)

type fakeAreaRepo struct {
	areas map[string]*models.Area
}

func newFakeAreaRepo() *fakeAreaRepo {
	return &fakeAreaRepo{areas: map[string]*models.Area{}}
}

func (f *fakeAreaRepo) FindByID(_ context.Context, id string) (*models.Area, error) {
	area, ok := f.areas[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *area
	return &copied, nil
}

func (f *fakeAreaRepo) List(_ context.Context, _ models.AreaFilter) ([]models.Area, int, error) {
	out := make([]models.Area, 0, len(f.areas))
	for _, a := range f.areas {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (f *fakeAreaRepo) Create(_ context.Context, area *models.Area) error {
	f.areas[area.ID] = area
	return nil
}

func (f *fakeAreaRepo) Update(_ context.Context, area *models.Area) error {
	f.areas[area.ID] = area
	return nil
}

func (f *fakeAreaRepo) SetState(_ context.Context, id string, state models.AreaState) error {
	f.areas[id].State = state
	return nil
}

func (f *fakeAreaRepo) ExistsByName(_ context.Context, name, excludeID string) (bool, error) {
	for id, a := range f.areas {
		if a.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func newAreaTestHandler(repo *fakeAreaRepo) *AreaHandler {
	return NewAreaHandler(service.NewAreaService(repo, nil, nil))
}

func TestAreaHandlerListReturnsPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeAreaRepo()
	repo.areas["area-1"] = &models.Area{ID: "area-1", Name: "Pool", Category: "sports", State: models.AreaAvailable}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/areas?page=1&limit=10", nil)

	newAreaTestHandler(repo).List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data       []models.Area      `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestAreaHandlerGetUnknownReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/areas/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	newAreaTestHandler(newFakeAreaRepo()).Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAreaHandlerSetStateRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/areas/area-1/state", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "area-1"}}

	newAreaTestHandler(newFakeAreaRepo()).SetState(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAreaHandlerSetStateRejectsUnknownState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeAreaRepo()
	repo.areas["area-1"] = &models.Area{ID: "area-1", Name: "Pool", State: models.AreaAvailable}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/areas/area-1/state", strings.NewReader(`{"state":"flying"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "area-1"}}

	newAreaTestHandler(repo).SetState(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
