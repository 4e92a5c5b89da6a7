package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

func sampleVehicle() *vehicle.Vehicle {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &vehicle.Vehicle{
		ID:          "v-1",
		OwnerID:     "owner-1",
		Name:        "ホンダ フィット",
		PlateNumber: "品川 500 あ 12-34",
		HourlyRate:  1500,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newVehicleEcho(svc *MockVehicleService) *echo.Echo {
	e := NewTestEcho()
	h := NewVehicleHandler(svc)
	e.POST("/vehicles", h.Create)
	e.GET("/vehicles", h.List)
	e.GET("/vehicles/:id", h.GetByID)
	return e
}

func TestVehicleHandler_Create(t *testing.T) {
	body := `{"name": "ホンダ フィット", "plate_number": "品川 500 あ 12-34", "hourly_rate": 1500}`
	owner := map[string]string{"X-User-ID": "owner-1"}

	t.Run("操作者を所有者として登録する", func(t *testing.T) {
		svc := new(MockVehicleService)
		svc.On("RegisterVehicle", mock.Anything, application.RegisterVehicleInput{
			OwnerID: "owner-1", Name: "ホンダ フィット", PlateNumber: "品川 500 あ 12-34", HourlyRate: 1500,
		}).Return(sampleVehicle(), nil)

		rec := serve(newVehicleEcho(svc), http.MethodPost, "/vehicles", body, owner)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp VehicleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "v-1", resp.ID)
		assert.Equal(t, "owner-1", resp.OwnerID)
		assert.Equal(t, "2030-01-01T00:00:00Z", resp.CreatedAt)
		svc.AssertExpectations(t)
	})

	t.Run("ユーザーIDなしは401", func(t *testing.T) {
		rec := serve(newVehicleEcho(new(MockVehicleService)), http.MethodPost, "/vehicles", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("必須項目がなければ400", func(t *testing.T) {
		rec := serve(newVehicleEcho(new(MockVehicleService)), http.MethodPost, "/vehicles", `{"hourly_rate": 100}`, owner)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ナンバー重複は409", func(t *testing.T) {
		svc := new(MockVehicleService)
		svc.On("RegisterVehicle", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("車両登録に失敗しました: %w", vehicle.ErrPlateNumberDuplicated))

		rec := serve(newVehicleEcho(svc), http.MethodPost, "/vehicles", body, owner)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("ドメインの検証エラーは400", func(t *testing.T) {
		svc := new(MockVehicleService)
		svc.On("RegisterVehicle", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("バリデーションエラー: %w", vehicle.ErrInvalidHourlyRate))

		rec := serve(newVehicleEcho(svc), http.MethodPost, "/vehicles", body, owner)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVehicleHandler_GetByID(t *testing.T) {
	t.Run("車両を取得できる", func(t *testing.T) {
		svc := new(MockVehicleService)
		svc.On("GetVehicle", mock.Anything, "v-1").Return(sampleVehicle(), nil)

		rec := serve(newVehicleEcho(svc), http.MethodGet, "/vehicles/v-1", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("存在しない車両は404", func(t *testing.T) {
		svc := new(MockVehicleService)
		svc.On("GetVehicle", mock.Anything, "missing").Return(nil, vehicle.ErrVehicleNotFound)

		rec := serve(newVehicleEcho(svc), http.MethodGet, "/vehicles/missing", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestVehicleHandler_List(t *testing.T) {
	svc := new(MockVehicleService)
	svc.On("ListVehicles", mock.Anything, 0, 0).Return([]*vehicle.Vehicle{sampleVehicle()}, nil)

	rec := serve(newVehicleEcho(svc), http.MethodGet, "/vehicles", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []VehicleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
	svc.AssertExpectations(t)
}
