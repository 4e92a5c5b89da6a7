package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

type VehicleHandler struct {
	vehicleService VehicleServiceInterface
}

func NewVehicleHandler(vehicleService VehicleServiceInterface) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

type RegisterVehicleRequest struct {
	Name        string `json:"name" validate:"required" example:"ホンダ フィット"`
	PlateNumber string `json:"plate_number" validate:"required" example:"品川 500 あ 12-34"`
	HourlyRate  int64  `json:"hourly_rate" validate:"gte=0" example:"1500"`
}

type VehicleResponse struct {
	ID          string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	OwnerID     string `json:"owner_id" example:"owner-123"`
	Name        string `json:"name" example:"ホンダ フィット"`
	PlateNumber string `json:"plate_number" example:"品川 500 あ 12-34"`
	HourlyRate  int64  `json:"hourly_rate" example:"1500"`
	CreatedAt   string `json:"created_at" example:"2030-01-01T10:00:00Z"`
	UpdatedAt   string `json:"updated_at" example:"2030-01-01T10:00:00Z"`
}

func toVehicleResponse(v *vehicle.Vehicle) *VehicleResponse {
	return &VehicleResponse{
		ID:          v.ID,
		OwnerID:     v.OwnerID,
		Name:        v.Name,
		PlateNumber: v.PlateNumber,
		HourlyRate:  v.HourlyRate,
		CreatedAt:   v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   v.UpdatedAt.Format(time.RFC3339),
	}
}

// Create godoc
// @Summary 車両を登録
// @Description 操作者を所有者として車両を登録します
// @Tags vehicles
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body RegisterVehicleRequest true "車両情報"
// @Success 201 {object} VehicleResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "ナンバー重複"
// @Router /vehicles [post]
func (h *VehicleHandler) Create(c echo.Context) error {
	ownerID, err := actorID(c)
	if err != nil {
		return err
	}
	var req RegisterVehicleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	v, err := h.vehicleService.RegisterVehicle(c.Request().Context(), application.RegisterVehicleInput{
		OwnerID:     ownerID,
		Name:        req.Name,
		PlateNumber: req.PlateNumber,
		HourlyRate:  req.HourlyRate,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toVehicleResponse(v))
}

// GetByID godoc
// @Summary 車両を取得
// @Tags vehicles
// @Produce json
// @Param id path string true "車両ID"
// @Success 200 {object} VehicleResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /vehicles/{id} [get]
func (h *VehicleHandler) GetByID(c echo.Context) error {
	v, err := h.vehicleService.GetVehicle(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toVehicleResponse(v))
}

// List godoc
// @Summary 車両一覧を取得
// @Tags vehicles
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} VehicleResponse
// @Router /vehicles [get]
func (h *VehicleHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	vehicles, err := h.vehicleService.ListVehicles(c.Request().Context(), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}

	response := make([]*VehicleResponse, len(vehicles))
	for i, v := range vehicles {
		response[i] = toVehicleResponse(v)
	}
	return c.JSON(http.StatusOK, response)
}
