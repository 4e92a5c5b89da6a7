package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
)

// HeaderIdempotencyKey は予約作成の冪等性キーを指定するヘッダー
const HeaderIdempotencyKey = "Idempotency-Key"

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type CreateReservationRequest struct {
	VehicleID      string    `json:"vehicle_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	StartAt        time.Time `json:"start_at" validate:"required" example:"2030-01-01T10:00:00Z"`
	EndAt          time.Time `json:"end_at" validate:"required" example:"2030-01-01T13:00:00Z"`
	IdempotencyKey string    `json:"idempotency_key,omitempty" validate:"max=255" example:"booking-2030-001"`
}

// TimestampRequest は pickup / return の実時刻（省略時はサーバー時刻）
type TimestampRequest struct {
	At *time.Time `json:"at,omitempty" example:"2030-01-01T10:05:00Z"`
}

type ApproveReturnRequest struct {
	AdditionalCharges int64 `json:"additional_charges" validate:"gte=0" example:"500"`
}

type ReservationResponse struct {
	ID                string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	VehicleID         string     `json:"vehicle_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	HolderID          string     `json:"holder_id" example:"user-123"`
	StartAt           time.Time  `json:"start_at"`
	EndAt             time.Time  `json:"end_at"`
	Status            string     `json:"status" example:"CONFIRMED"`
	IdempotencyKey    string     `json:"idempotency_key,omitempty" example:"booking-2030-001"`
	EstimatedCost     int64      `json:"estimated_cost" example:"4500"`
	FinalCost         *int64     `json:"final_cost,omitempty" example:"5000"`
	AdditionalCharges int64      `json:"additional_charges" example:"0"`
	ActualStart       *time.Time `json:"actual_start,omitempty"`
	ActualEnd         *time.Time `json:"actual_end,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID: r.ID, VehicleID: r.VehicleID, HolderID: r.HolderID,
		StartAt: r.Window.Start, EndAt: r.Window.End,
		Status: string(r.Status), IdempotencyKey: r.IdempotencyKey,
		EstimatedCost: r.EstimatedCost, FinalCost: r.FinalCost, AdditionalCharges: r.AdditionalCharges,
		ActualStart: r.ActualStart, ActualEnd: r.ActualEnd,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// Create godoc
// @Summary 予約を作成
// @Description 車両を期間指定で予約します。同じ冪等性キーの再送には既存の予約を返します
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param Idempotency-Key header string false "冪等性キー"
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "期間が他の予約と重複"
// @Failure 503 {object} api.ErrorResponse
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	key := req.IdempotencyKey
	if header := c.Request().Header.Get(HeaderIdempotencyKey); header != "" {
		if key != "" && key != header {
			return badRequest("Idempotency-Key ヘッダーと idempotency_key が一致しません")
		}
		key = header
	}

	r, err := h.service.CreateReservation(c.Request().Context(), application.CreateReservationInput{
		VehicleID: req.VehicleID, HolderID: userID,
		Start: req.StartAt, End: req.EndAt,
		IdempotencyKey: key,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// GetByID godoc
// @Summary 予約を取得
// @Description 予約者または車両所有者が予約を取得します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	r, err := h.service.GetReservation(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// GetUserReservations godoc
// @Summary ユーザーの予約一覧を取得
// @Description ログインユーザーの予約一覧を新しい順に取得します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /reservations [get]
func (h *ReservationHandler) GetUserReservations(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	reservations, err := h.service.GetUserReservations(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]ReservationResponse, len(reservations))
	for i, r := range reservations {
		resp[i] = toReservationResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

// Pickup godoc
// @Summary 車両の引き渡し
// @Description 予約者が車両を受け取ったことを記録します（CONFIRMED → PICKED_UP）
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Param request body TimestampRequest false "引き渡し時刻"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "この状態では操作できない"
// @Router /reservations/{id}/pickup [post]
func (h *ReservationHandler) Pickup(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	var req TimestampRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("無効なリクエスト")
	}
	r, err := h.service.MarkPickedUp(c.Request().Context(), c.Param("id"), userID, req.At)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Return godoc
// @Summary 車両の返却
// @Description 予約者が車両を返却したことを記録します（PICKED_UP → RETURNED）
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Param request body TimestampRequest false "返却時刻"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse "返却時刻が引き渡し時刻より前"
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/return [post]
func (h *ReservationHandler) Return(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	var req TimestampRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("無効なリクエスト")
	}
	r, err := h.service.MarkReturned(c.Request().Context(), c.Param("id"), userID, req.At)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// ApproveReturn godoc
// @Summary 返却の承認
// @Description 車両所有者が返却を承認し料金を確定します（RETURNED → RETURN_APPROVED）
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Param request body ApproveReturnRequest false "追加料金"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/approve-return [post]
func (h *ReservationHandler) ApproveReturn(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	var req ApproveReturnRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.service.ApproveReturn(c.Request().Context(), c.Param("id"), userID, req.AdditionalCharges)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 引き渡し前の予約をキャンセルし、期間を解放します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	r, err := h.service.CancelReservation(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}
