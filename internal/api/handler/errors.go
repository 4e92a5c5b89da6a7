package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

// StatusClientClosedRequest はクライアントが切断して処理を打ち切ったことを表す
const StatusClientClosedRequest = 499

// toHTTPError はサービスのエラーをHTTPエラーに変換する
func toHTTPError(err error) *echo.HTTPError {
	var (
		unavailable *reservation.UnavailableError
		transition  *reservation.TransitionError
	)
	switch {
	case errors.As(err, &unavailable):
		return api.NewHTTPError(http.StatusConflict, api.ErrorResponse{
			Error:    reservation.ErrResourceUnavailable.Error(),
			Blocking: unavailable.Blocking,
		})
	case errors.As(err, &transition):
		return api.NewHTTPError(http.StatusConflict, api.ErrorResponse{
			Error:          reservation.ErrInvalidTransition.Error(),
			CurrentState:   string(transition.From),
			RequestedState: string(transition.To),
		})
	case reservation.IsConflict(err, reservation.ConflictIdempotency),
		errors.Is(err, vehicle.ErrPlateNumberDuplicated):
		return api.NewHTTPError(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, reservation.ErrForbidden):
		return api.NewHTTPError(http.StatusForbidden, api.ErrorResponse{Error: reservation.ErrForbidden.Error()})
	case errors.Is(err, reservation.ErrReservationNotFound),
		errors.Is(err, vehicle.ErrVehicleNotFound):
		return api.NewHTTPError(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, reservation.ErrStorageUnavailable):
		return api.NewHTTPError(http.StatusServiceUnavailable, api.ErrorResponse{Error: reservation.ErrStorageUnavailable.Error()})
	case errors.Is(err, context.Canceled):
		return api.NewHTTPError(StatusClientClosedRequest, api.ErrorResponse{Error: context.Canceled.Error()})
	case isBadRequest(err):
		return api.NewHTTPError(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}

func isBadRequest(err error) bool {
	for _, target := range []error{
		reservation.ErrInvalidWindow,
		reservation.ErrVehicleIDRequired,
		reservation.ErrHolderIDRequired,
		reservation.ErrInvalidCharges,
		reservation.ErrUnknownAction,
		vehicle.ErrOwnerIDRequired,
		vehicle.ErrVehicleNameRequired,
		vehicle.ErrPlateNumberRequired,
		vehicle.ErrInvalidHourlyRate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// actorID は操作者IDを返す。無ければ401
func actorID(c echo.Context) (string, error) {
	id := c.Request().Header.Get(middleware.HeaderUserID)
	if id == "" {
		return "", api.NewHTTPError(http.StatusUnauthorized, api.ErrorResponse{Error: "ユーザーIDが必要です"})
	}
	return id, nil
}

func badRequest(msg string) *echo.HTTPError {
	return api.NewHTTPError(http.StatusBadRequest, api.ErrorResponse{Error: msg})
}
