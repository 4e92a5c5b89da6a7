package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/broker"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
)

const defaultHeartbeat = 15 * time.Second

// EventStreamHandler はライフサイクル通知を Server-Sent Events で配信する
// 車両単位の購読は車両所有者だけに許可する
type EventStreamHandler struct {
	subscriber EventSubscriber
	owners     application.OwnerLookup
	heartbeat  time.Duration
}

func NewEventStreamHandler(s EventSubscriber, owners application.OwnerLookup) *EventStreamHandler {
	return &EventStreamHandler{subscriber: s, owners: owners, heartbeat: defaultHeartbeat}
}

// Stream godoc
// @Summary 予約の状態変化を購読
// @Description vehicle_id を指定すると所有車両、省略すると自分の予約の通知を SSE で受け取ります
// @Tags reservations
// @Produce text/event-stream
// @Param X-User-ID header string true "ユーザーID"
// @Param vehicle_id query string false "車両ID"
// @Success 200 {string} string "event stream"
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse "車両の所有者ではない"
// @Router /reservations/events [get]
func (h *EventStreamHandler) Stream(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	filter := broker.HolderFilter(userID)
	if vehicleID := c.QueryParam("vehicle_id"); vehicleID != "" {
		if err := h.requireOwner(c, vehicleID, userID); err != nil {
			return err
		}
		filter = broker.VehicleFilter(vehicleID)
	}

	events, unsubscribe := h.subscriber.Subscribe(filter)
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx := c.Request().Context()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(res, ev); err != nil {
				logger.FromContext(ctx).Debug("event stream closed", zap.Error(err))
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func (h *EventStreamHandler) requireOwner(c echo.Context, vehicleID, userID string) error {
	if h.owners == nil {
		return toHTTPError(reservation.ErrForbidden)
	}
	owner, err := h.owners.OwnerOf(c.Request().Context(), vehicleID)
	if err != nil {
		if errors.Is(err, vehicle.ErrVehicleNotFound) {
			return toHTTPError(reservation.ErrForbidden)
		}
		return toHTTPError(err)
	}
	if owner != userID {
		return toHTTPError(reservation.ErrForbidden)
	}
	return nil
}

func writeEvent(res *echo.Response, ev reservation.LifecycleEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "id: %s\nevent: %s\ndata: %s\n\n", ev.EventID, ev.Name(), data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
