package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/broker"
)

// VehicleServiceInterface は車両サービスのインターフェース
type VehicleServiceInterface interface {
	RegisterVehicle(ctx context.Context, input application.RegisterVehicleInput) (*vehicle.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (*vehicle.Vehicle, error)
	ListVehicles(ctx context.Context, limit, offset int) ([]*vehicle.Vehicle, error)
}

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Reservation, error)
	GetReservation(ctx context.Context, id, actorID string) (*reservation.Reservation, error)
	GetUserReservations(ctx context.Context, holderID string, limit, offset int) ([]*reservation.Reservation, error)
	MarkPickedUp(ctx context.Context, id, actorID string, actualStart *time.Time) (*reservation.Reservation, error)
	MarkReturned(ctx context.Context, id, actorID string, actualEnd *time.Time) (*reservation.Reservation, error)
	ApproveReturn(ctx context.Context, id, actorID string, additionalCharges int64) (*reservation.Reservation, error)
	CancelReservation(ctx context.Context, id, actorID string) (*reservation.Reservation, error)
}

// EventSubscriber はライフサイクル通知の購読元
type EventSubscriber interface {
	Subscribe(filter broker.Filter) (<-chan reservation.LifecycleEvent, func())
}
