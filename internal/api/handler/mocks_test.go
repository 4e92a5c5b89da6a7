package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) result(args mock.Arguments) (*reservation.Reservation, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Reservation, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockReservationService) GetReservation(ctx context.Context, id, actorID string) (*reservation.Reservation, error) {
	return m.result(m.Called(ctx, id, actorID))
}

func (m *MockReservationService) GetUserReservations(ctx context.Context, holderID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, holderID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationService) MarkPickedUp(ctx context.Context, id, actorID string, actualStart *time.Time) (*reservation.Reservation, error) {
	return m.result(m.Called(ctx, id, actorID, actualStart))
}

func (m *MockReservationService) MarkReturned(ctx context.Context, id, actorID string, actualEnd *time.Time) (*reservation.Reservation, error) {
	return m.result(m.Called(ctx, id, actorID, actualEnd))
}

func (m *MockReservationService) ApproveReturn(ctx context.Context, id, actorID string, additionalCharges int64) (*reservation.Reservation, error) {
	return m.result(m.Called(ctx, id, actorID, additionalCharges))
}

func (m *MockReservationService) CancelReservation(ctx context.Context, id, actorID string) (*reservation.Reservation, error) {
	return m.result(m.Called(ctx, id, actorID))
}

// MockVehicleService はVehicleServiceInterfaceのモック
type MockVehicleService struct {
	mock.Mock
}

func (m *MockVehicleService) RegisterVehicle(ctx context.Context, input application.RegisterVehicleInput) (*vehicle.Vehicle, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vehicle.Vehicle), args.Error(1)
}

func (m *MockVehicleService) GetVehicle(ctx context.Context, id string) (*vehicle.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vehicle.Vehicle), args.Error(1)
}

func (m *MockVehicleService) ListVehicles(ctx context.Context, limit, offset int) ([]*vehicle.Vehicle, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vehicle.Vehicle), args.Error(1)
}
