package application

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
	redislock "github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/redis"
)

// === Mock implementations ===

// MockReservationRepository implements reservation.Repository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Insert(ctx context.Context, r *reservation.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) FindByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) CountActiveOverlapping(ctx context.Context, vehicleID string, w reservation.Window) (int, error) {
	args := m.Called(ctx, vehicleID, w)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationRepository) FindByHolderAndKey(ctx context.Context, holderID, key string) (*reservation.Reservation, error) {
	args := m.Called(ctx, holderID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Update(ctx context.Context, r *reservation.Reservation, from reservation.Status) error {
	args := m.Called(ctx, r, from)
	return args.Error(0)
}

func (m *MockReservationRepository) ListByHolder(ctx context.Context, holderID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, holderID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListConfirmedStartingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

// MockVehicleRepository implements vehicle.Repository
type MockVehicleRepository struct {
	mock.Mock
}

func (m *MockVehicleRepository) Create(ctx context.Context, v *vehicle.Vehicle) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*vehicle.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vehicle.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) List(ctx context.Context, limit, offset int) ([]*vehicle.Vehicle, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vehicle.Vehicle), args.Error(1)
}

// MockLockManager implements redislock.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redislock.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redislock.Lock), args.Error(1)
}

func (m *MockLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (redislock.Lock, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryDelay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redislock.Lock), args.Error(1)
}

// MockLock implements redislock.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIdempotencyCache implements IdempotencyCache
type MockIdempotencyCache struct {
	mock.Mock
}

func (m *MockIdempotencyCache) Lookup(ctx context.Context, holderID, key string) (string, bool, error) {
	args := m.Called(ctx, holderID, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyCache) Remember(ctx context.Context, holderID, key, reservationID string) error {
	args := m.Called(ctx, holderID, key, reservationID)
	return args.Error(0)
}

func (m *MockIdempotencyCache) Forget(ctx context.Context, holderID, key string) error {
	args := m.Called(ctx, holderID, key)
	return args.Error(0)
}

// staticOwners は固定の所有者を返す OwnerLookup
type staticOwners map[string]string

func (o staticOwners) OwnerOf(ctx context.Context, vehicleID string) (string, error) {
	owner, ok := o[vehicleID]
	if !ok {
		return "", vehicle.ErrVehicleNotFound
	}
	return owner, nil
}

// recordingNotifier は受け取ったイベントを記録する
// バッファが一杯なら記録せずに dropped を数える
type recordingNotifier struct {
	events  chan reservation.LifecycleEvent
	dropped atomic.Int64
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(chan reservation.LifecycleEvent, 256)}
}

func (n *recordingNotifier) Notify(ctx context.Context, ev reservation.LifecycleEvent) {
	select {
	case n.events <- ev:
	default:
		n.dropped.Add(1)
	}
}

func (n *recordingNotifier) drain() []reservation.LifecycleEvent {
	var out []reservation.LifecycleEvent
	for {
		select {
		case ev := <-n.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}
