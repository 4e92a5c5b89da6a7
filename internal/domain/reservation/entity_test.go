package reservation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservation(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	window, err := NewWindow(start, start.Add(4*time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name        string
		vehicleID   string
		holderID    string
		window      Window
		errExpected error
	}{
		{name: "正常な予約作成", vehicleID: "vehicle-1", holderID: "user-1", window: window},
		{name: "車両ID未指定", vehicleID: "", holderID: "user-1", window: window, errExpected: ErrVehicleIDRequired},
		{name: "利用者ID未指定", vehicleID: "vehicle-1", holderID: "", window: window, errExpected: ErrHolderIDRequired},
		{name: "期間が空", vehicleID: "vehicle-1", holderID: "user-1", window: Window{}, errExpected: ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReservation(tt.vehicleID, tt.holderID, "idem-1", tt.window)
			err := r.Validate()
			if tt.errExpected != nil {
				assert.ErrorIs(t, err, tt.errExpected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPending, r.Status)
			assert.Equal(t, "idem-1", r.IdempotencyKey)
			assert.Empty(t, r.ID)
		})
	}
}

func TestReservation_IsActive(t *testing.T) {
	r := &Reservation{}
	for _, s := range AllStatuses {
		r.Status = s
		want := s == StatusConfirmed || s == StatusPickedUp
		assert.Equal(t, want, r.IsActive(), "status=%s", s)
	}
}

func TestReservation_Clone(t *testing.T) {
	cost := int64(1200)
	at := time.Now()
	r := &Reservation{ID: "r-1", FinalCost: &cost, ActualStart: &at}

	c := r.Clone()
	*c.FinalCost = 0
	*c.ActualStart = at.Add(time.Hour)

	assert.Equal(t, int64(1200), *r.FinalCost)
	assert.Equal(t, at, *r.ActualStart)
	assert.Nil(t, (*Reservation)(nil).Clone())
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("PICKED_UP")
	assert.True(t, ok)
	assert.Equal(t, StatusPickedUp, s)

	_, ok = ParseStatus("picked_up")
	assert.False(t, ok)
}

func TestErrors_Classification(t *testing.T) {
	unavailable := &UnavailableError{VehicleID: "v-1", Blocking: 2}
	assert.ErrorIs(t, unavailable, ErrResourceUnavailable)
	assert.NotErrorIs(t, unavailable, ErrInvalidTransition)
	assert.Contains(t, unavailable.Error(), "blocking=2")

	transition := &TransitionError{From: StatusCancelled, To: StatusPickedUp, Action: ActionPickup}
	assert.ErrorIs(t, transition, ErrInvalidTransition)
	assert.Contains(t, transition.Error(), "current=CANCELLED")

	conflict := &ConflictError{Kind: ConflictIdempotency, Err: errors.New("duplicate key")}
	wrapped := errors.Join(errors.New("context"), conflict)
	assert.True(t, IsConflict(wrapped, ConflictIdempotency))
	assert.False(t, IsConflict(wrapped, ConflictOverlap))
	assert.Equal(t, "stale", ConflictStale.String())
}
