package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLifecycleEvent(t *testing.T) {
	r := &Reservation{ID: "r-1", VehicleID: "v-1", HolderID: "u-1", Status: StatusConfirmed}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("JST", 9*60*60))

	ev := NewLifecycleEvent(r, at)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "r-1", ev.ReservationID)
	assert.Equal(t, StatusConfirmed, ev.NewState)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
	assert.Equal(t, "reservation-confirmed", ev.Name())
}

func TestNotifiers_FanOut(t *testing.T) {
	var got []string
	ns := Notifiers{
		NotifierFunc(func(_ context.Context, ev LifecycleEvent) { got = append(got, "a:"+ev.ReservationID) }),
		nil,
		NotifierFunc(func(_ context.Context, ev LifecycleEvent) { got = append(got, "b:"+ev.ReservationID) }),
	}

	ns.Notify(context.Background(), LifecycleEvent{ReservationID: "r-9"})

	assert.Equal(t, []string{"a:r-9", "b:r-9"}, got)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "reservation-return-approved", EventName(StatusReturnApproved))
	assert.Equal(t, "reservation-unknown", EventName(Status("X")))
}
