package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LifecycleEvent は状態遷移の通知
type LifecycleEvent struct {
	EventID       string    `json:"event_id"`
	ReservationID string    `json:"reservation_id"`
	VehicleID     string    `json:"vehicle_id"`
	HolderID      string    `json:"holder_id"`
	NewState      Status    `json:"new_state"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLifecycleEvent は予約の現在状態から通知を作成する
func NewLifecycleEvent(r *Reservation, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		EventID:       uuid.NewString(),
		ReservationID: r.ID,
		VehicleID:     r.VehicleID,
		HolderID:      r.HolderID,
		NewState:      r.Status,
		Timestamp:     at.UTC(),
	}
}

// Name はイベント名（例: reservation-confirmed）を返す
func (e LifecycleEvent) Name() string {
	return EventName(e.NewState)
}

// EventName は状態に対応するイベント名を返す
func EventName(s Status) string {
	switch s {
	case StatusPending:
		return "reservation-pending"
	case StatusConfirmed:
		return "reservation-confirmed"
	case StatusPickedUp:
		return "reservation-picked-up"
	case StatusReturned:
		return "reservation-returned"
	case StatusReturnApproved:
		return "reservation-return-approved"
	case StatusCancelled:
		return "reservation-cancelled"
	default:
		return "reservation-unknown"
	}
}

// Notifier はライフサイクル通知の送り先
// 配送はベストエフォートで、失敗しても予約の書き込みには影響しない
// Notify はブロックしてはならない。送信に時間がかかる実装はバッファに積んで即座に戻る
type Notifier interface {
	Notify(ctx context.Context, ev LifecycleEvent)
}

// NotifierFunc は関数を Notifier として扱う
type NotifierFunc func(ctx context.Context, ev LifecycleEvent)

func (f NotifierFunc) Notify(ctx context.Context, ev LifecycleEvent) { f(ctx, ev) }

// Notifiers は複数の Notifier に順に配送する
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev LifecycleEvent) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}
