package broker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
)

const defaultBufferSize = 64

// Filter は購読者が受け取るイベントを絞り込む（nil なら全件）
type Filter func(ev reservation.LifecycleEvent) bool

// HolderFilter は指定した利用者の予約イベントだけを通す
func HolderFilter(holderID string) Filter {
	return func(ev reservation.LifecycleEvent) bool { return ev.HolderID == holderID }
}

// VehicleFilter は指定した車両の予約イベントだけを通す
func VehicleFilter(vehicleID string) Filter {
	return func(ev reservation.LifecycleEvent) bool { return ev.VehicleID == vehicleID }
}

type subscriber struct {
	ch     chan reservation.LifecycleEvent
	filter Filter
}

// Broker はライフサイクル通知をプロセス内の購読者へ配る
// 送信はブロックしない。バッファが一杯の購読者への通知は破棄する
type Broker struct {
	mu         sync.RWMutex
	subs       map[uint64]*subscriber
	nextID     uint64
	bufferSize int
	closed     bool
	metrics    *metrics.Metrics
}

// New は Broker を作成する
func New(bufferSize int, m *metrics.Metrics) *Broker {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Broker{
		subs:       make(map[uint64]*subscriber),
		bufferSize: bufferSize,
		metrics:    m,
	}
}

// Subscribe は購読を開始し、受信チャネルと解除関数を返す
// 解除関数を呼ぶとチャネルは閉じられる（複数回呼んでもよい）
func (b *Broker) Subscribe(filter Filter) (<-chan reservation.LifecycleEvent, func()) {
	ch := make(chan reservation.LifecycleEvent, b.bufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Notify は reservation.Notifier を実装する
func (b *Broker) Notify(ctx context.Context, ev reservation.LifecycleEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.metrics.IncDropped("broker")
			logger.FromContext(ctx).Warn("subscriber buffer full, event dropped",
				zap.String("reservation_id", ev.ReservationID),
				zap.String("event", ev.Name()))
		}
	}
}

// SubscriberCount は現在の購読者数を返す
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close は全購読者のチャネルを閉じる。以後の Subscribe は閉じたチャネルを返す
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
}

var _ reservation.Notifier = (*Broker)(nil)
