package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
)

// HeaderEventName はイベント名を入れるメッセージヘッダー
const HeaderEventName = "event-name"

// Publisher は Producer の送信部分
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// Notifier はライフサイクル通知を JSON にして Kafka に送る
// キーは予約IDなので同じ予約の通知は順序が保たれる
type Notifier struct {
	pub     Publisher
	metrics *metrics.Metrics
}

// NewNotifier は Notifier を作成する
func NewNotifier(pub Publisher, m *metrics.Metrics) *Notifier {
	return &Notifier{pub: pub, metrics: m}
}

// Notify は reservation.Notifier を実装する
func (n *Notifier) Notify(ctx context.Context, ev reservation.LifecycleEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		n.metrics.IncDropped("kafka")
		logger.FromContext(ctx).Error("lifecycle event encode failed", zap.Error(err))
		return
	}
	err = n.pub.Publish([]byte(ev.ReservationID), body, kafka.Header{Key: HeaderEventName, Value: []byte(ev.Name())})
	if err != nil {
		n.metrics.IncDropped("kafka")
		logger.FromContext(ctx).Warn("lifecycle event publish failed",
			zap.String("reservation_id", ev.ReservationID),
			zap.String("event", ev.Name()),
			zap.Error(err))
	}
}

// DecodeEvent は Kafka メッセージからライフサイクル通知を復元する
func DecodeEvent(m kafka.Message) (reservation.LifecycleEvent, error) {
	var ev reservation.LifecycleEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

var _ reservation.Notifier = (*Notifier)(nil)
