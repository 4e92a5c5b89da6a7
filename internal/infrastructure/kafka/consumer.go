package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
)

// Handler は処理に成功したときだけ nil を返す。nil のときだけオフセットをコミットする
type Handler func(ctx context.Context, m kafka.Message) error

// MessageReader は kafka.Reader の受信部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer はコンシューマーグループとしてトピックを読み、Handler に渡す
type Consumer struct {
	r            MessageReader
	maxAttempts  int
	retryBackoff time.Duration
}

// NewReader は kafka.Reader を作成する（オフセットは手動コミット）
func NewReader(brokers []string, group, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// NewConsumer は Consumer を作成する
func NewConsumer(r MessageReader) *Consumer {
	return &Consumer{r: r, maxAttempts: 3, retryBackoff: 200 * time.Millisecond}
}

// Start は ctx が終わるまでメッセージを処理する
// Handler が maxAttempts 回失敗したメッセージはログに残して読み飛ばす
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if !c.handle(ctx, h, m) {
			return nil
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("offset commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handle は Handler を最大 maxAttempts 回実行する。ctx が終わったら false を返す
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		if attempt >= c.maxAttempts {
			logger.Error("message skipped after handler failures",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryBackoff):
		}
	}
}
