package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
)

// ErrProducerClosed は Close 後に Publish されたことを表す
var ErrProducerClosed = errors.New("producer は停止済みです")

// ErrBufferFull は送信バッファが一杯であることを表す
var ErrBufferFull = errors.New("producer の送信バッファが一杯です")

// MessageWriter は kafka.Writer の送信部分
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer はメッセージをバッファに積み、バックグラウンドで Kafka に書き込む
// Publish は呼び出し元をブロックしない
type Producer struct {
	w            MessageWriter
	inbox        chan kafka.Message
	writeTimeout time.Duration
	maxBatch     int

	mu      sync.RWMutex
	closed  bool
	closeCh chan struct{}
}

// NewWriter は非同期の kafka.Writer を作成する。キーが同じメッセージは同じパーティションに入る
// 送信結果は Completion で受け取り、失敗した件数を通知の破棄として数える
func NewWriter(brokers []string, topic string, m *metrics.Metrics) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   completion(m),
	}
}

func completion(m *metrics.Metrics) func(msgs []kafka.Message, err error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		for range msgs {
			m.IncDropped("kafka")
		}
		logger.Error("kafka async write failed",
			zap.Int("messages", len(msgs)),
			zap.Error(err))
	}
}

// NewProducer は Producer を作成する
func NewProducer(w MessageWriter, buf int) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		w:            w,
		inbox:        make(chan kafka.Message, buf),
		writeTimeout: 5 * time.Second,
		maxBatch:     100,
		closeCh:      make(chan struct{}),
	}
}

// Start は送信ループを開始する。ctx が終わるか Close されると残りを送って停止する
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.shutdown()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(p.collect(m))
			}
		}
	}()
}

// Publish はメッセージを送信バッファに積む
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close はバッファを閉じる。送信ループは残りを送ってから終了する
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed は送信ループの終了を待つ
func (p *Producer) WaitClosed() { <-p.closeCh }

func (p *Producer) shutdown() {
	p.Close()
	for m := range p.inbox {
		p.write(p.collect(m))
	}
	p.closeWriter()
}

// collect は first に続いて inbox に溜まっているメッセージを maxBatch 件までまとめる
func (p *Producer) collect(first kafka.Message) []kafka.Message {
	batch := []kafka.Message{first}
	for len(batch) < p.maxBatch {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				return batch
			}
			batch = append(batch, m)
		default:
			return batch
		}
	}
	return batch
}

func (p *Producer) write(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, batch...); err != nil {
		logger.Error("kafka write failed",
			zap.Int("messages", len(batch)),
			zap.Error(err))
	}
}

func (p *Producer) closeWriter() {
	if err := p.w.Close(); err != nil {
		logger.Warn("kafka writer close failed", zap.Error(err))
	}
}
