package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
)

// NoShowCanceller は引き渡しされないまま開始時刻を過ぎた予約をキャンセルする
type NoShowCanceller interface {
	CancelNoShows(ctx context.Context, grace time.Duration) (int, error)
}

// NoShowSweeper は未引き渡し予約を定期的にキャンセルするワーカー
// 開始から grace を過ぎた CONFIRMED の予約が対象で、キャンセルすると期間は他の予約に開放される
type NoShowSweeper struct {
	reservationService NoShowCanceller
	interval           time.Duration
	grace              time.Duration
	stopCh             chan struct{}
	doneCh             chan struct{}
	stopOnce           sync.Once
}

// NewNoShowSweeper は新しいスイーパーを作成
func NewNoShowSweeper(rs NoShowCanceller, interval, grace time.Duration) *NoShowSweeper {
	return &NoShowSweeper{
		reservationService: rs,
		interval:           interval,
		grace:              grace,
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
}

// Start はスイーパーを開始。ctx のキャンセルか Stop で終了する
func (s *NoShowSweeper) Start(ctx context.Context) {
	logger.Info("未引き渡し予約スイーパー開始",
		zap.Duration("interval", s.interval),
		zap.Duration("grace", s.grace),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("未引き渡し予約スイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("未引き渡し予約スイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、終了を待つ
func (s *NoShowSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// sweep は未引き渡し予約をキャンセル
func (s *NoShowSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("未引き渡し予約の確認開始")

	count, err := s.reservationService.CancelNoShows(ctx, s.grace)
	if err != nil {
		log.Error("未引き渡し予約のキャンセル失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("未引き渡し予約をキャンセル", zap.Int("count", count))
	} else {
		log.Debug("未引き渡し予約なし")
	}
}
