package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
)

// リトライ理由（メトリクスのラベルにも使う）
const (
	RetryReasonOverlapRace = "overlap_race"
	RetryReasonStorage     = "storage"
)

// RetryPolicy はストア書き込みの競合リトライ方針
// 重複競合は再確認で件数0（一時的な競合）のときだけ、ストレージ障害は常にリトライ対象
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	// Deadline はリトライ全体の上限時間（0 なら試行回数のみで制限）
	Deadline time.Duration
	// OnRetry は再試行の直前に呼ばれる
	OnRetry func(attempt int, reason string)
}

// DefaultRetryPolicy はデフォルトのリトライ方針を返す
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      true,
	}
}

// Execute は op を実行し、リトライ可能な失敗のときだけ再実行する
// recheck は重複競合のあとに現在の有効な重複件数を返す
func (p RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) error, recheck func(ctx context.Context) (int, error)) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	started := time.Now()

	var lastErr error
	lastReason := ""
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		switch {
		case reservation.IsConflict(err, reservation.ConflictOverlap):
			if recheck == nil {
				return &reservation.UnavailableError{Attempts: attempt}
			}
			blocking, rerr := recheck(ctx)
			switch {
			case rerr == nil && blocking > 0:
				// 本当に重複している。待っても解消しないので即座に失敗
				return &reservation.UnavailableError{Blocking: blocking, Attempts: attempt}
			case rerr == nil:
				lastReason = RetryReasonOverlapRace
			case errors.Is(rerr, reservation.ErrStorageUnavailable):
				lastReason = RetryReasonStorage
				err = rerr
			default:
				return fmt.Errorf("重複件数の再確認に失敗: %w", rerr)
			}
		case errors.Is(err, reservation.ErrStorageUnavailable):
			lastReason = RetryReasonStorage
		default:
			return err
		}
		lastErr = err

		if attempt >= maxAttempts {
			return p.exhausted(ctx, attempt, lastReason, lastErr, recheck)
		}
		delay := p.delay(attempt)
		if p.Deadline > 0 && time.Since(started)+delay > p.Deadline {
			return p.exhausted(ctx, attempt, lastReason, lastErr, recheck)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastReason)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				if lastReason == RetryReasonOverlapRace {
					return p.unavailable(context.WithoutCancel(ctx), attempt, recheck)
				}
				return fmt.Errorf("リトライを中断しました: %w", errors.Join(ctx.Err(), lastErr))
			case <-timer.C:
			}
		}
	}
}

func (p RetryPolicy) exhausted(ctx context.Context, attempts int, reason string, lastErr error, recheck func(ctx context.Context) (int, error)) error {
	if reason == RetryReasonOverlapRace {
		return p.unavailable(ctx, attempts, recheck)
	}
	return fmt.Errorf("リトライ上限に達しました (%d回): %w", attempts, lastErr)
}

// unavailable は重複競合で諦めたときのエラーを返す
// 最後にもう一度数え直し、競合相手が確定していればその件数を載せる
func (p RetryPolicy) unavailable(ctx context.Context, attempts int, recheck func(ctx context.Context) (int, error)) error {
	blocking, err := recheck(ctx)
	if err != nil {
		blocking = 0
	}
	return &reservation.UnavailableError{Blocking: blocking, Attempts: attempts}
}

// delay は attempt 回目の失敗後の待ち時間を返す
// BaseDelay * 2^(attempt-1) を MaxDelay で打ち切り、Jitter 有効時は [0, d] から選ぶ
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(rand.Int63n(int64(d) + 1))
	}
	return d
}
