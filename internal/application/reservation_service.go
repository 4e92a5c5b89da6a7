package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	redislock "github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
)

const (
	defaultListLimit  = 20
	maxListLimit      = 100
	noShowSweepBatch  = 100
	defaultNoShowWait = 2 * time.Hour
	// defaultNotifyTimeout を過ぎた通知は待たない
	defaultNotifyTimeout = 100 * time.Millisecond
)

// LockOptions は車両ロックの取得設定
type LockOptions struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// DefaultLockOptions はデフォルトのロック設定を返す
func DefaultLockOptions() LockOptions {
	return LockOptions{TTL: 10 * time.Second, Retries: 3, RetryDelay: 100 * time.Millisecond}
}

type ReservationService struct {
	store       reservation.Repository
	resolver    *IdempotencyResolver
	authorizer  Authorizer
	pricer      Pricer
	notifier    reservation.Notifier
	lockManager redislock.LockManagerInterface
	lockOpts    LockOptions
	retry       RetryPolicy
	metrics     *metrics.Metrics
	cache       IdempotencyCache
	now         func() time.Time

	notifyTimeout time.Duration
}

// Option は ReservationService の設定を変更する
type Option func(*ReservationService)

func WithAuthorizer(a Authorizer) Option {
	return func(s *ReservationService) { s.authorizer = a }
}

func WithPricer(p Pricer) Option {
	return func(s *ReservationService) { s.pricer = p }
}

func WithNotifier(n reservation.Notifier) Option {
	return func(s *ReservationService) { s.notifier = n }
}

// WithNotifyTimeout は通知1件を待つ上限を設定する
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *ReservationService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func WithLockManager(lm redislock.LockManagerInterface, opts LockOptions) Option {
	return func(s *ReservationService) {
		s.lockManager = lm
		s.lockOpts = opts
	}
}

func WithIdempotencyCache(c IdempotencyCache) Option {
	return func(s *ReservationService) { s.cache = c }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *ReservationService) { s.retry = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ReservationService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

func NewReservationService(store reservation.Repository, opts ...Option) *ReservationService {
	s := &ReservationService{
		store:      store,
		authorizer: NewOwnershipAuthorizer(nil),
		lockOpts:   DefaultLockOptions(),
		retry:      DefaultRetryPolicy(),
		now:        time.Now,

		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewIdempotencyResolver(store, s.cache)

	onRetry := s.retry.OnRetry
	s.retry.OnRetry = func(attempt int, reason string) {
		s.metrics.IncRetry(reason)
		logger.Debug("retrying reservation write", zap.Int("attempt", attempt), zap.String("reason", reason))
		if onRetry != nil {
			onRetry(attempt, reason)
		}
	}
	return s
}

type CreateReservationInput struct {
	VehicleID      string
	HolderID       string
	Start          time.Time
	End            time.Time
	IdempotencyKey string
}

// CreateReservation は予約を作成し CONFIRMED で保存する
// 同じ (利用者, 冪等性キー) の再送には既存の予約をそのまま返す
func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*reservation.Reservation, error) {
	log := logger.FromContext(ctx)

	window, err := reservation.NewWindow(input.Start, input.End)
	if err != nil {
		s.metrics.IncReservation("invalid")
		return nil, err
	}
	res := reservation.NewReservation(input.VehicleID, input.HolderID, input.IdempotencyKey, window)
	if err := res.Validate(); err != nil {
		s.metrics.IncReservation("invalid")
		return nil, err
	}

	// 冪等性チェック
	existing, ok, err := s.resolver.Resolve(ctx, input.HolderID, input.IdempotencyKey)
	if err != nil {
		s.metrics.IncReservation("error")
		return nil, err
	}
	if ok {
		s.metrics.IncReservation("idempotent_replay")
		log.Info("idempotent replay", zap.String("reservation_id", existing.ID), zap.String("holder_id", existing.HolderID))
		return existing, nil
	}

	if s.pricer != nil {
		cost, err := s.pricer.Estimate(ctx, res.VehicleID, window)
		if err != nil {
			s.metrics.IncReservation("error")
			return nil, fmt.Errorf("料金の見積もりに失敗: %w", err)
		}
		res.EstimatedCost = cost
	}

	next, err := reservation.Next(res.Status, reservation.ActionAdmit)
	if err != nil {
		return nil, err
	}
	res.Status = next
	now := s.now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now

	// 通知はロック解放後に行う
	if err := s.insertLocked(ctx, res); err != nil {
		if winner, ok := s.replayWinner(ctx, input, err); ok {
			return winner, nil
		}
		return nil, s.createFailed(ctx, res, err)
	}

	s.metrics.IncReservation("confirmed")
	s.resolver.Remember(ctx, res)
	log.Info("reservation confirmed",
		zap.String("reservation_id", res.ID),
		zap.String("vehicle_id", res.VehicleID),
		zap.String("holder_id", res.HolderID),
		zap.Stringer("window", res.Window),
	)
	s.emit(ctx, res)
	return res, nil
}

// insertLocked は車両ロックの中で予約を挿入する
func (s *ReservationService) insertLocked(ctx context.Context, res *reservation.Reservation) error {
	unlock := s.lockVehicle(ctx, res.VehicleID)
	defer unlock()

	// 送信済みの書き込みはリクエストが中断されても取り消さない
	writeCtx := context.WithoutCancel(ctx)
	return s.retry.Execute(ctx,
		func(context.Context) error { return s.store.Insert(writeCtx, res) },
		func(context.Context) (int, error) {
			return s.store.CountActiveOverlapping(writeCtx, res.VehicleID, res.Window)
		},
	)
}

// replayWinner は同じ冪等性キーの同時リクエストに負けたとき、勝った予約を返す
// 一意制約違反だけでなく、重複制約が先に検出された場合も再読込する
func (s *ReservationService) replayWinner(ctx context.Context, input CreateReservationInput, err error) (*reservation.Reservation, bool) {
	if input.IdempotencyKey == "" {
		return nil, false
	}
	if !reservation.IsConflict(err, reservation.ConflictIdempotency) && !errors.Is(err, reservation.ErrResourceUnavailable) {
		return nil, false
	}
	winner, ferr := s.store.FindByHolderAndKey(context.WithoutCancel(ctx), input.HolderID, input.IdempotencyKey)
	if ferr != nil {
		return nil, false
	}
	s.metrics.IncReservation("idempotent_replay")
	s.resolver.Remember(ctx, winner)
	logger.FromContext(ctx).Info("idempotent replay after conflict", zap.String("reservation_id", winner.ID))
	return winner, true
}

// createFailed は挿入失敗を呼び出し元向けのエラーに変換する
func (s *ReservationService) createFailed(ctx context.Context, res *reservation.Reservation, err error) error {
	log := logger.FromContext(ctx)

	var unavailable *reservation.UnavailableError
	isUnavailable := errors.As(err, &unavailable)
	if isUnavailable {
		unavailable.VehicleID = res.VehicleID
		unavailable.Window = res.Window
	}

	s.metrics.IncReservation(outcomeOf(err, isUnavailable))
	switch {
	case isUnavailable:
		log.Info("reservation rejected: vehicle unavailable",
			zap.String("vehicle_id", res.VehicleID),
			zap.Int("blocking", unavailable.Blocking),
			zap.Int("attempts", unavailable.Attempts),
		)
		return unavailable
	case reservation.IsConflict(err, reservation.ConflictIdempotency):
		return fmt.Errorf("冪等性キーが競合しました: %w", err)
	case errors.Is(err, context.Canceled), errors.Is(err, reservation.ErrStorageUnavailable):
		log.Warn("reservation not created", zap.String("vehicle_id", res.VehicleID), zap.Error(err))
		return fmt.Errorf("予約の作成に失敗: %w", err)
	default:
		log.Error("failed to insert reservation", zap.String("vehicle_id", res.VehicleID), zap.Error(err))
		return fmt.Errorf("予約の作成に失敗: %w", err)
	}
}

func outcomeOf(err error, unavailable bool) string {
	switch {
	case unavailable:
		return "unavailable"
	case errors.Is(err, reservation.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// TransitionOptions は操作ごとの追加入力
type TransitionOptions struct {
	// At は pickup / return の実時刻（nil なら現在時刻）
	At *time.Time
	// AdditionalCharges は approve_return 時の追加料金
	AdditionalCharges int64
}

// Transition は予約に操作を適用する
// 読み込み → 権限確認 → 遷移判定 → 条件付き更新 → 通知 の順に処理する
func (s *ReservationService) Transition(ctx context.Context, id string, action reservation.Action, actorID string, opts TransitionOptions) (*reservation.Reservation, error) {
	res, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.metrics.IncTransition(string(action), "error")
		return nil, err
	}
	if err := s.authorizer.AuthorizeTransition(ctx, res, action, actorID); err != nil {
		s.metrics.IncTransition(string(action), "forbidden")
		return nil, err
	}
	return s.apply(ctx, res, action, opts)
}

func (s *ReservationService) apply(ctx context.Context, res *reservation.Reservation, action reservation.Action, opts TransitionOptions) (*reservation.Reservation, error) {
	log := logger.FromContext(ctx)

	from := res.Status
	to, err := reservation.Next(from, action)
	if err != nil {
		s.metrics.IncTransition(string(action), "rejected")
		return nil, err
	}

	updated := res.Clone()
	updated.Status = to
	now := s.now().UTC()
	at := now
	if opts.At != nil {
		at = opts.At.UTC()
	}

	switch action {
	case reservation.ActionPickup:
		updated.ActualStart = &at
	case reservation.ActionReturn:
		if updated.ActualStart != nil && !at.After(*updated.ActualStart) {
			s.metrics.IncTransition(string(action), "rejected")
			return nil, reservation.ErrInvalidWindow
		}
		updated.ActualEnd = &at
	case reservation.ActionApproveReturn:
		if opts.AdditionalCharges < 0 {
			s.metrics.IncTransition(string(action), "rejected")
			return nil, reservation.ErrInvalidCharges
		}
		updated.AdditionalCharges = opts.AdditionalCharges
		final, err := s.finalCost(ctx, updated)
		if err != nil {
			s.metrics.IncTransition(string(action), "error")
			return nil, err
		}
		updated.FinalCost = &final
	}
	updated.UpdatedAt = now

	if err := s.store.Update(context.WithoutCancel(ctx), updated, from); err != nil {
		if reservation.IsConflict(err, reservation.ConflictStale) {
			s.metrics.IncTransition(string(action), "rejected")
			return nil, s.staleTransition(ctx, updated.ID, action, to)
		}
		s.metrics.IncTransition(string(action), "error")
		log.Error("failed to update reservation", zap.String("reservation_id", updated.ID), zap.Error(err))
		return nil, fmt.Errorf("予約の更新に失敗: %w", err)
	}

	s.metrics.IncTransition(string(action), "success")
	log.Info("reservation transitioned",
		zap.String("reservation_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("action", string(action)),
	)
	s.emit(ctx, updated)
	return updated, nil
}

// staleTransition は他の更新に追い越されたときに、最新の状態で遷移エラーを作る
func (s *ReservationService) staleTransition(ctx context.Context, id string, action reservation.Action, to reservation.Status) error {
	fresh, err := s.store.FindByID(context.WithoutCancel(ctx), id)
	if err != nil {
		return fmt.Errorf("予約の再取得に失敗: %w", err)
	}
	return &reservation.TransitionError{From: fresh.Status, To: to, Action: action}
}

func (s *ReservationService) finalCost(ctx context.Context, res *reservation.Reservation) (int64, error) {
	if s.pricer == nil {
		return res.EstimatedCost + res.AdditionalCharges, nil
	}
	cost, err := s.pricer.Final(ctx, res)
	if err != nil {
		return 0, fmt.Errorf("確定料金の計算に失敗: %w", err)
	}
	return cost, nil
}

// MarkPickedUp は車両の引き渡しを記録する（CONFIRMED → PICKED_UP）
func (s *ReservationService) MarkPickedUp(ctx context.Context, id, actorID string, actualStart *time.Time) (*reservation.Reservation, error) {
	return s.Transition(ctx, id, reservation.ActionPickup, actorID, TransitionOptions{At: actualStart})
}

// MarkReturned は車両の返却を記録する（PICKED_UP → RETURNED）
func (s *ReservationService) MarkReturned(ctx context.Context, id, actorID string, actualEnd *time.Time) (*reservation.Reservation, error) {
	return s.Transition(ctx, id, reservation.ActionReturn, actorID, TransitionOptions{At: actualEnd})
}

// ApproveReturn は所有者による返却承認（RETURNED → RETURN_APPROVED）
func (s *ReservationService) ApproveReturn(ctx context.Context, id, actorID string, additionalCharges int64) (*reservation.Reservation, error) {
	return s.Transition(ctx, id, reservation.ActionApproveReturn, actorID, TransitionOptions{AdditionalCharges: additionalCharges})
}

// CancelReservation は PENDING / CONFIRMED の予約をキャンセルする
func (s *ReservationService) CancelReservation(ctx context.Context, id, actorID string) (*reservation.Reservation, error) {
	return s.Transition(ctx, id, reservation.ActionCancel, actorID, TransitionOptions{})
}

// GetReservation は予約者または車両所有者に予約を返す
func (s *ReservationService) GetReservation(ctx context.Context, id, actorID string) (*reservation.Reservation, error) {
	res, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.AuthorizeView(ctx, res, actorID); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ReservationService) GetUserReservations(ctx context.Context, holderID string, limit, offset int) ([]*reservation.Reservation, error) {
	if holderID == "" {
		return nil, reservation.ErrHolderIDRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByHolder(ctx, holderID, limit, offset)
}

// CancelNoShows は開始から grace を過ぎても引き渡しされていない予約をキャンセルする
// システム操作のため権限確認は行わない。キャンセルした件数を返す
func (s *ReservationService) CancelNoShows(ctx context.Context, grace time.Duration) (int, error) {
	if grace <= 0 {
		grace = defaultNoShowWait
	}
	cutoff := s.now().UTC().Add(-grace)
	candidates, err := s.store.ListConfirmedStartingBefore(ctx, cutoff, noShowSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("未引き渡し予約の取得に失敗: %w", err)
	}

	cancelled := 0
	for _, res := range candidates {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.apply(ctx, res, reservation.ActionCancel, TransitionOptions{}); err != nil {
			// 直前に引き渡された等、状態が変わっていれば対象外
			logger.Warn("failed to cancel no-show reservation",
				zap.String("reservation_id", res.ID), zap.Error(err))
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// lockVehicle は車両単位の分散ロックを取得し、解放関数を返す
// 取得できない場合もストアの制約が正なのでロックなしで続行する
func (s *ReservationService) lockVehicle(ctx context.Context, vehicleID string) func() {
	if s.lockManager == nil {
		return func() {}
	}
	log := logger.FromContext(ctx)

	start := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, redislock.VehicleLockKey(vehicleID),
		s.lockOpts.TTL, s.lockOpts.Retries, s.lockOpts.RetryDelay)
	if err != nil {
		status := "failed"
		if errors.Is(err, redislock.ErrLockNotAcquired) {
			status = "contended"
		}
		s.metrics.ObserveLock("acquire", status, time.Since(start).Seconds())
		log.Warn("proceeding without vehicle lock", zap.String("vehicle_id", vehicleID), zap.Error(err))
		return func() {}
	}
	s.metrics.ObserveLock("acquire", "success", time.Since(start).Seconds())

	return func() {
		releaseStart := time.Now()
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.metrics.ObserveLock("release", "failed", time.Since(releaseStart).Seconds())
			log.Warn("failed to release vehicle lock", zap.String("vehicle_id", vehicleID), zap.Error(err))
			return
		}
		s.metrics.ObserveLock("release", "success", time.Since(releaseStart).Seconds())
	}
}

// emit は状態遷移を通知する
// 通知の失敗やパニックは予約の結果に影響させない。notifyTimeout を過ぎたら待たずに戻る
func (s *ReservationService) emit(ctx context.Context, res *reservation.Reservation) {
	if s.notifier == nil {
		return
	}
	ev := reservation.NewLifecycleEvent(res, s.now())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("lifecycle notifier panicked",
					zap.String("reservation_id", res.ID), zap.Any("panic", r))
			}
		}()
		s.notifier.Notify(context.WithoutCancel(ctx), ev)
	}()

	timer := time.NewTimer(s.notifyTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.metrics.IncDropped("slow_notifier")
		logger.FromContext(ctx).Warn("lifecycle notifier did not return in time",
			zap.String("reservation_id", res.ID),
			zap.String("event", ev.Name()),
			zap.Duration("timeout", s.notifyTimeout))
	}
}
