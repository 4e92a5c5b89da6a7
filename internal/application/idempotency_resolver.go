package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
)

// IdempotencyCache は (利用者, 冪等性キー) → 予約ID の読み取りキャッシュ
// ストアが正であり、キャッシュの障害は無視してよい
type IdempotencyCache interface {
	Lookup(ctx context.Context, holderID, key string) (string, bool, error)
	Remember(ctx context.Context, holderID, key, reservationID string) error
	Forget(ctx context.Context, holderID, key string) error
}

// IdempotencyResolver は冪等性キーから既存の予約を探す
// ロックは取らない。同時実行の決着はストアの一意制約に任せる
type IdempotencyResolver struct {
	store reservation.Repository
	cache IdempotencyCache
}

func NewIdempotencyResolver(store reservation.Repository, cache IdempotencyCache) *IdempotencyResolver {
	return &IdempotencyResolver{store: store, cache: cache}
}

// Resolve は既存の予約があれば (予約, true, nil) を返す
// キーが空なら常にミス
func (r *IdempotencyResolver) Resolve(ctx context.Context, holderID, key string) (*reservation.Reservation, bool, error) {
	if key == "" {
		return nil, false, nil
	}

	if r.cache != nil {
		id, ok, err := r.cache.Lookup(ctx, holderID, key)
		if err != nil {
			logger.FromContext(ctx).Warn("idempotency cache lookup failed",
				zap.String("holder_id", holderID), zap.Error(err))
		} else if ok {
			found, err := r.store.FindByID(ctx, id)
			if err == nil && found.HolderID == holderID && found.IdempotencyKey == key {
				return found, true, nil
			}
			if err == nil || errors.Is(err, reservation.ErrReservationNotFound) {
				r.forget(ctx, holderID, key, id)
			}
		}
	}

	found, err := r.store.FindByHolderAndKey(ctx, holderID, key)
	if err != nil {
		if errors.Is(err, reservation.ErrReservationNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}
	r.Remember(ctx, found)
	return found, true, nil
}

// Remember は作成済みの予約をキャッシュに記録する（失敗はログのみ）
func (r *IdempotencyResolver) Remember(ctx context.Context, res *reservation.Reservation) {
	if r.cache == nil || res == nil || res.IdempotencyKey == "" {
		return
	}
	if err := r.cache.Remember(ctx, res.HolderID, res.IdempotencyKey, res.ID); err != nil {
		logger.FromContext(ctx).Warn("idempotency cache write failed",
			zap.String("reservation_id", res.ID), zap.Error(err))
	}
}

// forget はストアと食い違うキャッシュ項目を消す（失敗はログのみ）
func (r *IdempotencyResolver) forget(ctx context.Context, holderID, key, staleID string) {
	if err := r.cache.Forget(ctx, holderID, key); err != nil {
		logger.FromContext(ctx).Warn("idempotency cache invalidation failed",
			zap.String("reservation_id", staleID), zap.Error(err))
	}
}
