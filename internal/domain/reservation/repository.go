package reservation

import (
	"context"
	"time"
)

// Repository は予約ストアのインターフェース
// 重複禁止と冪等性キー一意性を原子的に保証する唯一のコンポーネント
type Repository interface {
	// Insert は予約を作成し ID と作成日時を設定する
	// 不変条件に違反する場合は *ConflictError を返し、何も書き込まない
	Insert(ctx context.Context, r *Reservation) error

	// FindByID はIDから予約を取得する
	FindByID(ctx context.Context, id string) (*Reservation, error)

	// CountActiveOverlapping は期間が重なる有効な予約の件数を返す
	CountActiveOverlapping(ctx context.Context, vehicleID string, window Window) (int, error)

	// FindByHolderAndKey は (利用者, 冪等性キー) から予約を取得する
	FindByHolderAndKey(ctx context.Context, holderID, key string) (*Reservation, error)

	// Update は状態が from のときだけ予約を更新する
	// 状態が変わっていた場合は ConflictStale を返す
	Update(ctx context.Context, r *Reservation, from Status) error

	// ListByHolder は利用者の予約一覧を新しい順に取得する
	ListByHolder(ctx context.Context, holderID string, limit, offset int) ([]*Reservation, error)

	// ListConfirmedStartingBefore は cutoff より前に開始した CONFIRMED の予約を取得する
	ListConfirmedStartingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Reservation, error)
}
