package vehicle

import "context"

// Repository は車両リポジトリのインターフェース
type Repository interface {
	Create(ctx context.Context, v *Vehicle) error
	GetByID(ctx context.Context, id string) (*Vehicle, error)
	List(ctx context.Context, limit, offset int) ([]*Vehicle, error)
}
