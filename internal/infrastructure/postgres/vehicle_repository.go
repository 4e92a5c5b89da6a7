package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

// vehicleRow はDBの行を表す構造体
type vehicleRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	PlateNumber string    `db:"plate_number"`
	HourlyRate  int64     `db:"hourly_rate"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *vehicleRow) toEntity() *vehicle.Vehicle {
	return &vehicle.Vehicle{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		PlateNumber: r.PlateNumber,
		HourlyRate:  r.HourlyRate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// VehicleRepository は車両リポジトリのPostgreSQL実装
type VehicleRepository struct {
	db *sqlx.DB
}

// NewVehicleRepository はVehicleRepositoryを作成する
func NewVehicleRepository(db *sqlx.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Create は新しい車両を登録する
func (r *VehicleRepository) Create(ctx context.Context, v *vehicle.Vehicle) error {
	query := `
		INSERT INTO vehicles (owner_id, name, plate_number, hourly_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		v.OwnerID, v.Name, v.PlateNumber, v.HourlyRate, v.CreatedAt, v.UpdatedAt,
	).Scan(&v.ID)
	if err != nil {
		if isPlateNumberViolation(err) {
			return vehicle.ErrPlateNumberDuplicated
		}
		return fmt.Errorf("車両登録に失敗: %w", classify(err))
	}
	return nil
}

// GetByID はIDから車両を取得する
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*vehicle.Vehicle, error) {
	var row vehicleRow
	query := `SELECT id, owner_id, name, plate_number, hourly_rate, created_at, updated_at FROM vehicles WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, vehicle.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("車両取得に失敗: %w", classify(err))
	}
	return row.toEntity(), nil
}

// List は車両一覧を登録順に取得する
func (r *VehicleRepository) List(ctx context.Context, limit, offset int) ([]*vehicle.Vehicle, error) {
	var rows []vehicleRow
	query := `SELECT id, owner_id, name, plate_number, hourly_rate, created_at, updated_at FROM vehicles ORDER BY created_at, id LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("車両一覧取得に失敗: %w", classify(err))
	}
	result := make([]*vehicle.Vehicle, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

var _ vehicle.Repository = (*VehicleRepository)(nil)
