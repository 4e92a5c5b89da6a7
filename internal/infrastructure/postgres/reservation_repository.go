package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
)

// reservationRow はDBの行を表す構造体
type reservationRow struct {
	ID                string     `db:"id"`
	VehicleID         string     `db:"vehicle_id"`
	HolderID          string     `db:"holder_id"`
	StartAt           time.Time  `db:"start_at"`
	EndAt             time.Time  `db:"end_at"`
	Status            string     `db:"status"`
	IdempotencyKey    string     `db:"idempotency_key"`
	EstimatedCost     int64      `db:"estimated_cost"`
	FinalCost         *int64     `db:"final_cost"`
	AdditionalCharges int64      `db:"additional_charges"`
	ActualStart       *time.Time `db:"actual_start"`
	ActualEnd         *time.Time `db:"actual_end"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

const reservationColumns = `id, vehicle_id, holder_id, start_at, end_at, status, idempotency_key,
	estimated_cost, final_cost, additional_charges, actual_start, actual_end, created_at, updated_at`

// toEntity はreservationRowをReservationエンティティに変換する
// 未知の状態文字列はエラーにする
func (r *reservationRow) toEntity() (*reservation.Reservation, error) {
	status, ok := reservation.ParseStatus(r.Status)
	if !ok {
		return nil, fmt.Errorf("予約 %s の状態が不正です: %q", r.ID, r.Status)
	}
	res := &reservation.Reservation{
		ID:                r.ID,
		VehicleID:         r.VehicleID,
		HolderID:          r.HolderID,
		Window:            reservation.Window{Start: r.StartAt.UTC(), End: r.EndAt.UTC()},
		Status:            status,
		IdempotencyKey:    r.IdempotencyKey,
		EstimatedCost:     r.EstimatedCost,
		FinalCost:         r.FinalCost,
		AdditionalCharges: r.AdditionalCharges,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if r.ActualStart != nil {
		t := r.ActualStart.UTC()
		res.ActualStart = &t
	}
	if r.ActualEnd != nil {
		t := r.ActualEnd.UTC()
		res.ActualEnd = &t
	}
	return res, nil
}

// ReservationRepository は予約ストアのPostgreSQL実装
// 重複禁止は排他制約、冪等性キーは部分一意インデックスで保証する
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository はReservationRepositoryを作成する
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Insert は予約を作成する
func (r *ReservationRepository) Insert(ctx context.Context, res *reservation.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	createdAt, updatedAt := res.CreatedAt, res.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO reservations (vehicle_id, holder_id, start_at, end_at, status, idempotency_key,
			estimated_cost, final_cost, additional_charges, actual_start, actual_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id string
	err := r.db.QueryRowContext(ctx, query,
		res.VehicleID, res.HolderID, res.Window.Start, res.Window.End, string(res.Status), res.IdempotencyKey,
		res.EstimatedCost, res.FinalCost, res.AdditionalCharges, res.ActualStart, res.ActualEnd, createdAt, updatedAt,
	).Scan(&id)
	if err != nil {
		err = classify(err)
		var ce *reservation.ConflictError
		if errors.As(err, &ce) {
			ce.VehicleID = res.VehicleID
			return ce
		}
		if errors.Is(err, reservation.ErrStorageUnavailable) {
			return err
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}

	res.ID = id
	res.CreatedAt = createdAt
	res.UpdatedAt = updatedAt
	return nil
}

// FindByID はIDから予約を取得する
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, r.wrap("予約取得に失敗", err)
	}
	return row.toEntity()
}

// CountActiveOverlapping は期間が重なる有効な予約の件数を返す
func (r *ReservationRepository) CountActiveOverlapping(ctx context.Context, vehicleID string, w reservation.Window) (int, error) {
	query := `
		SELECT COUNT(*) FROM reservations
		WHERE vehicle_id = $1
		  AND status IN ('CONFIRMED', 'PICKED_UP')
		  AND start_at < $3 AND $2 < end_at
	`
	var n int
	if err := r.db.GetContext(ctx, &n, query, vehicleID, w.Start, w.End); err != nil {
		return 0, r.wrap("重複件数の取得に失敗", err)
	}
	return n, nil
}

// FindByHolderAndKey は (利用者, 冪等性キー) から予約を取得する
func (r *ReservationRepository) FindByHolderAndKey(ctx context.Context, holderID, key string) (*reservation.Reservation, error) {
	if key == "" {
		return nil, reservation.ErrReservationNotFound
	}
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE holder_id = $1 AND idempotency_key = $2`
	if err := r.db.GetContext(ctx, &row, query, holderID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, r.wrap("予約取得に失敗", err)
	}
	return row.toEntity()
}

// Update は状態が from のときだけ予約を更新する
func (r *ReservationRepository) Update(ctx context.Context, res *reservation.Reservation, from reservation.Status) error {
	updatedAt := res.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := `
		UPDATE reservations
		SET status = $1, actual_start = $2, actual_end = $3, additional_charges = $4,
			final_cost = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		string(res.Status), res.ActualStart, res.ActualEnd, res.AdditionalCharges,
		res.FinalCost, updatedAt, res.ID, string(from),
	)
	if err != nil {
		if isInvalidText(err) {
			return reservation.ErrReservationNotFound
		}
		err = classify(err)
		var ce *reservation.ConflictError
		if errors.As(err, &ce) {
			ce.ReservationID = res.ID
			ce.VehicleID = res.VehicleID
			return ce
		}
		return r.wrap("予約更新に失敗", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return r.wrap("予約更新に失敗", err)
	}
	if rows == 1 {
		res.UpdatedAt = updatedAt
		return nil
	}

	// 0件: 存在しないのか、状態が変わっていたのかを区別する
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, res.ID); err != nil {
		return r.wrap("予約の存在確認に失敗", err)
	}
	if !exists {
		return reservation.ErrReservationNotFound
	}
	return &reservation.ConflictError{Kind: reservation.ConflictStale, ReservationID: res.ID, VehicleID: res.VehicleID}
}

// ListByHolder は利用者の予約一覧を新しい順に取得する
func (r *ReservationRepository) ListByHolder(ctx context.Context, holderID string, limit, offset int) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE holder_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, holderID, limit, offset); err != nil {
		return nil, r.wrap("予約一覧取得に失敗", err)
	}
	return toEntities(rows)
}

// ListConfirmedStartingBefore は cutoff より前に開始した CONFIRMED の予約を開始順に取得する
func (r *ReservationRepository) ListConfirmedStartingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE status = 'CONFIRMED' AND start_at < $1 ORDER BY start_at LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, cutoff, limit); err != nil {
		return nil, r.wrap("未引き渡し予約の取得に失敗", err)
	}
	return toEntities(rows)
}

func (r *ReservationRepository) wrap(msg string, err error) error {
	err = classify(err)
	if errors.Is(err, reservation.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func toEntities(rows []reservationRow) ([]*reservation.Reservation, error) {
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		res, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		result[i] = res
	}
	return result, nil
}

var _ reservation.Repository = (*ReservationRepository)(nil)
