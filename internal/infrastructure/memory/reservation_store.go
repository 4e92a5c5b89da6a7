package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
)

type holderKey struct {
	holderID string
	key      string
}

// ReservationStore はメモリ上の予約ストア
// 車両ごとのロックで「重複確認 → 書き込み」を直列化し、
// 冪等性キーの索引は全体ロックの中で確保する
type ReservationStore struct {
	partitionsMu sync.Mutex
	partitions   map[string]*sync.Mutex

	mu        sync.RWMutex
	rows      map[string]*reservation.Reservation
	byVehicle map[string][]string
	byKey     map[holderKey]string
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{
		partitions: make(map[string]*sync.Mutex),
		rows:       make(map[string]*reservation.Reservation),
		byVehicle:  make(map[string][]string),
		byKey:      make(map[holderKey]string),
	}
}

func (s *ReservationStore) vehicleLock(vehicleID string) *sync.Mutex {
	s.partitionsMu.Lock()
	defer s.partitionsMu.Unlock()
	l, ok := s.partitions[vehicleID]
	if !ok {
		l = &sync.Mutex{}
		s.partitions[vehicleID] = l
	}
	return l
}

func (s *ReservationStore) Insert(ctx context.Context, r *reservation.Reservation) error {
	if err := r.Validate(); err != nil {
		return err
	}

	vl := s.vehicleLock(r.VehicleID)
	vl.Lock()
	defer vl.Unlock()

	k := holderKey{holderID: r.HolderID, key: r.IdempotencyKey}

	// 冪等性キーを先に確認する。同じキーの同時リクエストは重複ではなく冪等性の競合になる
	s.mu.RLock()
	if err := s.checkKeyLocked(k, r); err != nil {
		s.mu.RUnlock()
		return err
	}
	if r.IsActive() {
		if blocking := s.activeOverlapsLocked(r.VehicleID, r.Window, ""); blocking != "" {
			s.mu.RUnlock()
			return &reservation.ConflictError{Kind: reservation.ConflictOverlap, ReservationID: blocking, VehicleID: r.VehicleID}
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// 別の車両への挿入が同じキーを先に確保している可能性がある
	if err := s.checkKeyLocked(k, r); err != nil {
		return err
	}

	row := r.Clone()
	row.ID = uuid.New().String()
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	s.rows[row.ID] = row
	s.byVehicle[row.VehicleID] = append(s.byVehicle[row.VehicleID], row.ID)
	if k.key != "" {
		s.byKey[k] = row.ID
	}

	r.ID = row.ID
	r.CreatedAt = row.CreatedAt
	r.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *ReservationStore) checkKeyLocked(k holderKey, r *reservation.Reservation) error {
	if k.key == "" {
		return nil
	}
	if id, ok := s.byKey[k]; ok {
		return &reservation.ConflictError{Kind: reservation.ConflictIdempotency, ReservationID: id, VehicleID: r.VehicleID}
	}
	return nil
}

// activeOverlapsLocked は重なる有効な予約のIDを1件返す（なければ空文字）
func (s *ReservationStore) activeOverlapsLocked(vehicleID string, w reservation.Window, excludeID string) string {
	for _, id := range s.byVehicle[vehicleID] {
		if id == excludeID {
			continue
		}
		row := s.rows[id]
		if row.IsActive() && row.Window.Overlaps(w) {
			return id
		}
	}
	return ""
}

func (s *ReservationStore) FindByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return row.Clone(), nil
}

func (s *ReservationStore) CountActiveOverlapping(ctx context.Context, vehicleID string, w reservation.Window) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, id := range s.byVehicle[vehicleID] {
		row := s.rows[id]
		if row.IsActive() && row.Window.Overlaps(w) {
			n++
		}
	}
	return n, nil
}

func (s *ReservationStore) FindByHolderAndKey(ctx context.Context, holderID, key string) (*reservation.Reservation, error) {
	if key == "" {
		return nil, reservation.ErrReservationNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[holderKey{holderID: holderID, key: key}]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return s.rows[id].Clone(), nil
}

func (s *ReservationStore) Update(ctx context.Context, r *reservation.Reservation, from reservation.Status) error {
	vl := s.vehicleLock(r.VehicleID)
	vl.Lock()
	defer vl.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rows[r.ID]
	if !ok {
		return reservation.ErrReservationNotFound
	}
	if current.Status != from {
		return &reservation.ConflictError{Kind: reservation.ConflictStale, ReservationID: r.ID, VehicleID: r.VehicleID}
	}
	if !current.IsActive() && r.IsActive() {
		if blocking := s.activeOverlapsLocked(r.VehicleID, r.Window, r.ID); blocking != "" {
			return &reservation.ConflictError{Kind: reservation.ConflictOverlap, ReservationID: blocking, VehicleID: r.VehicleID}
		}
	}

	row := r.Clone()
	// 作成時の属性は変更させない
	row.VehicleID = current.VehicleID
	row.HolderID = current.HolderID
	row.IdempotencyKey = current.IdempotencyKey
	row.CreatedAt = current.CreatedAt
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	s.rows[r.ID] = row
	return nil
}

func (s *ReservationStore) ListByHolder(ctx context.Context, holderID string, limit, offset int) ([]*reservation.Reservation, error) {
	s.mu.RLock()
	var rows []*reservation.Reservation
	for _, row := range s.rows {
		if row.HolderID == holderID {
			rows = append(rows, row.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return page(rows, limit, offset), nil
}

func (s *ReservationStore) ListConfirmedStartingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error) {
	s.mu.RLock()
	var rows []*reservation.Reservation
	for _, row := range s.rows {
		if row.Status == reservation.StatusConfirmed && row.Window.Start.Before(cutoff) {
			rows = append(rows, row.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Window.Start.Before(rows[j].Window.Start)
	})
	return page(rows, limit, 0), nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
