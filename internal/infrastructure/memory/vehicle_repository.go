package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

// VehicleRepository はメモリ上の車両リポジトリ
type VehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*vehicle.Vehicle
	byPlate  map[string]string
}

func NewVehicleRepository() *VehicleRepository {
	return &VehicleRepository{
		vehicles: make(map[string]*vehicle.Vehicle),
		byPlate:  make(map[string]string),
	}
}

func (r *VehicleRepository) Create(ctx context.Context, v *vehicle.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPlate[v.PlateNumber]; ok {
		return vehicle.ErrPlateNumberDuplicated
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	c := *v
	r.vehicles[c.ID] = &c
	r.byPlate[c.PlateNumber] = c.ID
	return nil
}

func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*vehicle.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, vehicle.ErrVehicleNotFound
	}
	c := *v
	return &c, nil
}

func (r *VehicleRepository) List(ctx context.Context, limit, offset int) ([]*vehicle.Vehicle, error) {
	r.mu.RLock()
	out := make([]*vehicle.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		c := *v
		out = append(out, &c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, offset), nil
}
