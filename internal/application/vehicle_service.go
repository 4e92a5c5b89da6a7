package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

type VehicleService struct {
	vehicleRepo vehicle.Repository
}

func NewVehicleService(vehicleRepo vehicle.Repository) *VehicleService {
	return &VehicleService{vehicleRepo: vehicleRepo}
}

type RegisterVehicleInput struct {
	OwnerID     string
	Name        string
	PlateNumber string
	HourlyRate  int64
}

func (s *VehicleService) RegisterVehicle(ctx context.Context, input RegisterVehicleInput) (*vehicle.Vehicle, error) {
	v := vehicle.NewVehicle(input.OwnerID, input.Name, input.PlateNumber, input.HourlyRate)
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.vehicleRepo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("車両登録に失敗しました: %w", err)
	}
	return v, nil
}

func (s *VehicleService) GetVehicle(ctx context.Context, id string) (*vehicle.Vehicle, error) {
	return s.vehicleRepo.GetByID(ctx, id)
}

func (s *VehicleService) ListVehicles(ctx context.Context, limit, offset int) ([]*vehicle.Vehicle, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.vehicleRepo.List(ctx, limit, offset)
}
