package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

func TestVehicleService_RegisterVehicle(t *testing.T) {
	t.Run("正常に登録できる", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		service := NewVehicleService(repo)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*vehicle.Vehicle")).Return(nil)

		v, err := service.RegisterVehicle(context.Background(), RegisterVehicleInput{
			OwnerID: "owner-1", Name: "アクア", PlateNumber: "品川 300 あ 55-66", HourlyRate: 1100,
		})

		require.NoError(t, err)
		assert.Equal(t, "アクア", v.Name)
		repo.AssertExpectations(t)
	})

	t.Run("バリデーションエラー", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		service := NewVehicleService(repo)

		_, err := service.RegisterVehicle(context.Background(), RegisterVehicleInput{OwnerID: "owner-1", Name: "アクア", HourlyRate: 1100})

		assert.ErrorIs(t, err, vehicle.ErrPlateNumberRequired)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("リポジトリエラー", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		service := NewVehicleService(repo)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db error"))

		_, err := service.RegisterVehicle(context.Background(), RegisterVehicleInput{
			OwnerID: "owner-1", Name: "アクア", PlateNumber: "x", HourlyRate: 1100,
		})
		assert.Error(t, err)
	})
}

func TestVehicleService_ListVehicles(t *testing.T) {
	tests := []struct {
		name           string
		limit, offset  int
		expectedLimit  int
		expectedOffset int
	}{
		{name: "デフォルト", limit: 0, offset: 0, expectedLimit: 20, expectedOffset: 0},
		{name: "上限", limit: 500, offset: 10, expectedLimit: 100, expectedOffset: 10},
		{name: "負のオフセット", limit: 5, offset: -1, expectedLimit: 5, expectedOffset: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockVehicleRepository)
			service := NewVehicleService(repo)
			repo.On("List", mock.Anything, tt.expectedLimit, tt.expectedOffset).Return([]*vehicle.Vehicle{}, nil)

			_, err := service.ListVehicles(context.Background(), tt.limit, tt.offset)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}
