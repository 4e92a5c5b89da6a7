package vehicle

import (
	"strings"
	"time"
)

// Vehicle は予約対象となる車両（排他的なリソース）を表す
type Vehicle struct {
	ID          string
	OwnerID     string
	Name        string
	PlateNumber string
	HourlyRate  int64 // 1時間あたりの料金（最小通貨単位）
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewVehicle は新しい車両を作成する
func NewVehicle(ownerID, name, plateNumber string, hourlyRate int64) *Vehicle {
	now := time.Now().UTC()
	return &Vehicle{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		PlateNumber: strings.ToUpper(strings.TrimSpace(plateNumber)),
		HourlyRate:  hourlyRate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate は車両の検証を行う
func (v *Vehicle) Validate() error {
	if v.OwnerID == "" {
		return ErrOwnerIDRequired
	}
	if v.Name == "" {
		return ErrVehicleNameRequired
	}
	if v.PlateNumber == "" {
		return ErrPlateNumberRequired
	}
	if v.HourlyRate < 0 {
		return ErrInvalidHourlyRate
	}
	return nil
}

// IsOwnedBy は指定ユーザーが所有者かを返す
func (v *Vehicle) IsOwnedBy(userID string) bool {
	return userID != "" && v.OwnerID == userID
}
