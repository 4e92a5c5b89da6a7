package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

// Pricer は予約料金を計算する
type Pricer interface {
	// Estimate は予約時の見積もり金額を返す
	Estimate(ctx context.Context, vehicleID string, window reservation.Window) (int64, error)
	// Final は返却承認時の確定金額を返す（追加料金を含む）
	Final(ctx context.Context, r *reservation.Reservation) (int64, error)
}

// HourlyRatePricer は車両の時間料金 × 利用時間（1時間単位で切り上げ）で計算する
type HourlyRatePricer struct {
	vehicles vehicle.Repository
}

func NewHourlyRatePricer(vehicles vehicle.Repository) *HourlyRatePricer {
	return &HourlyRatePricer{vehicles: vehicles}
}

func (p *HourlyRatePricer) Estimate(ctx context.Context, vehicleID string, window reservation.Window) (int64, error) {
	v, err := p.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return 0, fmt.Errorf("車両の取得に失敗: %w", err)
	}
	return v.HourlyRate * billableHours(window.Duration()), nil
}

// Final は予約期間と実際の利用期間の長い方で課金する
func (p *HourlyRatePricer) Final(ctx context.Context, r *reservation.Reservation) (int64, error) {
	v, err := p.vehicles.GetByID(ctx, r.VehicleID)
	if err != nil {
		return 0, fmt.Errorf("車両の取得に失敗: %w", err)
	}
	d := r.Window.Duration()
	if r.ActualStart != nil && r.ActualEnd != nil {
		if actual := r.ActualEnd.Sub(*r.ActualStart); actual > d {
			d = actual
		}
	}
	return v.HourlyRate*billableHours(d) + r.AdditionalCharges, nil
}

func billableHours(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	h := int64(d / time.Hour)
	if d%time.Hour != 0 {
		h++
	}
	return h
}
