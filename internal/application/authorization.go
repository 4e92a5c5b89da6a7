package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
)

// OwnerLookup は車両の所有者を返す
type OwnerLookup interface {
	OwnerOf(ctx context.Context, vehicleID string) (string, error)
}

// Authorizer は操作者が予約を操作・参照できるかを判定する
type Authorizer interface {
	AuthorizeTransition(ctx context.Context, r *reservation.Reservation, action reservation.Action, actorID string) error
	AuthorizeView(ctx context.Context, r *reservation.Reservation, actorID string) error
}

// OwnershipAuthorizer は予約者と車両所有者による権限判定
//   - pickup / return / cancel: 予約者のみ
//   - approve_return: 車両所有者のみ
//   - 参照: 予約者または車両所有者
type OwnershipAuthorizer struct {
	owners OwnerLookup
}

func NewOwnershipAuthorizer(owners OwnerLookup) *OwnershipAuthorizer {
	return &OwnershipAuthorizer{owners: owners}
}

func (a *OwnershipAuthorizer) AuthorizeTransition(ctx context.Context, r *reservation.Reservation, action reservation.Action, actorID string) error {
	if actorID == "" {
		return reservation.ErrForbidden
	}
	switch action {
	case reservation.ActionPickup, reservation.ActionReturn, reservation.ActionCancel:
		if r.HolderID == actorID {
			return nil
		}
		return reservation.ErrForbidden
	case reservation.ActionApproveReturn:
		return a.requireOwner(ctx, r.VehicleID, actorID)
	default:
		// admit はシステム内部でのみ行う
		return reservation.ErrForbidden
	}
}

func (a *OwnershipAuthorizer) AuthorizeView(ctx context.Context, r *reservation.Reservation, actorID string) error {
	if actorID == "" {
		return reservation.ErrForbidden
	}
	if r.HolderID == actorID {
		return nil
	}
	return a.requireOwner(ctx, r.VehicleID, actorID)
}

func (a *OwnershipAuthorizer) requireOwner(ctx context.Context, vehicleID, actorID string) error {
	if a.owners == nil {
		return reservation.ErrForbidden
	}
	owner, err := a.owners.OwnerOf(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, vehicle.ErrVehicleNotFound) {
			return reservation.ErrForbidden
		}
		return fmt.Errorf("車両所有者の取得に失敗: %w", err)
	}
	if owner != actorID {
		return reservation.ErrForbidden
	}
	return nil
}

// VehicleOwnerLookup は車両リポジトリから所有者を引く
type VehicleOwnerLookup struct {
	vehicles vehicle.Repository
}

func NewVehicleOwnerLookup(vehicles vehicle.Repository) *VehicleOwnerLookup {
	return &VehicleOwnerLookup{vehicles: vehicles}
}

func (l *VehicleOwnerLookup) OwnerOf(ctx context.Context, vehicleID string) (string, error) {
	v, err := l.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return "", err
	}
	return v.OwnerID, nil
}
