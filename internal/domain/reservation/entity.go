package reservation

import "time"

// Status は予約のライフサイクル状態を表す
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPickedUp       Status = "PICKED_UP"
	StatusReturned       Status = "RETURNED"
	StatusReturnApproved Status = "RETURN_APPROVED"
	StatusCancelled      Status = "CANCELLED"
)

// AllStatuses は定義済みの全状態
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPickedUp,
	StatusReturned,
	StatusReturnApproved,
	StatusCancelled,
}

// ParseStatus は文字列から状態を復元する
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Reservation は車両予約エンティティを表す
type Reservation struct {
	ID                string
	VehicleID         string
	HolderID          string
	Window            Window
	Status            Status
	IdempotencyKey    string
	EstimatedCost     int64
	FinalCost         *int64
	AdditionalCharges int64
	ActualStart       *time.Time
	ActualEnd         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewReservation は PENDING 状態の新しい予約を作成する
// ID と作成日時はストアが付与する
func NewReservation(vehicleID, holderID, idempotencyKey string, window Window) *Reservation {
	return &Reservation{
		VehicleID:      vehicleID,
		HolderID:       holderID,
		Window:         window,
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
	}
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.VehicleID == "" {
		return ErrVehicleIDRequired
	}
	if r.HolderID == "" {
		return ErrHolderIDRequired
	}
	if !r.Window.Start.Before(r.Window.End) {
		return ErrInvalidWindow
	}
	return nil
}

// IsActive は予約が重複禁止の対象（CONFIRMED / PICKED_UP）かを返す
func (r *Reservation) IsActive() bool {
	return IsActive(r.Status)
}

// IsTerminal は予約が終端状態かを返す
func (r *Reservation) IsTerminal() bool {
	return IsTerminal(r.Status)
}

// Clone はポインタ項目も含めて予約を複製する
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	if r.FinalCost != nil {
		v := *r.FinalCost
		c.FinalCost = &v
	}
	if r.ActualStart != nil {
		v := *r.ActualStart
		c.ActualStart = &v
	}
	if r.ActualEnd != nil {
		v := *r.ActualEnd
		c.ActualEnd = &v
	}
	return &c
}
