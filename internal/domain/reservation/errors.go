package reservation

import (
	"errors"
	"fmt"
)

// Reservation ドメインのエラー定義
var (
	ErrInvalidWindow       = errors.New("予約期間が不正です")
	ErrResourceUnavailable = errors.New("車両はその期間すでに予約されています")
	ErrInvalidTransition   = errors.New("この状態では操作できません")
	ErrForbidden           = errors.New("この操作を行う権限がありません")
	ErrReservationNotFound = errors.New("予約が見つかりません")
	ErrStorageUnavailable  = errors.New("ストレージに接続できません")
	ErrVehicleIDRequired   = errors.New("車両IDは必須です")
	ErrHolderIDRequired    = errors.New("利用者IDは必須です")
	ErrInvalidCharges      = errors.New("追加料金は0以上である必要があります")
	ErrUnknownAction       = errors.New("不明な操作です")
)

// ConflictKind はストアが検出した競合の種類
type ConflictKind int

const (
	// ConflictOverlap は重複禁止制約（同一車両・有効予約の期間重複）
	ConflictOverlap ConflictKind = iota + 1
	// ConflictIdempotency は (利用者, 冪等性キー) の一意制約
	ConflictIdempotency
	// ConflictStale は更新時の状態が想定と異なる（他の更新に追い越された）
	ConflictStale
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictOverlap:
		return "overlap"
	case ConflictIdempotency:
		return "idempotency"
	case ConflictStale:
		return "stale"
	default:
		return "unknown"
	}
}

// ConflictError はストアの書き込みが不変条件違反で拒否されたことを表す
// 失敗した書き込みは1行も変更しない
type ConflictError struct {
	Kind          ConflictKind
	ReservationID string
	VehicleID     string
	Err           error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("予約の書き込みが競合しました (%s)", e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return e.Err }

// IsConflict は err が指定種別の ConflictError を含むかを返す
func IsConflict(err error, kind ConflictKind) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Kind == kind
}

// UnavailableError は重複のため予約を受け付けられなかったことを表す
type UnavailableError struct {
	VehicleID string
	Window    Window
	Blocking  int
	Attempts  int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: vehicle=%s window=%s blocking=%d", ErrResourceUnavailable, e.VehicleID, e.Window, e.Blocking)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrResourceUnavailable
}

// TransitionError は FSM が遷移を拒否したことを表す
type TransitionError struct {
	From   Status
	To     Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: current=%s requested=%s action=%s", ErrInvalidTransition, e.From, e.To, e.Action)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
