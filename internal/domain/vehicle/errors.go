package vehicle

import "errors"

// Vehicle ドメインのエラー定義
var (
	ErrVehicleNotFound       = errors.New("車両が見つかりません")
	ErrOwnerIDRequired       = errors.New("所有者IDは必須です")
	ErrVehicleNameRequired   = errors.New("車両名は必須です")
	ErrPlateNumberRequired   = errors.New("ナンバーは必須です")
	ErrInvalidHourlyRate     = errors.New("時間料金は0以上である必要があります")
	ErrPlateNumberDuplicated = errors.New("同じナンバーの車両が既に登録されています")
)
