package reservation

// Action は状態遷移を引き起こす操作
type Action string

const (
	ActionAdmit         Action = "admit"
	ActionPickup        Action = "pickup"
	ActionReturn        Action = "return"
	ActionApproveReturn Action = "approve_return"
	ActionCancel        Action = "cancel"
)

// AllActions は定義済みの全操作
var AllActions = []Action{
	ActionAdmit,
	ActionPickup,
	ActionReturn,
	ActionApproveReturn,
	ActionCancel,
}

// transitions は (現在の状態, 操作) → 次の状態 の遷移表
// ここにない組み合わせはすべて拒否する
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionAdmit:  StatusConfirmed,
		ActionCancel: StatusCancelled,
	},
	StatusConfirmed: {
		ActionPickup: StatusPickedUp,
		ActionCancel: StatusCancelled,
	},
	StatusPickedUp: {
		ActionReturn: StatusReturned,
	},
	StatusReturned: {
		ActionApproveReturn: StatusReturnApproved,
	},
	StatusReturnApproved: {},
	StatusCancelled:      {},
}

// targets は各操作が目指す状態（拒否時のエラー報告用）
var targets = map[Action]Status{
	ActionAdmit:         StatusConfirmed,
	ActionPickup:        StatusPickedUp,
	ActionReturn:        StatusReturned,
	ActionApproveReturn: StatusReturnApproved,
	ActionCancel:        StatusCancelled,
}

// Next は状態遷移を判定する純粋関数
// 遷移できない場合は現在の状態と *TransitionError を返す
func Next(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return from, &TransitionError{From: from, To: targets[action], Action: action}
}

// CanTransition は遷移可能かを返す
func CanTransition(from Status, action Action) bool {
	_, ok := transitions[from][action]
	return ok
}

// IsTerminal は終端状態かを返す
func IsTerminal(s Status) bool {
	return s == StatusReturnApproved || s == StatusCancelled
}

// IsActive は重複禁止の対象となる状態かを返す
func IsActive(s Status) bool {
	return s == StatusConfirmed || s == StatusPickedUp
}

// IsCancellable はキャンセル可能な状態かを返す
func IsCancellable(s Status) bool {
	return CanTransition(s, ActionCancel)
}

// ParseAction は文字列から操作を復元する
func ParseAction(s string) (Action, error) {
	for _, a := range AllActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", ErrUnknownAction
}
