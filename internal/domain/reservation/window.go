package reservation

import (
	"fmt"
	"time"
)

// Window は半開区間 [Start, End) の予約期間（UTC）
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow は期間を UTC に正規化して生成する
// Start が End より前でなければ ErrInvalidWindow を返す
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start.UTC(), End: end.UTC()}
	if start.IsZero() || end.IsZero() || !w.Start.Before(w.End) {
		return Window{}, ErrInvalidWindow
	}
	return w, nil
}

// Overlaps は2つの半開区間が重なるかを返す
// [a,b) と [c,d) は a < d && c < b のとき重なる
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Duration は期間の長さを返す
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
