package todo

import (
	"github.com/hitoshi/taskfront/internal/model"
	"github.com/hitoshi/taskfront/internal/security"
)

// View は1件のTODOの表示用の値。
type View struct {
	ID       int64
	Subject  string
	Contents string
	DueYMD   string
	Overdue  bool
}

// NewView はTODOを表示用に変換する。マークアップの除去はここでのみ行う。
// todayは日付のみ比較し、期日を過ぎていればOverdueになる。
func NewView(t model.Task, stripper security.MarkupStripper, today string) View {
	return View{
		ID:       t.ID.Int64(),
		Subject:  stripper.StripMarkup(t.Subject),
		Contents: stripper.StripMarkup(t.Contents),
		DueYMD:   t.DueYMD,
		Overdue:  t.DueYMD != "" && t.DueYMD < today,
	}
}
