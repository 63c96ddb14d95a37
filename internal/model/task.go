package model

import (
	"fmt"
	"time"
)

// DateLayout はAPIが扱う日付（YYYY-MM-DD）のレイアウト。
const DateLayout = "2006-01-02"

// Task はリモートAPIが保持するTODOを表す。
// 日時はAPIが返す文字列をそのまま保持する。
type Task struct {
	ID        FlexInt `json:"topics_id"`
	Subject   string  `json:"subject"`
	Contents  string  `json:"contents"` // マークアップを含む場合がある
	DueYMD    string  `json:"due_ymd"`
	YMD       string  `json:"ymd"`
	CreatedAt string  `json:"inst_ymdhi"`
	UpdatedAt string  `json:"update_ymdhi"`
}

// DueDate は期日をローカルタイムゾーンの日付として解析する。
func (t Task) DueDate() (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, t.DueYMD, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("期日の解析に失敗しました: %w", err)
	}
	return d, nil
}

// PageInfo は一覧取得1回分のページネーション情報を表す。
// サーバーのレスポンスからのみ導出され、変更されない。
type PageInfo struct {
	TotalCount int `json:"totalCnt"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPageCnt"`
	PageNo     int `json:"pageNo"`
	FirstIndex int `json:"firstIndex"`
	LastIndex  int `json:"lastIndex"`
}

// HasNext は次のページが存在するかを返す。
func (p PageInfo) HasNext() bool {
	return p.PageNo < p.TotalPages
}
