package todo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/taskfront/internal/errmsg"
	"github.com/hitoshi/taskfront/internal/metrics"
	"github.com/hitoshi/taskfront/internal/model"
	"github.com/hitoshi/taskfront/internal/notify"
)

// 通知メッセージ
const (
	CreatedMessage      = "TODOを追加しました"
	DeleteFailedMessage = "TODOの削除に失敗しました"
)

// API はコントローラが使うTODO APIの操作。
type API interface {
	FetchList(ctx context.Context, pageNo int) (*ListResult, error)
	Create(ctx context.Context, in CreateInput) (*CreateResult, error)
	Delete(ctx context.Context, id int64) (*DeleteResult, error)
}

// ListController は表示中の一覧ページを保持する。
// 保持する一覧は取得のたびに丸ごと置き換えられ、作成・削除の後は再取得される。
type ListController struct {
	api      API
	notifier notify.Notifier
	logger   *slog.Logger
	recorder metrics.Recorder

	mu       sync.RWMutex
	items    []model.Task
	pageInfo *model.PageInfo
	pageNo   int
	errMsg   string
	loading  bool
}

// ControllerOption はListControllerの設定を変更する。
type ControllerOption func(*ListController)

// WithRecorder は一括削除の失敗件数の記録先を設定する。
func WithRecorder(r metrics.Recorder) ControllerOption {
	return func(c *ListController) {
		c.recorder = r
	}
}

// NewListController はListControllerを生成する。
func NewListController(api API, notifier notify.Notifier, logger *slog.Logger, opts ...ControllerOption) *ListController {
	c := &ListController{
		api:      api,
		notifier: notifier,
		logger:   logger,
		recorder: metrics.Nop{},
		pageNo:   1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load は指定ページを取得して保持内容を置き換える。
// 失敗時は保持内容を変えずにエラーメッセージを記録し、通知する。
func (c *ListController) Load(ctx context.Context, pageNo int) error {
	if pageNo < 1 {
		pageNo = 1
	}

	c.mu.Lock()
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()

	res, err := c.api.FetchList(ctx, pageNo)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		msg := errmsg.Describe(err)
		c.errMsg = msg
		c.mu.Unlock()

		c.logger.WarnContext(ctx, "TODO一覧の取得に失敗しました",
			slog.Int("page_no", pageNo),
			slog.String("error", err.Error()),
		)
		notify.Error(c.notifier, msg)
		return err
	}
	c.items = res.List
	info := res.PageInfo
	c.pageInfo = &info
	c.pageNo = pageNo
	if info.PageNo > 0 {
		c.pageNo = info.PageNo
	}
	c.mu.Unlock()
	return nil
}

// Refetch は現在のページを再取得する。
func (c *ListController) Refetch(ctx context.Context) error {
	c.mu.RLock()
	pageNo := c.pageNo
	c.mu.RUnlock()
	return c.Load(ctx, pageNo)
}

// Invalidate は保持している一覧を破棄する。ページ番号は維持する。
func (c *ListController) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.pageInfo = nil
}

// Items は保持している一覧のコピーを返す。
func (c *ListController) Items() []model.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Task, len(c.items))
	copy(out, c.items)
	return out
}

// PageInfo は保持しているページ情報を返す。未取得の場合はfalse。
func (c *ListController) PageInfo() (model.PageInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pageInfo == nil {
		return model.PageInfo{}, false
	}
	return *c.pageInfo, true
}

// Err は直近の取得失敗のメッセージを返す。失敗していなければ空文字列。
func (c *ListController) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// Loading は取得中かどうかを返す。
func (c *ListController) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Create はTODOを作成し、成功時は一覧を再取得する。
// 作成自体の成否のみを返し、再取得の失敗は通知とログで扱う。
func (c *ListController) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	res, err := c.api.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	c.refresh(ctx)
	return res, nil
}

// Delete は1件のTODOを削除し、成功時は一覧を再取得する。
func (c *ListController) Delete(ctx context.Context, id int64) error {
	if _, err := c.api.Delete(ctx, id); err != nil {
		return err
	}
	c.refresh(ctx)
	return nil
}

func (c *ListController) refresh(ctx context.Context) {
	c.Invalidate()
	_ = c.Refetch(ctx)
}

// DeleteFailure は一括削除で失敗した1件。
type DeleteFailure struct {
	ID      int64
	Message string
}

// BulkDeleteReport は一括削除の結果。
type BulkDeleteReport struct {
	Succeeded []int64
	Failed    []DeleteFailure
}

// Total は対象件数を返す。
func (r BulkDeleteReport) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Partial は一部のみ成功したかどうかを返す。
func (r BulkDeleteReport) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Failed) > 0
}

// Summary は結果を1行で要約する。
func (r BulkDeleteReport) Summary() string {
	switch {
	case r.Total() == 0:
		return ""
	case len(r.Failed) == 0:
		return fmt.Sprintf("%d件のTODOを削除しました", len(r.Succeeded))
	case len(r.Succeeded) == 0:
		return fmt.Sprintf("%s（%d件）", DeleteFailedMessage, len(r.Failed))
	default:
		return fmt.Sprintf("%d件中%d件のTODOを削除しました（%d件失敗）", r.Total(), len(r.Succeeded), len(r.Failed))
	}
}

// BulkDelete はidsを先頭から1件ずつ順に削除する。
// 失敗しても中断せず、各失敗を結果に記録する。
// 1件でも成功した場合は一覧を再取得する。
func (c *ListController) BulkDelete(ctx context.Context, ids []int64) BulkDeleteReport {
	var report BulkDeleteReport
	if len(ids) == 0 {
		return report
	}

	for _, id := range ids {
		if _, err := c.api.Delete(ctx, id); err != nil {
			c.logger.WarnContext(ctx, "TODOの削除に失敗しました",
				slog.Int64("topics_id", id),
				slog.String("error", err.Error()),
			)
			report.Failed = append(report.Failed, DeleteFailure{ID: id, Message: errmsg.Describe(err)})
			continue
		}
		report.Succeeded = append(report.Succeeded, id)
	}

	c.recorder.RecordBulkDeleteFailures(len(report.Failed))
	c.logger.InfoContext(ctx, "一括削除が完了しました",
		slog.Int("succeeded", len(report.Succeeded)),
		slog.Int("failed", len(report.Failed)),
	)

	if len(report.Failed) == 0 {
		notify.Success(c.notifier, report.Summary())
	} else {
		notify.Error(c.notifier, report.Summary())
	}

	if len(report.Succeeded) > 0 {
		c.refresh(ctx)
	}
	return report
}
