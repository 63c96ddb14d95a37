package form

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/taskfront/internal/model"
	"github.com/hitoshi/taskfront/internal/notify"
	"github.com/hitoshi/taskfront/internal/todo"
)

// TaskValues はTODO作成フォームの値。
type TaskValues struct {
	Subject  string
	Contents string
	DueYMD   string
}

func taskSchema(now func() time.Time) Schema[TaskValues] {
	return Schema[TaskValues]{
		Fields: []string{"subject", "contents", "due_ymd"},
		Get: func(v TaskValues, field string) string {
			switch field {
			case "subject":
				return v.Subject
			case "contents":
				return v.Contents
			case "due_ymd":
				return v.DueYMD
			}
			return ""
		},
		Set: func(v *TaskValues, field, value string) {
			switch field {
			case "subject":
				v.Subject = value
			case "contents":
				v.Contents = value
			case "due_ymd":
				v.DueYMD = value
			}
		},
		ValidateField: func(v TaskValues, field string) string {
			switch field {
			case "subject":
				return ValidateSubject(v.Subject)
			case "contents":
				return ValidateContents(v.Contents)
			case "due_ymd":
				return ValidateDueDate(v.DueYMD, now())
			}
			return ""
		},
	}
}

// TaskCreator はTODOを作成する。todo.ListController を渡すと作成後に一覧が再取得される。
type TaskCreator interface {
	Create(ctx context.Context, in todo.CreateInput) (*todo.CreateResult, error)
}

// TaskForm はTODO作成フォーム。期日の初期値は今日。
type TaskForm struct {
	*Controller[TaskValues]

	creator  TaskCreator
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// TaskFormOption はTaskFormの設定を変更する。
type TaskFormOption func(*TaskForm)

// WithClock は現在時刻の取得方法を差し替える。
func WithClock(now func() time.Time) TaskFormOption {
	return func(f *TaskForm) {
		f.now = now
	}
}

// NewTaskForm はTaskFormを生成する。
func NewTaskForm(creator TaskCreator, notifier notify.Notifier, logger *slog.Logger, opts ...TaskFormOption) *TaskForm {
	f := &TaskForm{
		creator:  creator,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.Controller = NewController(taskSchema(f.clock), func() TaskValues {
		return TaskValues{DueYMD: f.today()}
	})
	return f
}

func (f *TaskForm) clock() time.Time {
	return f.now()
}

func (f *TaskForm) today() string {
	return f.now().Format(model.DateLayout)
}

// Submit はフォームを検証してTODOを作成する。成功時はフォームを初期状態に戻す。
func (f *TaskForm) Submit(ctx context.Context) SubmitOutcome {
	out := f.Controller.Submit(ctx, f.create)
	switch out.Status {
	case OutcomeSucceeded:
		f.Reset()
		notify.Success(f.notifier, todo.CreatedMessage)
	case OutcomeFailed:
		f.logger.WarnContext(ctx, "TODOの作成に失敗しました", slog.String("error", out.Err.Error()))
		applyFailure(f.Controller, out.Err, f.notifier)
	}
	return out
}

func (f *TaskForm) create(ctx context.Context, v TaskValues) error {
	_, err := f.creator.Create(ctx, todo.CreateInput{
		Subject:  v.Subject,
		Contents: v.Contents,
		OpenFlg:  1,
		YMD:      f.today(),
		DueYMD:   v.DueYMD,
	})
	return err
}
