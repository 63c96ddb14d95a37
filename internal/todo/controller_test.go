package todo

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hitoshi/taskfront/internal/apiclient"
	"github.com/hitoshi/taskfront/internal/errmsg"
	"github.com/hitoshi/taskfront/internal/model"
	"github.com/hitoshi/taskfront/internal/notify"
)

type fakeAPI struct {
	list       *ListResult
	listErr    error
	fetched    []int
	deleted    []int64
	deleteErrs map[int64]error
	created    []CreateInput
	createErr  error
}

func (f *fakeAPI) FetchList(ctx context.Context, pageNo int) (*ListResult, error) {
	f.fetched = append(f.fetched, pageNo)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeAPI) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &CreateResult{ID: 99}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	f.deleted = append(f.deleted, id)
	if err := f.deleteErrs[id]; err != nil {
		return nil, err
	}
	return &DeleteResult{}, nil
}

type countingRecorder struct {
	failures int
}

func (r *countingRecorder) RecordRequest(string, string, time.Duration) {}
func (r *countingRecorder) RecordRelayStatus(int)                       {}
func (r *countingRecorder) RecordBulkDeleteFailures(n int)              { r.failures += n }

func sampleList(pageNo int) *ListResult {
	return &ListResult{
		List: []model.Task{
			{ID: 1, Subject: "a"},
			{ID: 2, Subject: "b"},
			{ID: 3, Subject: "c"},
		},
		PageInfo: model.PageInfo{TotalCount: 3, PerPage: 10, TotalPages: 1, PageNo: pageNo},
	}
}

func newTestController(api API) (*ListController, *notify.Recorder, *countingRecorder) {
	var buf bytes.Buffer
	rec := &notify.Recorder{}
	metricsRec := &countingRecorder{}
	return NewListController(api, rec, newTestLogger(&buf), WithRecorder(metricsRec)), rec, metricsRec
}

func TestListController_Load(t *testing.T) {
	api := &fakeAPI{list: sampleList(2)}
	c, rec, _ := newTestController(api)

	if err := c.Load(context.Background(), 2); err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if len(c.Items()) != 3 {
		t.Errorf("Items() = %d件, want 3", len(c.Items()))
	}
	info, ok := c.PageInfo()
	if !ok || info.PageNo != 2 {
		t.Errorf("PageInfo() = %+v, %v", info, ok)
	}
	if c.Err() != "" || c.Loading() {
		t.Errorf("Err() = %q, Loading() = %v", c.Err(), c.Loading())
	}
	if len(rec.Messages()) != 0 {
		t.Errorf("成功時に通知は送られない: %+v", rec.Messages())
	}
}

func TestListController_LoadFailureKeepsItems(t *testing.T) {
	api := &fakeAPI{list: sampleList(1)}
	c, rec, _ := newTestController(api)
	c.Load(context.Background(), 1)

	api.listErr = &apiclient.Error{Scope: ScopeTodo, Kind: apiclient.KindProtocol, Message: "HTTP エラー: 500", StatusCode: 500}
	if err := c.Load(context.Background(), 1); err == nil {
		t.Fatal("エラーが返されるべき")
	}

	if c.Err() != "HTTP エラー: 500" {
		t.Errorf("Err() = %q", c.Err())
	}
	if len(c.Items()) != 3 {
		t.Errorf("失敗時に保持内容が消えた: %d件", len(c.Items()))
	}
	last, _ := rec.Last()
	if last.Level != notify.LevelError || last.Message != "HTTP エラー: 500" {
		t.Errorf("通知 = %+v", last)
	}
}

func TestListController_RefetchUsesCurrentPage(t *testing.T) {
	api := &fakeAPI{list: sampleList(3)}
	c, _, _ := newTestController(api)

	c.Refetch(context.Background())
	c.Load(context.Background(), 3)
	c.Refetch(context.Background())

	want := []int{1, 3, 3}
	if len(api.fetched) != len(want) {
		t.Fatalf("fetched = %v, want %v", api.fetched, want)
	}
	for i := range want {
		if api.fetched[i] != want[i] {
			t.Errorf("fetched[%d] = %d, want %d", i, api.fetched[i], want[i])
		}
	}
}

func TestListController_Invalidate(t *testing.T) {
	api := &fakeAPI{list: sampleList(1)}
	c, _, _ := newTestController(api)
	c.Load(context.Background(), 1)

	c.Invalidate()

	if len(c.Items()) != 0 {
		t.Errorf("Items() = %d件, want 0", len(c.Items()))
	}
	if _, ok := c.PageInfo(); ok {
		t.Error("PageInfo() は未取得になるべき")
	}
}

func TestListController_CreateRefetches(t *testing.T) {
	api := &fakeAPI{list: sampleList(1)}
	c, _, _ := newTestController(api)

	res, err := c.Create(context.Background(), CreateInput{Subject: "x"})
	if err != nil {
		t.Fatalf("Create がエラーを返した: %v", err)
	}
	if res.ID != 99 {
		t.Errorf("ID = %d", res.ID)
	}
	if len(api.fetched) != 1 {
		t.Errorf("作成後に再取得されていない: fetched = %v", api.fetched)
	}
}

func TestListController_BulkDelete_PartialFailure(t *testing.T) {
	failure := &apiclient.Error{
		Scope:   ScopeTodo,
		Kind:    apiclient.KindDomain,
		Message: FailedMessage,
		Errors:  []model.NormalizedError{{Code: "not_found"}},
	}
	api := &fakeAPI{list: sampleList(1), deleteErrs: map[int64]error{2: failure}}
	c, rec, metricsRec := newTestController(api)

	report := c.BulkDelete(context.Background(), []int64{1, 2, 3})

	// 2件目が失敗しても中断せず順に処理する
	if len(api.deleted) != 3 || api.deleted[0] != 1 || api.deleted[1] != 2 || api.deleted[2] != 3 {
		t.Errorf("deleted = %v", api.deleted)
	}
	if len(report.Succeeded) != 2 {
		t.Errorf("Succeeded = %v, want 2件", report.Succeeded)
	}
	if len(report.Failed) != 1 || report.Failed[0].ID != 2 {
		t.Fatalf("Failed = %+v", report.Failed)
	}
	if report.Failed[0].Message != errmsg.TranslateCode("not_found") {
		t.Errorf("Failed[0].Message = %q", report.Failed[0].Message)
	}
	if !report.Partial() {
		t.Error("Partial() は true であるべき")
	}

	last, _ := rec.Last()
	if last.Level != notify.LevelError {
		t.Errorf("一部失敗は成功通知にしない: %+v", last)
	}
	if last.Message != "3件中2件のTODOを削除しました（1件失敗）" {
		t.Errorf("通知 = %q", last.Message)
	}
	if metricsRec.failures != 1 {
		t.Errorf("失敗件数の記録 = %d, want 1", metricsRec.failures)
	}
	if len(api.fetched) != 1 {
		t.Errorf("削除後に再取得されていない: fetched = %v", api.fetched)
	}
}

func TestListController_BulkDelete_AllSucceeded(t *testing.T) {
	api := &fakeAPI{list: sampleList(1)}
	c, rec, _ := newTestController(api)

	report := c.BulkDelete(context.Background(), []int64{1, 2})

	if report.Partial() || len(report.Failed) != 0 {
		t.Errorf("report = %+v", report)
	}
	last, _ := rec.Last()
	if last.Level != notify.LevelSuccess || last.Message != "2件のTODOを削除しました" {
		t.Errorf("通知 = %+v", last)
	}
}

func TestListController_BulkDelete_AllFailed(t *testing.T) {
	failure := &apiclient.Error{Scope: ScopeTodo, Kind: apiclient.KindTransport, Message: apiclient.NetworkErrorMessage}
	api := &fakeAPI{list: sampleList(1), deleteErrs: map[int64]error{1: failure, 2: failure}}
	c, rec, _ := newTestController(api)

	report := c.BulkDelete(context.Background(), []int64{1, 2})

	if report.Partial() || len(report.Succeeded) != 0 || len(report.Failed) != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.Failed[0].Message != apiclient.NetworkErrorMessage {
		t.Errorf("Failed[0].Message = %q", report.Failed[0].Message)
	}
	last, _ := rec.Last()
	if last.Level != notify.LevelError || last.Message != "TODOの削除に失敗しました（2件）" {
		t.Errorf("通知 = %+v", last)
	}
	if len(api.fetched) != 0 {
		t.Errorf("すべて失敗した場合は再取得しない: fetched = %v", api.fetched)
	}
}

func TestListController_BulkDelete_Empty(t *testing.T) {
	api := &fakeAPI{}
	c, rec, _ := newTestController(api)

	report := c.BulkDelete(context.Background(), nil)

	if report.Total() != 0 || report.Summary() != "" {
		t.Errorf("report = %+v", report)
	}
	if len(rec.Messages()) != 0 || len(api.deleted) != 0 {
		t.Error("対象がない場合は何もしない")
	}
}
