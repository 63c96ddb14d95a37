// Package todo はTODO APIのクライアントと、一覧の取得・一括削除を扱うコントローラを提供する。
package todo

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/taskfront/internal/apiclient"
	"github.com/hitoshi/taskfront/internal/model"
)

// ScopeTodo はTODO APIのエラースコープ。
const ScopeTodo apiclient.Scope = "todo"

// FailedMessage はTODO APIが構造化エラーを返した場合のメッセージ。
const FailedMessage = "APIエラーが発生しました"

// ErrNotImplemented は未実装の操作を呼び出したときに返る。
var ErrNotImplemented = errors.New("todo: 更新は未実装です")

// Endpoints はTODO APIのパス。Deleteは末尾にIDを連結するプレフィックス。
type Endpoints struct {
	List   string
	Create string
	Delete string
}

// DefaultEndpoints は既定のAPIパスを返す。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		List:   "/rcms-api/3/todos",
		Create: "/rcms-api/3/todo",
		Delete: "/rcms-api/3/todo/delete",
	}
}

// ListResult は一覧取得APIの応答。
type ListResult struct {
	List     []model.Task   `json:"list"`
	PageInfo model.PageInfo `json:"pageInfo"`
	Messages []string       `json:"messages,omitempty"`
}

// CreateInput はTODO作成APIに送信する内容。
type CreateInput struct {
	Subject  string `json:"subject"`
	Contents string `json:"contents"`
	OpenFlg  int    `json:"open_flg"`
	YMD      string `json:"ymd"`
	DueYMD   string `json:"due_ymd"`
}

// CreateResult はTODO作成APIの応答。
type CreateResult struct {
	ID       model.FlexInt `json:"id"`
	Messages []string      `json:"messages,omitempty"`
}

// DeleteResult はTODO削除APIの応答。
type DeleteResult struct {
	Messages []string `json:"messages,omitempty"`
}

// UpdateInput はTODO更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	ID       int64
	Subject  *string
	Contents *string
	DueYMD   *string
}

// Client はTODO APIのクライアント。すべてのリクエストでCookieを送受信する。
type Client struct {
	exec      *apiclient.Executor
	endpoints Endpoints
}

// NewClient はClientを生成する。endpointsの空のパスは既定値で補う。
func NewClient(exec *apiclient.Executor, endpoints Endpoints) *Client {
	def := DefaultEndpoints()
	if endpoints.List == "" {
		endpoints.List = def.List
	}
	if endpoints.Create == "" {
		endpoints.Create = def.Create
	}
	if endpoints.Delete == "" {
		endpoints.Delete = def.Delete
	}
	endpoints.Delete = strings.TrimRight(endpoints.Delete, "/")
	return &Client{exec: exec, endpoints: endpoints}
}

// FetchList は指定ページの一覧を取得する。1未満のページ番号は1として扱う。
func (c *Client) FetchList(ctx context.Context, pageNo int) (*ListResult, error) {
	if pageNo < 1 {
		pageNo = 1
	}
	return apiclient.Execute[ListResult](ctx, c.exec, apiclient.Request{
		Method:      http.MethodGet,
		Path:        c.endpoints.List,
		Query:       url.Values{"pageNo": {strconv.Itoa(pageNo)}},
		Credentials: true,
	}, FailedMessage, ScopeTodo)
}

// Create はTODOを作成する。
func (c *Client) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	return apiclient.Execute[CreateResult](ctx, c.exec, apiclient.Request{
		Method:      http.MethodPost,
		Path:        c.endpoints.Create,
		Body:        in,
		Credentials: true,
	}, FailedMessage, ScopeTodo)
}

// Delete は1件のTODOを削除する。
func (c *Client) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	return apiclient.Execute[DeleteResult](ctx, c.exec, apiclient.Request{
		Method:      http.MethodPost,
		Path:        c.endpoints.Delete + "/" + strconv.FormatInt(id, 10),
		Credentials: true,
	}, FailedMessage, ScopeTodo)
}

// Update は未実装であり、常にErrNotImplementedを返す。
func (c *Client) Update(ctx context.Context, in UpdateInput) error {
	return ErrNotImplemented
}
