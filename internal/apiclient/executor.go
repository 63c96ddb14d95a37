// Package apiclient はリモートAPIへのリクエスト実行と応答形状の検証を提供する。
// 通信・プロトコル上の失敗を型付きエラー *Error に変換する唯一の境界となる。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/taskfront/internal/metrics"
	"github.com/hitoshi/taskfront/internal/model"
)

// Request は1回のAPI呼び出しの内容を表す。
// Credentials が true の場合のみCookieを送受信する。
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any
	Credentials bool
	Header      http.Header
}

// envelope はすべてのレスポンスに共通する errors フィールド。
type envelope struct {
	Errors model.ErrorList `json:"errors"`
}

// Executor はリモートAPIへのリクエストを実行する。
// タイムアウトとリトライは行わない。キャンセルは呼び出し元のcontextに従う。
type Executor struct {
	baseURL   string
	transport http.RoundTripper
	logger    *slog.Logger
	recorder  metrics.Recorder

	mu  sync.RWMutex
	jar http.CookieJar
}

// Option はExecutorの設定を変更する。
type Option func(*Executor)

// WithTransport は下位のHTTPトランスポートを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Executor) {
		e.transport = rt
	}
}

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Executor) {
		e.recorder = r
	}
}

// NewExecutor はExecutorを生成する。baseURLの末尾スラッシュは除去する。
func NewExecutor(baseURL string, logger *slog.Logger, opts ...Option) (*Executor, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("APIのベースURLが不正です: %w", err)
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	e := &Executor{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: http.DefaultTransport,
		logger:    logger,
		recorder:  metrics.Nop{},
		jar:       jar,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("Cookie Jarの生成に失敗しました: %w", err)
	}
	return jar, nil
}

// ClearCookies は保持しているセッションCookieをすべて破棄する。
func (e *Executor) ClearCookies() error {
	jar, err := newJar()
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.jar = jar
	e.mu.Unlock()
	return nil
}

// cookies は指定パスに対して送信されるCookieを返す。
func (e *Executor) cookies(path string) []*http.Cookie {
	u, err := url.Parse(e.baseURL + path)
	if err != nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.jar.Cookies(u)
}

// clientFor は資格情報の扱いに応じたHTTPクライアントを返す。
func (e *Executor) clientFor(credentials bool) *http.Client {
	c := &http.Client{Transport: e.transport}
	if credentials {
		e.mu.RLock()
		c.Jar = e.jar
		e.mu.RUnlock()
	}
	return c
}

func (e *Executor) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := e.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}

// Execute はリクエストを実行し、成功時はレスポンスをTとしてデコードして返す。
//
// 失敗の判定はHTTPステータスとレスポンスボディの両方で行う:
//   - Content-TypeがJSONでない場合は「サーバーエラー: <status>」
//   - 非2xxでerrorsがあればfailureMessageとerrors、なければ「HTTP エラー: <status>」
//   - 2xxでもerrorsがあればfailureMessageとerrors（ステータスコードは付与しない）
//
// 通信失敗・ボディ解析失敗はすべてNetworkErrorMessageの*Errorに変換する。
func Execute[T any](ctx context.Context, e *Executor, req Request, failureMessage string, scope Scope) (*T, error) {
	start := time.Now()
	out, err := execute[T](ctx, e, req, failureMessage, scope)
	duration := time.Since(start)

	outcome := "ok"
	if err != nil {
		apiErr, _ := AsError(err)
		outcome = apiErr.Kind.String()
		level := slog.LevelWarn
		if apiErr.Kind == KindTransport {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("scope", string(scope)),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("kind", apiErr.Kind.String()),
			slog.Int("error_count", len(apiErr.Errors)),
		}
		if apiErr.HasStatus() {
			attrs = append(attrs, slog.Int("status", apiErr.StatusCode))
		}
		e.logger.LogAttrs(ctx, level, "API呼び出しに失敗しました", attrs...)
	} else {
		e.logger.Debug("API呼び出しが完了しました",
			slog.String("scope", string(scope)),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
		)
	}
	e.recorder.RecordRequest(string(scope), outcome, duration)

	return out, err
}

func execute[T any](ctx context.Context, e *Executor, req Request, failureMessage string, scope Scope) (*T, error) {
	httpReq, err := e.newRequest(ctx, req)
	if err != nil {
		e.logger.Error("リクエストの構築に失敗しました", slog.String("error", err.Error()))
		return nil, newNetworkError(scope, KindTransport)
	}

	resp, err := e.clientFor(req.Credentials).Do(httpReq)
	if err != nil {
		e.logger.Error("HTTPリクエストの送信に失敗しました",
			slog.String("scope", string(scope)),
			slog.String("error", err.Error()),
		)
		return nil, newNetworkError(scope, KindTransport)
	}
	defer resp.Body.Close()

	status := resp.StatusCode

	if !isJSON(resp.Header.Get("Content-Type")) {
		return nil, &Error{
			Scope:      scope,
			Kind:       KindProtocol,
			Message:    fmt.Sprintf("サーバーエラー: %d", status),
			StatusCode: status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("scope", string(scope)),
			slog.String("error", err.Error()),
		)
		return nil, newNetworkError(scope, KindTransport)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		e.logger.Error("レスポンスJSONのパースに失敗しました",
			slog.String("scope", string(scope)),
			slog.Int("http_status", status),
			slog.String("error", err.Error()),
		)
		return nil, newNetworkError(scope, KindProtocol)
	}

	if status < 200 || status > 299 {
		if len(env.Errors) > 0 {
			return nil, &Error{
				Scope:      scope,
				Kind:       KindDomain,
				Message:    failureMessage,
				Errors:     env.Errors,
				StatusCode: status,
			}
		}
		return nil, &Error{
			Scope:      scope,
			Kind:       KindProtocol,
			Message:    fmt.Sprintf("HTTP エラー: %d", status),
			StatusCode: status,
		}
	}

	// 上流APIは2xxでも論理エラーをerrorsで返すことがある
	if len(env.Errors) > 0 {
		return nil, &Error{
			Scope:   scope,
			Kind:    KindDomain,
			Message: failureMessage,
			Errors:  env.Errors,
		}
	}

	out := new(T)
	if err := json.Unmarshal(body, out); err != nil {
		e.logger.Error("レスポンスのデコードに失敗しました",
			slog.String("scope", string(scope)),
			slog.String("error", err.Error()),
		)
		return nil, newNetworkError(scope, KindProtocol)
	}
	return out, nil
}

// isJSON はContent-TypeがJSONを示すかどうかを判定する。
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
