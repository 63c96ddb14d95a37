// Package relay はブラウザからのAPI呼び出しをリモートAPIへ中継する。
// 同一オリジンで受けたリクエストをそのまま転送し、セッションCookieを往復させる。
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskfront/internal/metrics"
	"github.com/hitoshi/taskfront/internal/middleware"
)

// FailedMessage は中継先への接続に失敗したときのエラーメッセージ。
const FailedMessage = "プロキシリクエストに失敗しました"

// Methods は中継を受け付けるHTTPメソッド。
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// Handler は中継リクエストを処理するHTTPハンドラー。
type Handler struct {
	upstream   *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	recorder   metrics.Recorder
}

// Option はHandlerの設定を変更する。
type Option func(*Handler)

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(r metrics.Recorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

// NewHandler はHandlerを生成する。upstreamは中継先APIのベースURL。
// httpClientにはSSRFガード付きのクライアントを渡すことを想定している。
func NewHandler(upstream string, httpClient *http.Client, logger *slog.Logger, opts ...Option) (*Handler, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("中継先URLのパースに失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("中継先URLが不正です: %q", upstream)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	h := &Handler{
		upstream:   u,
		httpClient: httpClient,
		logger:     logger,
		recorder:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Mount はprefix配下の全パスを中継するルートをrに登録する。
// 例: prefix が /api/proxy のとき /api/proxy/rcms-api/1/login は <upstream>/rcms-api/1/login へ転送する。
func (h *Handler) Mount(r chi.Router, prefix string) {
	prefix = "/" + strings.Trim(prefix, "/")
	r.Route(prefix, func(r chi.Router) {
		for _, m := range Methods {
			r.Method(m, "/*", h)
		}
	})
}

// ServeHTTP はリクエストを中継先に転送し、レスポンスをそのまま返す。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := h.targetURL(chi.URLParam(r, "*"), r.URL.RawQuery)
	requestID := middleware.RequestIDFromContext(r.Context())

	h.logger.InfoContext(r.Context(), "中継リクエスト",
		slog.String("method", r.Method),
		slog.String("target", target),
		slog.String("request_id", requestID),
	)

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			// 本文が読めなくても本文なしで転送する
			h.logger.WarnContext(r.Context(), "リクエスト本文の読み取りに失敗しました",
				slog.String("error", err.Error()),
				slog.String("request_id", requestID),
			)
		} else {
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie := r.Header.Get("Cookie"); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	for _, c := range resp.Header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", c)
	}
	// リダイレクトは追従しないため、遷移先はそのまま返す
	if loc := resp.Header.Get("Location"); loc != "" {
		w.Header().Set("Location", loc)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)

	h.recorder.RecordRelayStatus(resp.StatusCode)
	h.logger.InfoContext(r.Context(), "中継レスポンス",
		slog.Int("status", resp.StatusCode),
		slog.Int("set_cookie_count", len(resp.Header.Values("Set-Cookie"))),
		slog.String("request_id", requestID),
	)
}

func (h *Handler) targetURL(path, rawQuery string) string {
	u := *h.upstream
	u.Path = h.upstream.Path + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "中継リクエストに失敗しました",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	h.recorder.RecordRelayStatus(http.StatusInternalServerError)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": FailedMessage})
}
