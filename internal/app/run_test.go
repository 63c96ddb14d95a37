package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeAPI はリモートAPIを模したテスト用サーバー。
// 1つのセッションCookieとメモリ上のTODO一覧だけを保持する。
type fakeAPI struct {
	mu     sync.Mutex
	tasks  []map[string]any
	nextID int64
	srv    *httptest.Server
}

const (
	fakeEmail    = "taro@example.com"
	fakePassword = "secret"
	fakeSession  = "sess-1"
)

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	api := &fakeAPI{
		nextID: 3,
		tasks: []map[string]any{
			{"topics_id": 1, "subject": "買い物", "contents": "<b>牛乳</b>を買う", "due_ymd": "2000-01-01"},
			{"topics_id": 2, "subject": "掃除", "contents": "", "due_ymd": "2999-12-31"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rcms-api/1/member/register", api.register)
	mux.HandleFunc("POST /rcms-api/1/login", api.login)
	mux.HandleFunc("GET /rcms-api/1/profile", api.requireSession(api.profile))
	mux.HandleFunc("GET /rcms-api/3/todos", api.requireSession(api.list))
	mux.HandleFunc("POST /rcms-api/3/todo", api.requireSession(api.create))
	mux.HandleFunc("POST /rcms-api/3/todo/delete/{id}", api.requireSession(api.delete))

	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func writeFakeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func fakeErrors(codes ...string) map[string]any {
	list := make([]map[string]string, 0, len(codes))
	for _, c := range codes {
		list = append(list, map[string]string{"code": c})
	}
	return map[string]any{"errors": list}
}

func (a *fakeAPI) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value != fakeSession {
			writeFakeJSON(w, http.StatusUnauthorized, fakeErrors("login_required"))
			return
		}
		next(w, r)
	}
}

func (a *fakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, fakeErrors("validation_error"))
		return
	}
	if body["email"] == fakeEmail {
		writeFakeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{{"code": "email_already_exists", "field": "email"}},
		})
		return
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"id": 7, "messages": []string{"registered"}})
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, fakeErrors("validation_error"))
		return
	}
	if body["email"] != fakeEmail || body["password"] != fakePassword {
		writeFakeJSON(w, http.StatusUnauthorized, fakeErrors("invalid_credentials"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "sid", Value: fakeSession, Path: "/", HttpOnly: true})
	writeFakeJSON(w, http.StatusOK, map[string]any{"grant_token": "token"})
}

func (a *fakeAPI) profile(w http.ResponseWriter, r *http.Request) {
	writeFakeJSON(w, http.StatusOK, map[string]any{"name1": "山田", "name2": "太郎", "member_id": 5})
}

func (a *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, map[string]any{
		"list": a.tasks,
		"pageInfo": map[string]int{
			"totalCnt":     len(a.tasks),
			"perPage":      10,
			"totalPageCnt": 1,
			"pageNo":       1,
			"firstIndex":   1,
			"lastIndex":    len(a.tasks),
		},
	})
}

func (a *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, fakeErrors("validation_error"))
		return
	}

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	body["topics_id"] = id
	a.tasks = append(a.tasks, body)
	a.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, map[string]any{"id": strconv.FormatInt(id, 10)})
}

func (a *fakeAPI) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFakeJSON(w, http.StatusBadRequest, fakeErrors("invalid_format"))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, task := range a.tasks {
		if fmt.Sprint(task["topics_id"]) == strconv.FormatInt(id, 10) {
			a.tasks = append(a.tasks[:i], a.tasks[i+1:]...)
			writeFakeJSON(w, http.StatusOK, map[string]any{"messages": []string{"deleted"}})
			return
		}
	}
	writeFakeJSON(w, http.StatusNotFound, fakeErrors("not_found"))
}

func (a *fakeAPI) taskCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tasks)
}

// runClientCommand はフェイクAPIに向けてクライアントコマンドを実行し、標準出力の内容を返す。
func runClientCommand(t *testing.T, api *fakeAPI, args ...string) (string, error) {
	t.Helper()
	noEnvFile(t)
	t.Setenv("API_BASE_URL", api.srv.URL)
	t.Setenv("LOG_LEVEL", "error")

	var out, logs bytes.Buffer
	err := Run(context.Background(), &out, &logs, args)
	return out.String(), err
}

func loginArgs(cmd string, extra ...string) []string {
	return append([]string{cmd, "-email", fakeEmail, "-password", fakePassword}, extra...)
}

func TestRun_Login_Succeeds(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("login")...)
	if err != nil {
		t.Fatalf("login failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[success] 山田 太郎さん、ようこそ！") {
		t.Errorf("ログイン成功の通知がない: %q", out)
	}
}

func TestRun_Login_UsesCredentialsFromEnvironment(t *testing.T) {
	api := newFakeAPI(t)
	t.Setenv("TASKFRONT_EMAIL", fakeEmail)
	t.Setenv("TASKFRONT_PASSWORD", fakePassword)

	out, err := runClientCommand(t, api, "login")
	if err != nil {
		t.Fatalf("login failed: %v\n%s", err, out)
	}
}

func TestRun_Login_WrongPassword_Fails(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, "login", "-email", fakeEmail, "-password", "wrong")
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
	if !strings.Contains(out, "[error] ") {
		t.Errorf("エラー通知がない: %q", out)
	}
}

func TestRun_Login_InvalidInput_PrintsFieldErrors(t *testing.T) {
	api := newFakeAPI(t)
	unsetEnv(t, "TASKFRONT_EMAIL", "TASKFRONT_PASSWORD")

	out, err := runClientCommand(t, api, "login", "-email", "not-an-email")
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
	for _, want := range []string{
		"email: 有効なメールアドレスを入力してください",
		"password: パスワードを入力してください",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got %q", want, out)
		}
	}
}

func TestRun_Whoami_PrintsMember(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("whoami")...)
	if err != nil {
		t.Fatalf("whoami failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "山田 太郎 (member_id=5)") {
		t.Errorf("会員情報が表示されていない: %q", out)
	}
}

func TestRun_Todos_PrintsListWithOverdueMarker(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("todos")...)
	if err != nil {
		t.Fatalf("todos failed: %v\n%s", err, out)
	}

	for _, want := range []string{
		"! #1 買い物 [期日 2000-01-01]",
		"牛乳を買う",
		"  #2 掃除 [期日 2999-12-31]",
		"1 / 1 ページ（全2件）",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<b>") {
		t.Errorf("マークアップが除去されていない:\n%s", out)
	}
}

func TestRun_Todos_WithoutLogin_Fails(t *testing.T) {
	api := newFakeAPI(t)

	_, err := runClientCommand(t, api, "todos", "-email", fakeEmail, "-password", "wrong")
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
}

func TestRun_Add_CreatesTaskAndPrintsList(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("add", "-subject", "洗濯", "-contents", "シーツ", "-due", "2999-01-01")...)
	if err != nil {
		t.Fatalf("add failed: %v\n%s", err, out)
	}
	if api.taskCount() != 3 {
		t.Errorf("task count = %d, want 3", api.taskCount())
	}
	for _, want := range []string{"[success] TODOを追加しました", "#3 洗濯 [期日 2999-01-01]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestRun_Add_InvalidInput_DoesNotCallAPI(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("add", "-subject", "", "-due", "2000-01-01")...)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
	if api.taskCount() != 2 {
		t.Errorf("検証失敗時にAPIが呼ばれた: task count = %d", api.taskCount())
	}
	for _, want := range []string{
		"subject: タイトルは必須です",
		"due_ymd: 今日以降の日付を選択してください",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestRun_Delete_ReportsPartialFailure(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("delete", "1", "999")...)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
	if api.taskCount() != 1 {
		t.Errorf("task count = %d, want 1", api.taskCount())
	}
	for _, want := range []string{"2件中1件のTODOを削除しました（1件失敗）", "#999: "} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestRun_Delete_AllSucceed(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("delete", "1", "2")...)
	if err != nil {
		t.Fatalf("delete failed: %v\n%s", err, out)
	}
	if api.taskCount() != 0 {
		t.Errorf("task count = %d, want 0", api.taskCount())
	}
	if !strings.Contains(out, "[success] 2件のTODOを削除しました") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_Delete_RejectsInvalidIDs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"not a number", loginArgs("delete", "abc"), "不正なTODO ID"},
		{"zero", loginArgs("delete", "0"), "不正なTODO ID"},
		{"no ids", loginArgs("delete"), "削除するTODOのIDを指定してください"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			out, err := runClientCommand(t, api, tt.args...)
			if !errors.Is(err, ErrCommandFailed) {
				t.Fatalf("err = %v, want ErrCommandFailed", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output should contain %q, got %q", tt.want, out)
			}
			if api.taskCount() != 2 {
				t.Errorf("task count = %d, want 2", api.taskCount())
			}
		})
	}
}

func TestRun_Register(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{
			name: "success",
			args: []string{"register", "-name1", "佐藤", "-name2", "花子", "-email", "hanako@example.com", "-password", "passw0rd"},
			want: "[success] 会員登録が完了しました",
		},
		{
			name:    "confirm mismatch",
			args:    []string{"register", "-name1", "佐藤", "-name2", "花子", "-email", "hanako@example.com", "-password", "passw0rd", "-confirm", "passw0rd!"},
			wantErr: true,
			want:    "confirmPassword: パスワードが一致しません",
		},
		{
			name:    "weak password",
			args:    []string{"register", "-name1", "佐藤", "-name2", "花子", "-email", "hanako@example.com", "-password", "password"},
			wantErr: true,
			want:    "login_pwd: パスワードは8文字以上で、英字と数字を含む必要があります",
		},
		{
			name:    "server field error",
			args:    []string{"register", "-name1", "山田", "-name2", "太郎", "-email", fakeEmail, "-password", "passw0rd"},
			wantErr: true,
			want:    "email: このメールアドレスは既に登録されています",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			out, err := runClientCommand(t, api, tt.args...)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output should contain %q, got:\n%s", tt.want, out)
			}
		})
	}
}

func TestRun_Logout_ClearsSession(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runClientCommand(t, api, loginArgs("logout")...)
	if err != nil {
		t.Fatalf("logout failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[success] ログアウトしました") {
		t.Errorf("ログアウトの通知がない: %q", out)
	}
}

func TestRun_FlagErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
		want    string
	}{
		{name: "help", args: []string{"todos", "-h"}, wantErr: nil, want: "-page"},
		{name: "unknown flag", args: []string{"add", "-unknown"}, wantErr: ErrCommandFailed, want: "flag provided but not defined"},
		{name: "bad value", args: []string{"todos", "-page", "abc"}, wantErr: ErrCommandFailed, want: "invalid value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			out, err := runClientCommand(t, api, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output should contain %q, got:\n%s", tt.want, out)
			}
		})
	}
}

func TestRun_NotificationsAreAlsoLogged(t *testing.T) {
	api := newFakeAPI(t)
	noEnvFile(t)
	t.Setenv("API_BASE_URL", api.srv.URL)
	t.Setenv("LOG_LEVEL", "info")

	var out, logs bytes.Buffer
	if err := Run(context.Background(), &out, &logs, loginArgs("login")); err != nil {
		t.Fatalf("login failed: %v\n%s", err, out.String())
	}

	found := false
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		if entry["msg"] == "notification" && entry["kind"] == "success" {
			found = true
		}
	}
	if !found {
		t.Errorf("通知がログに出力されていない:\n%s", logs.String())
	}
}

func TestRun_Todos_WritesMetricsTextfile(t *testing.T) {
	api := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "taskfront.prom")
	t.Setenv("METRICS_TEXTFILE", path)

	if out, err := runClientCommand(t, api, loginArgs("todos")...); err != nil {
		t.Fatalf("todos failed: %v\n%s", err, out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}
	for _, want := range []string{
		`taskfront_api_requests_total{outcome="ok",scope="login"} 1`,
		`taskfront_api_requests_total{outcome="ok",scope="todo"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics should contain %q, got:\n%s", want, data)
		}
	}
}

func TestRun_Serve_StopsWhenContextCancelled(t *testing.T) {
	noEnvFile(t)
	t.Setenv("API_BASE_URL", "http://localhost:9000")
	t.Setenv("SERVER_PORT", "0")
	t.Setenv("RELAY_SSRF_GUARD", "false")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, logs bytes.Buffer
	if err := Run(ctx, &out, &logs, []string{"serve"}); err != nil {
		t.Fatalf("Run(serve) = %v, want nil", err)
	}
	if !strings.Contains(logs.String(), "relay server stopped gracefully") {
		t.Errorf("shutdown log missing: %s", logs.String())
	}
}

func TestRun_Serve_RejectsPrivateUpstreamWithGuard(t *testing.T) {
	noEnvFile(t)
	t.Setenv("API_BASE_URL", "http://localhost:9000")
	t.Setenv("SERVER_PORT", "0")
	t.Setenv("RELAY_SSRF_GUARD", "true")

	var out, logs bytes.Buffer
	err := Run(context.Background(), &out, &logs, []string{"serve"})
	if err == nil || !strings.Contains(err.Error(), "relay upstream rejected") {
		t.Fatalf("err = %v, want upstream rejection", err)
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	noEnvFile(t)
	t.Setenv("API_BASE_URL", "")

	var out, logs bytes.Buffer
	if err := Run(context.Background(), &out, &logs, []string{"serve"}); err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_Healthcheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", u.Port())

	var out, logs bytes.Buffer
	if err := Run(context.Background(), &out, &logs, []string{"healthcheck"}); err != nil {
		t.Errorf("healthcheck = %v, want nil", err)
	}
}

func TestRun_Healthcheck_UnhealthyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", u.Port())

	var out, logs bytes.Buffer
	err = Run(context.Background(), &out, &logs, []string{"healthcheck"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("healthcheck = %v, want status error", err)
	}
}
