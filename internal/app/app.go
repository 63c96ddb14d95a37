package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/taskfront/internal/config"
	"github.com/hitoshi/taskfront/internal/handler"
	"github.com/hitoshi/taskfront/internal/logger"
	"github.com/hitoshi/taskfront/internal/metrics"
	"github.com/hitoshi/taskfront/internal/middleware"
	"github.com/hitoshi/taskfront/internal/relay"
	"github.com/hitoshi/taskfront/internal/security"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envファイル（ENV_FILEで変更可）を読み込んでから環境変数のConfigを読み込み、
// JSON構造化ログをLOG_LEVELのレベルでセットアップする。
// 既に設定されている環境変数は.envで上書きしない。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの読み込み
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		log.Debug("no env file found, using environment variables", slog.String("file", envFile))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたレベルでログを再構成する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn("invalid LOG_LEVEL, falling back to info", slog.String("error", err.Error()))
	}
	log = logger.SetupDefault(w, level)

	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。outはクライアントコマンドの出力先、logwはログの出力先。
// serveはctxがキャンセルされるとグレースフルシャットダウンする。
func Run(ctx context.Context, out, logw io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(logw)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	if cmd.IsClient() {
		var rest []string
		if len(args) > 0 {
			rest = args[1:]
		}
		return runClient(ctx, cmd, rest, cfg, out, log)
	}
	return runServe(ctx, cfg, log)
}

// newRelayClient は中継先への送信に使うHTTPクライアントを生成する。
// SSRFガードが有効な場合は中継先URLを静的に検証し、接続先IPを検証するクライアントを返す。
func newRelayClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.RelaySSRFGuard {
		return &http.Client{
			Timeout: cfg.RelayTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}, nil
	}

	guard := security.NewUpstreamGuard(upstreamPorts(cfg.APIBaseURL)...)
	if err := guard.ValidateURL(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("relay upstream rejected: %w", err)
	}
	return guard.NewSafeClient(cfg.RelayTimeout), nil
}

// upstreamPorts は標準ポートに加え、URLで明示されたポートを許可対象として返す。
func upstreamPorts(rawURL string) []int {
	ports := []int{80, 443}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ports
	}
	if p, err := strconv.Atoi(u.Port()); err == nil && p != 80 && p != 443 {
		ports = append(ports, p)
	}
	return ports
}

// runServe はリレーサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. 中継先クライアント
	relayClient, err := newRelayClient(cfg)
	if err != nil {
		return err
	}
	relayHandler, err := relay.NewHandler(cfg.APIBaseURL, relayClient, log, relay.WithRecorder(collector))
	if err != nil {
		return fmt.Errorf("failed to build relay: %w", err)
	}

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitRelay), log)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Relay:             relayHandler,
		RelayPrefix:       cfg.RelayPrefix,
		Gatherer:          registry,
	}
	if cfg.RelayCSRF {
		deps.CSRF = &middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			Logger:       log,
		}
	}

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RelayTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("relay_prefix", cfg.RelayPrefix),
			slog.Bool("ssrf_guard", cfg.RelaySSRFGuard),
			slog.Bool("csrf", cfg.RelayCSRF),
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down relay server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("relay server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
