package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskfront/internal/apiclient"
	"github.com/hitoshi/taskfront/internal/auth"
	"github.com/hitoshi/taskfront/internal/config"
	"github.com/hitoshi/taskfront/internal/errmsg"
	"github.com/hitoshi/taskfront/internal/form"
	"github.com/hitoshi/taskfront/internal/metrics"
	"github.com/hitoshi/taskfront/internal/model"
	"github.com/hitoshi/taskfront/internal/notify"
	"github.com/hitoshi/taskfront/internal/security"
	"github.com/hitoshi/taskfront/internal/session"
	"github.com/hitoshi/taskfront/internal/todo"
)

// ErrCommandFailed はクライアントコマンドが失敗したことを表す。
// 詳細は出力済みのため、呼び出し元は終了コードのみ決めればよい。
var ErrCommandFailed = errors.New("command failed")

// clientApp はクライアントコマンドが共有する依存関係。
// 1回の起動で1つのセッションを扱う。
type clientApp struct {
	out      io.Writer
	logger   *slog.Logger
	notifier notify.Notifier
	now      func() time.Time

	auth     *auth.Client
	store    *session.Store
	checker  *auth.Checker
	list     *todo.ListController
	stripper security.MarkupStripper
}

func newClientApp(cfg *config.Config, out io.Writer, logger *slog.Logger, recorder metrics.Recorder) (*clientApp, error) {
	exec, err := apiclient.NewExecutor(cfg.APIBaseURL, logger, apiclient.WithRecorder(recorder))
	if err != nil {
		return nil, err
	}

	// 通知は標準出力に表示し、構造化ログにも残す
	notifier := notify.Multi{notify.NewWriterNotifier(out), notify.NewLogNotifier(logger)}
	authClient := auth.NewClient(exec, auth.Endpoints{
		Register: cfg.Paths.Register,
		Login:    cfg.Paths.Login,
		Profile:  cfg.Paths.Profile,
	})
	todoClient := todo.NewClient(exec, todo.Endpoints{
		List:   cfg.Paths.Todos,
		Create: cfg.Paths.Todo,
		Delete: cfg.Paths.TodoDelete,
	})
	store := session.NewStore()

	return &clientApp{
		out:      out,
		logger:   logger,
		notifier: notifier,
		now:      time.Now,
		auth:     authClient,
		store:    store,
		checker:  auth.NewChecker(authClient, store, notifier, logger),
		list:     todo.NewListController(todoClient, notifier, logger, todo.WithRecorder(recorder)),
		stripper: security.NewMarkupStripper(),
	}, nil
}

// runClient はクライアントコマンドを実行する。
// METRICS_TEXTFILE が設定されていれば、成否にかかわらず終了時にメトリクスを書き出す。
func runClient(ctx context.Context, cmd Command, args []string, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	c, err := newClientApp(cfg, out, logger, metrics.NewCollector(registry))
	if err != nil {
		return err
	}

	runErr := c.run(ctx, cmd, args)

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, registry); err != nil {
			logger.Warn("failed to write metrics textfile",
				slog.String("file", cfg.MetricsTextfile),
				slog.String("error", err.Error()),
			)
		}
	}
	return runErr
}

// run はコマンドを実行する。-h によるヘルプ表示は成功として扱う。
func (c *clientApp) run(ctx context.Context, cmd Command, args []string) error {
	err := c.dispatch(ctx, cmd, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func (c *clientApp) dispatch(ctx context.Context, cmd Command, args []string) error {
	switch cmd {
	case CommandRegister:
		return c.register(ctx, args)
	case CommandLogin:
		return c.login(ctx, args)
	case CommandWhoami:
		return c.whoami(ctx, args)
	case CommandTodos:
		return c.todos(ctx, args)
	case CommandAdd:
		return c.add(ctx, args)
	case CommandDelete:
		return c.delete(ctx, args)
	case CommandLogout:
		return c.logout(ctx, args)
	default:
		return fmt.Errorf("unknown client command: %s", cmd)
	}
}

func (c *clientApp) newFlagSet(cmd Command) *flag.FlagSet {
	fs := flag.NewFlagSet(string(cmd), flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

// parseFlags はフラグを解析する。解析エラーはFlagSetが出力済みのため
// ErrCommandFailed に置き換え、ヘルプ要求は flag.ErrHelp のまま返す。
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flag.ErrHelp):
		return err
	default:
		return ErrCommandFailed
	}
}

// credentials はログインが必要なコマンド共通のフラグ。
// 未指定の場合は TASKFRONT_EMAIL / TASKFRONT_PASSWORD を使う。
type credentials struct {
	email    string
	password string
}

func (cr *credentials) bind(fs *flag.FlagSet) {
	fs.StringVar(&cr.email, "email", os.Getenv("TASKFRONT_EMAIL"), "ログインするメールアドレス")
	fs.StringVar(&cr.password, "password", os.Getenv("TASKFRONT_PASSWORD"), "ログインパスワード")
}

// signIn はログインフォームを送信し、セッションを確立する。
func (c *clientApp) signIn(ctx context.Context, cr credentials) error {
	f := form.NewLoginForm(c.auth, c.checker, c.store, c.notifier, c.logger)
	f.Change("email", cr.email)
	f.Change("password", cr.password)

	out := f.Submit(ctx)
	if out.OK() {
		return nil
	}
	c.printFieldErrors(f.Errors())
	return ErrCommandFailed
}

func (c *clientApp) register(ctx context.Context, args []string) error {
	fs := c.newFlagSet(CommandRegister)
	name1 := fs.String("name1", "", "姓")
	name2 := fs.String("name2", "", "名")
	email := fs.String("email", "", "メールアドレス")
	password := fs.String("password", "", "パスワード")
	confirm := fs.String("confirm", "", "確認用パスワード（省略時は -password と同じ）")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *password
	}

	f := form.NewRegisterForm(c.auth, c.notifier, c.logger)
	f.Change("name1", *name1)
	f.Change("name2", *name2)
	f.Change("email", *email)
	f.Change("login_pwd", *password)
	f.Change("confirmPassword", *confirm)

	out := f.Submit(ctx)
	if out.OK() {
		return nil
	}
	c.printFieldErrors(f.Errors())
	return ErrCommandFailed
}

func (c *clientApp) login(ctx context.Context, args []string) error {
	var cr credentials
	fs := c.newFlagSet(CommandLogin)
	cr.bind(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	return c.signIn(ctx, cr)
}

func (c *clientApp) whoami(ctx context.Context, args []string) error {
	var cr credentials
	fs := c.newFlagSet(CommandWhoami)
	cr.bind(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.signIn(ctx, cr); err != nil {
		return err
	}

	user := c.store.User()
	if user == nil {
		return ErrCommandFailed
	}
	fmt.Fprintf(c.out, "%s (member_id=%d)\n", user.DisplayName(), user.MemberID)
	return nil
}

func (c *clientApp) todos(ctx context.Context, args []string) error {
	var cr credentials
	fs := c.newFlagSet(CommandTodos)
	cr.bind(fs)
	page := fs.Int("page", 1, "ページ番号")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.signIn(ctx, cr); err != nil {
		return err
	}

	if err := c.list.Load(ctx, *page); err != nil {
		return ErrCommandFailed
	}
	c.printList()
	return nil
}

func (c *clientApp) add(ctx context.Context, args []string) error {
	var cr credentials
	fs := c.newFlagSet(CommandAdd)
	cr.bind(fs)
	subject := fs.String("subject", "", "タイトル")
	contents := fs.String("contents", "", "内容")
	due := fs.String("due", "", "期日（YYYY-MM-DD、省略時は今日）")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.signIn(ctx, cr); err != nil {
		return err
	}

	f := form.NewTaskForm(c.list, c.notifier, c.logger, form.WithClock(c.now))
	f.Change("subject", *subject)
	f.Change("contents", *contents)
	if *due != "" {
		f.Change("due_ymd", *due)
	}

	out := f.Submit(ctx)
	if !out.OK() {
		c.printFieldErrors(f.Errors())
		return ErrCommandFailed
	}
	c.printList()
	return nil
}

func (c *clientApp) delete(ctx context.Context, args []string) error {
	var cr credentials
	fs := c.newFlagSet(CommandDelete)
	cr.bind(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ids := make([]int64, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			fmt.Fprintf(c.out, "不正なTODO ID: %q\n", arg)
			return ErrCommandFailed
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "削除するTODOのIDを指定してください")
		return ErrCommandFailed
	}

	if err := c.signIn(ctx, cr); err != nil {
		return err
	}

	report := c.list.BulkDelete(ctx, ids)
	for _, f := range report.Failed {
		fmt.Fprintf(c.out, "  #%d: %s\n", f.ID, f.Message)
	}
	if len(report.Failed) > 0 {
		return ErrCommandFailed
	}
	return nil
}

func (c *clientApp) logout(ctx context.Context, args []string) error {
	var cr credentials
	fs := c.newFlagSet(CommandLogout)
	cr.bind(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := c.signIn(ctx, cr); err != nil {
		return err
	}

	if err := c.checker.Logout(ctx); err != nil {
		notify.Error(c.notifier, errmsg.Describe(err))
		return ErrCommandFailed
	}
	if c.store.IsAuthenticated() {
		return ErrCommandFailed
	}
	return nil
}

// printList は一覧コントローラーが保持しているTODOを表示する。
func (c *clientApp) printList() {
	today := c.now().Format(model.DateLayout)
	items := c.list.Items()
	if len(items) == 0 {
		fmt.Fprintln(c.out, "TODOはありません")
		return
	}

	for _, t := range items {
		v := todo.NewView(t, c.stripper, today)
		mark := " "
		if v.Overdue {
			mark = "!"
		}
		fmt.Fprintf(c.out, "%s #%d %s [期日 %s]\n", mark, v.ID, v.Subject, v.DueYMD)
		if v.Contents != "" {
			fmt.Fprintf(c.out, "    %s\n", v.Contents)
		}
	}
	if info, ok := c.list.PageInfo(); ok {
		fmt.Fprintf(c.out, "%d / %d ページ（全%d件）\n", info.PageNo, info.TotalPages, info.TotalCount)
	}
}

// printFieldErrors はフォームのフィールドエラーをフィールド名順に表示する。
// フォーム全体のエラーは通知として出力済み。
func (c *clientApp) printFieldErrors(errs map[string]string) {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		fmt.Fprintf(c.out, "  %s: %s\n", field, errs[field])
	}
}
