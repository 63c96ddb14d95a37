package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/taskfront/internal/model"
	"github.com/hitoshi/taskfront/internal/notify"
	"github.com/hitoshi/taskfront/internal/session"
)

// SessionAPI は認証チェックとログアウトで使うAPI操作。
type SessionAPI interface {
	CheckSession(ctx context.Context) (*ProfileResult, error)
	ClearSession() error
}

// Checker はセッション確認の結果を認証状態ストアに反映する。
// ストアへの書き込みはCheckerのみが行う。
type Checker struct {
	api      SessionAPI
	store    session.ReadWriter
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewChecker はCheckerを生成する。
func NewChecker(api SessionAPI, store session.ReadWriter, notifier notify.Notifier, logger *slog.Logger) *Checker {
	return &Checker{
		api:      api,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Check はセッションを確認し、確定後の認証フェーズを返す。
// 確認中に新しいチェックやログアウトが行われた場合、この結果は反映されず
// その時点のフェーズを返す。
func (c *Checker) Check(ctx context.Context) model.Phase {
	gen := c.store.BeginCheck()

	res, err := c.api.CheckSession(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "認証チェックに失敗しました", slog.String("error", err.Error()))
		return c.reject(gen)
	}

	member, ok := res.Member()
	if !ok {
		c.logger.WarnContext(ctx, "プロフィール応答に会員情報が含まれていません")
		return c.reject(gen)
	}

	if !c.store.Resolve(gen, &member) {
		c.logger.DebugContext(ctx, "古い認証チェックの結果を破棄しました")
		return c.store.Phase()
	}
	c.logger.InfoContext(ctx, "認証チェックが完了しました", slog.Int64("member_id", member.MemberID))
	return model.PhaseAuthenticated
}

func (c *Checker) reject(gen session.Generation) model.Phase {
	if !c.store.Resolve(gen, nil) {
		return c.store.Phase()
	}
	notify.AuthError(c.notifier)
	return model.PhaseUnauthenticated
}

// Logout はクライアント側でログアウトする。
// 認証状態をクリアし、保持しているセッションCookieを破棄する。
func (c *Checker) Logout(ctx context.Context) error {
	c.store.Logout()
	if err := c.api.ClearSession(); err != nil {
		c.logger.ErrorContext(ctx, "セッションCookieの破棄に失敗しました", slog.String("error", err.Error()))
		return err
	}
	notify.Success(c.notifier, notify.LogoutMessage)
	return nil
}
