// Package notify は利用者への通知（トースト）の出力境界を定義する。
// 描画自体は扱わず、通知内容を受け取るインターフェースと実装のみを提供する。
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level は通知の種類。
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// 定型メッセージ
const (
	AuthErrorMessage = "ログインセッションが切れました。再度ログインしてください。"
	LogoutMessage    = "ログアウトしました"
	LoginMessage     = "ログインしました"
)

// Notifier は通知の送り先。
type Notifier interface {
	Notify(level Level, message string)
}

// Success は成功通知を送る。
func Success(n Notifier, message string) {
	n.Notify(LevelSuccess, message)
}

// Error はエラー通知を送る。
func Error(n Notifier, message string) {
	n.Notify(LevelError, message)
}

// Info は情報通知を送る。
func Info(n Notifier, message string) {
	n.Notify(LevelInfo, message)
}

// AuthError はセッション切れの定型通知を送る。
func AuthError(n Notifier) {
	Error(n, AuthErrorMessage)
}

// LoginSuccess はログイン成功通知を送る。表示名が空の場合は定型文を使う。
func LoginSuccess(n Notifier, displayName string) {
	if displayName == "" {
		Success(n, LoginMessage)
		return
	}
	Success(n, displayName+"さん、ようこそ！")
}

// Multi は同じ通知を複数の通知先へ順に送る。
type Multi []Notifier

// Notify はすべての通知先に通知を送る。
func (m Multi) Notify(level Level, message string) {
	for _, n := range m {
		n.Notify(level, message)
	}
}

// LogNotifier は通知を構造化ログとして出力する。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify は通知をログに出力する。エラー通知はWARNレベルで出力する。
func (n *LogNotifier) Notify(level Level, message string) {
	lvl := slog.LevelInfo
	if level == LevelError {
		lvl = slog.LevelWarn
	}
	n.logger.Log(context.Background(), lvl, "notification",
		slog.String("kind", string(level)),
		slog.String("message", message),
	)
}

// WriterNotifier は通知を1行ずつテキストで書き出す。CLIの標準出力向け。
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier はWriterNotifierを生成する。
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify は "[level] message" の形式で1行出力する。
func (n *WriterNotifier) Notify(level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "[%s] %s\n", level, message)
}

// Message は記録された1件の通知。
type Message struct {
	Level   Level
	Message string
}

// Recorder は通知をメモリに記録する。テストやCLI出力の集約に使う。
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify は通知を記録する。
func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Message: message})
}

// Messages は記録済みの通知のコピーを返す。
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last は最後の通知を返す。通知がない場合はfalseを返す。
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
