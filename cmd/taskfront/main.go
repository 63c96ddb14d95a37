package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/taskfront/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		// クライアントコマンドの失敗内容は出力済み
		if !errors.Is(err, app.ErrCommandFailed) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		stop()
		os.Exit(1)
	}
}
