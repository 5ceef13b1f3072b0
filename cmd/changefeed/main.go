// Command changefeed drains the broker queues the portal writes to: every
// row change goes to logs/changes.log and every password reset mail to
// logs/mail.log.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/vendor-portal/internal/config"
	"github.com/iliyamo/vendor-portal/internal/logger"
	"github.com/iliyamo/vendor-portal/internal/queue"
)

func main() {
	_ = godotenv.Load()
	log := logger.Init(os.Getenv("LOG_LEVEL"))
	rt := config.LoadRealtimeConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range []*queue.Consumer{
		queue.ChangeConsumer(rt.URL, rt.Exchange, rt.LogDir, log),
		queue.MailConsumer(rt.URL, rt.LogDir, log),
	} {
		g.Go(func() error { return c.Run(gCtx) })
	}
	log.Info("changefeed started", "exchange", rt.Exchange, "log_dir", rt.LogDir)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("changefeed stopped", "error", err)
		os.Exit(1)
	}
	log.Info("changefeed exited")
}
