// Command sweeper is a headless board client.  It keeps a polled copy of
// the board and expires holds whose deadline has passed, so holds are
// released even when no staff browser is open.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/coral-club-board/internal/client"
	"github.com/iliyamo/coral-club-board/internal/config"
	"github.com/iliyamo/coral-club-board/internal/model"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	board := client.NewBoard(client.NewHTTPStore(cfg.Board.ServerURL, nil), client.Options{
		StateKey: cfg.Store.StateKey,
		RevKey:   cfg.Store.RevKey,
		HoldTTL:  cfg.Board.HoldTTL,
		Log:      logger,
	})
	if err := board.Load(ctx); err != nil {
		logger.Warn("initial load failed, starting from defaults", "server", cfg.Board.ServerURL, "err", err)
	}

	updates := board.Subscribe()
	go func() {
		for snap := range updates {
			logger.Debug("board updated", "rev", snap.Rev, "pending", countPending(snap.Doc))
		}
	}()

	logger.Info("sweeper running", "server", cfg.Board.ServerURL,
		"poll", cfg.Board.PollInterval, "sweep", cfg.Board.SweepInterval)
	err = board.Run(ctx, cfg.Board.PollInterval, cfg.Board.SweepInterval)
	board.Unsubscribe(updates)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sweeper stopped", "err", err)
		os.Exit(1)
	}
}

func countPending(doc model.Document) int {
	n := 0
	for _, t := range doc.Tents {
		if t.State == model.TentPending {
			n++
		}
	}
	return n
}
