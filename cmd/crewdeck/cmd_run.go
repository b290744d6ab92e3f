package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/crewdeck/engine"
	"github.com/agusx1211/crewdeck/notify"
	"github.com/agusx1211/crewdeck/session"
	"github.com/agusx1211/crewdeck/transport"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Follow the execution stream of one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := newLogger(cfg)
		defer func() { _ = logger.Sync() }()

		jobID := args[0]
		eng := engine.New(
			engine.Config{
				BaseURL:        cfg.Server.BaseURL,
				LoadingTimeout: time.Duration(cfg.Engine.LoadingTimeoutSec) * time.Second,
			},
			engine.Deps{
				Dial: func(ctx context.Context, baseURL, id, token string) (transport.Transport, error) {
					return transport.DialStream(ctx, baseURL, id, token, logger)
				},
				Sessions: session.NewStatic(session.Session{
					Token:          cfg.Server.Token,
					ConversationID: jobID,
				}),
				Sink:   notify.NewLogSink(logger),
				Logger: logger,
			},
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		updates, unsub := eng.Subscribe()
		defer unsub()

		if err := eng.Connect(ctx); err != nil {
			return err
		}
		defer eng.Disconnect()

		seen := 0
		opened := false
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case u, ok := <-updates:
				if !ok {
					return nil
				}
				if len(u.Messages) < seen {
					seen = len(u.Messages)
				}
				for ; seen < len(u.Messages); seen++ {
					printMessage(u.Messages[seen])
				}
				if u.Connected {
					opened = true
				}
				if opened && !u.Connected {
					return nil
				}
			}
		}
	},
}
