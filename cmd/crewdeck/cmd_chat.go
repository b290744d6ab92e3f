package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agusx1211/crewdeck/engine"
	"github.com/agusx1211/crewdeck/model"
	"github.com/agusx1211/crewdeck/notify"
	"github.com/agusx1211/crewdeck/session"
	"github.com/agusx1211/crewdeck/store"
	"github.com/agusx1211/crewdeck/transport"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := newLogger(cfg)
		defer func() { _ = logger.Sync() }()

		st, err := store.OpenSQLite(cfg.StatePath)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer st.Close()

		eng := engine.New(
			engine.Config{
				BaseURL:        cfg.Server.BaseURL,
				LoadingTimeout: time.Duration(cfg.Engine.LoadingTimeoutSec) * time.Second,
			},
			engine.Deps{
				Dial: func(ctx context.Context, baseURL, conversationID, token string) (transport.Transport, error) {
					return transport.DialWS(ctx, baseURL, conversationID, token, logger)
				},
				Sessions:      session.NewFile(cfg.SessionPath, cfg.Server.Token),
				Messages:      st.Messages,
				Conversations: st.Conversations,
				Sink:          notify.NewLogSink(logger),
				Logger:        logger,
			},
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := eng.Connect(ctx); err != nil {
			return err
		}
		defer eng.Disconnect()

		updates, unsub := eng.Subscribe()
		defer unsub()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return printLoop(ctx, updates) })
		g.Go(func() error { return inputLoop(ctx, eng) })
		if err := g.Wait(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func printLoop(ctx context.Context, updates <-chan engine.Update) error {
	seen := 0
	lastErr := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if u.Err != "" && u.Err != lastErr {
				fmt.Println("! " + u.Err)
			}
			lastErr = u.Err
			if len(u.Messages) < seen {
				seen = len(u.Messages)
			}
			for ; seen < len(u.Messages); seen++ {
				printMessage(u.Messages[seen])
			}
		}
	}
}

func printMessage(m model.Message) {
	prefix := "agent"
	if m.Role == model.RoleUser {
		prefix = "you"
	}
	if m.Kind == model.KindTool {
		fmt.Printf("[%s] tool %s\n", prefix, m.Tool)
		return
	}
	fmt.Printf("[%s] %s\n", prefix, m.Content)
}

func inputLoop(ctx context.Context, eng *engine.Engine) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return context.Canceled
		case "/reset":
			if err := eng.ResetHistory(ctx); err != nil {
				fmt.Println("! reset failed: " + err.Error())
			}
		default:
			if err := eng.SendMessage(ctx, line); err != nil {
				fmt.Println("! send failed: " + err.Error())
			}
		}
	}
	return scanner.Err()
}
