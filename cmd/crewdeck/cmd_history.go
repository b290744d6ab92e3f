package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agusx1211/crewdeck/session"
	"github.com/agusx1211/crewdeck/store"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyClearCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect persisted conversation rows",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List persisted messages for the current conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := store.OpenSQLite(cfg.StatePath)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer st.Close()

		provider := session.NewFile(cfg.SessionPath, cfg.Server.Token)
		sess, err := provider.Session(cmd.Context())
		if err != nil {
			return err
		}
		msgs, err := st.Messages.ListByConversation(sess.ConversationID, cfg.Engine.HistoryLimit, 0)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		if len(msgs) == 0 {
			fmt.Println("No messages found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tROLE\tKIND\tCONTENT")
		for _, m := range msgs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				m.Timestamp.Format("2006-01-02 15:04:05"),
				m.Role,
				m.Kind,
				truncate(m.Content, 60),
			)
		}
		return w.Flush()
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete persisted messages and start a fresh conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		st, err := store.OpenSQLite(cfg.StatePath)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
		defer st.Close()

		provider := session.NewFile(cfg.SessionPath, cfg.Server.Token)
		ctx := context.Background()
		sess, err := provider.Session(ctx)
		if err != nil {
			return err
		}
		if err := st.Messages.DeleteByConversation(sess.ConversationID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		next, err := provider.Rotate(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %s; next conversation is %s.\n", sess.ConversationID, next.ConversationID)
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
