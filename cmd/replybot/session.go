package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/providers/llm"
	"github.com/sandevgo/replybot/internal/service/responder"
	"github.com/sandevgo/replybot/internal/ui"
)

var sessionLimit int

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or reset a sender's conversation history",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <sender>",
	Short: "Print the stored history of one sender, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}

		ctx, flushLog := setupLogger(cmd.Context(), cfg)
		defer flushLog()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.GetHistory(ctx, args[0], sessionLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render("SESSION "+args[0]))
		if len(entries) == 0 {
			fmt.Fprintln(out, ui.DescStyle.Render("  no history"))
		}
		for _, e := range entries {
			fmt.Fprintf(out, "  %s %s %s\n",
				ui.DescStyle.Render(e.Timestamp.Format("2006-01-02 15:04:05")),
				ui.FlagStyle.Render(fmt.Sprintf("%-9s", e.Role)),
				e.Content)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <sender>",
	Short: "Drop the stored history of one sender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}

		ctx, flushLog := setupLogger(cmd.Context(), cfg)
		defer flushLog()

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		resp := responder.New(llm.NewProvider(ctx, cfg), store, responder.OptionsFromConfig(cfg))
		if err := resp.ClearSession(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KV("cleared", args[0]))
		return nil
	},
}

func init() {
	sessionShowCmd.Flags().IntVar(&sessionLimit, "limit", 0, "show only the last N entries (0 for all)")
	sessionCmd.AddCommand(sessionShowCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
