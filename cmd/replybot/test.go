package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/ui"
	"github.com/sandevgo/replybot/pkg/log"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run one dry pass without sending or recording anything",
	Long: `Captures the chat window once, runs detection, policy and reply generation,
and prints what would have been sent. Nothing is typed and nothing is persisted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		ctx, flushLog := setupLogger(cmd.Context(), cfg)
		defer flushLog()

		app, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer app.store.Close()

		if err := app.store.Ping(ctx); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}

		res, err := app.bot.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.FromCtx(ctx).Debug().Str("cycle", res.ID).Msg("dry pass finished")

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render("DRY RUN"))
		fmt.Fprintln(out, ui.KV("outcome", res.Outcome))
		if res.Detection.Found {
			fmt.Fprintln(out, ui.KV("sender", res.Detection.Sender))
			fmt.Fprintln(out, ui.KV("message", res.Detection.Text))
		}
		if res.Decision.Reason != "" {
			fmt.Fprintln(out, ui.KV("denied", res.Decision.Reason))
		}
		if res.Reply.Text != "" {
			fmt.Fprintln(out, ui.KV("reply", res.Reply.Text))
			fmt.Fprintln(out, ui.KV("source", res.Reply.Source))
			fmt.Fprintln(out, ui.KV("delay", res.Delay))
		}
		if res.Reply.Cause != nil {
			fmt.Fprintln(out, ui.KV("fallback cause", res.Reply.Cause))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
