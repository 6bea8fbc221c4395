package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/providers/llm"
	"github.com/sandevgo/replybot/internal/service/responder"
	"github.com/sandevgo/replybot/internal/ui"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show reply statistics from the message log",
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

		var reader core.DashboardReader = store

		totals, err := reader.TotalStats(ctx)
		if err != nil {
			return err
		}
		series, err := reader.DailySeries(ctx, statsDays)
		if err != nil {
			return err
		}
		today, err := reader.GetDailyCount(ctx, core.DayOf(time.Now()))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render("TOTALS"))
		fmt.Fprintln(out, ui.KV("messages", totals.TotalMessages))
		fmt.Fprintln(out, ui.KV("auto replies", totals.AutoReplies))
		fmt.Fprintln(out, ui.KV("unique senders", totals.UniqueSenders))
		fmt.Fprintln(out, ui.KV("reply rate", fmt.Sprintf("%.1f%%", totals.AutoReplyRate*100)))
		fmt.Fprintln(out, ui.KV("avg per day", fmt.Sprintf("%.1f", totals.AvgDailyReplies)))
		fmt.Fprintln(out, ui.KV("today", fmt.Sprintf("%d / %d", today, cfg.MaxDailyReplies)))
		fmt.Fprintln(out)

		printResponderStats(out, responder.New(llm.NewProvider(ctx, cfg), store, responder.OptionsFromConfig(cfg)).Stats())

		peak := 0
		for _, day := range series {
			peak = max(peak, day.Count)
		}
		fmt.Fprintln(out, ui.TitleStyle.Render(fmt.Sprintf("LAST %d DAYS", len(series))))
		for _, day := range series {
			fmt.Fprintf(out, "  %s %4d %s\n", ui.DescStyle.Render(day.Date), day.Count, ui.Bar(day.Count, peak, 30))
		}
		return nil
	},
}

func printResponderStats(out io.Writer, st responder.Stats) {
	model := st.Model
	if !st.AIEnabled {
		model = "disabled, fallback replies only"
	}
	fmt.Fprintln(out, ui.TitleStyle.Render("RESPONDER"))
	fmt.Fprintln(out, ui.KV("model", model))
	fmt.Fprintln(out, ui.KV("cache", st.CacheEnabled))
	if st.RateLimited {
		fmt.Fprintln(out, ui.KV("rate limit", fmt.Sprintf("%d per %s", st.RateLimit, st.RateWindow)))
	} else {
		fmt.Fprintln(out, ui.KV("rate limit", "off"))
	}
	fmt.Fprintln(out)
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "number of days to show")
	rootCmd.AddCommand(statsCmd)
}
