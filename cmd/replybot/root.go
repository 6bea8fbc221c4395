package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/core"
	"github.com/sandevgo/replybot/internal/ui"
	"github.com/sandevgo/replybot/pkg/log"
	"github.com/sandevgo/replybot/pkg/srv"
)

var (
	debug      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "replybot",
	Short:         "ReplyBot, an auto-responder for desktop chat clients",
	Long:          `ReplyBot watches a chat window, reads new messages with OCR and types model-generated replies back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		var flushLog func()
		ctx, flushLog = setupLogger(ctx, cfg)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Str("version", core.BotVersion).Str("window", cfg.WindowName).Msg("starting replybot")

		app, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}

		if err := srv.Run(ctx, app.services()); err != nil {
			return err
		}
		logger.Info().Msg("replybot has been shut down gracefully")
		return nil
	},
}

func Execute() {
	CustomizeHelp(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(ui.WarnStyle.Render("error: ") + err.Error() + "\n")
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.GetConfigPath(config.DefaultConfigFile), "path to config.yaml")
}

func setupLogger(ctx context.Context, cfg *config.Config) (context.Context, func()) {
	return log.NewContextWithLogger(ctx, log.Options{
		Debug: debug || config.IsDebug(),
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
}

func CustomizeHelp(rootCmd *cobra.Command) {
	cobra.AddTemplateFunc("StyleTitle", func(s string) string { return ui.TitleStyle.Render(s) })
	cobra.AddTemplateFunc("StyleUsage", func(s string) string { return ui.UsageStyle.Render(s) })
	cobra.AddTemplateFunc("StyleFlag", func(s string) string { return ui.FlagStyle.Render(s) })
	cobra.AddTemplateFunc("StyleDesc", func(s string) string { return ui.DescStyle.Render(s) })

	template := `
{{StyleTitle "USAGE"}}
  {{StyleUsage .UseLine}}
{{if gt (len .Commands) 0}}{{StyleTitle "AVAILABLE COMMANDS"}}
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding}} {{StyleDesc .Short}}{{end}}
{{end}}{{end}}
{{if .HasAvailableLocalFlags}}{{StyleTitle "FLAGS"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces | StyleFlag}}
{{end}}{{if .HasAvailableInheritedFlags}}{{StyleTitle "GLOBAL FLAGS"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces | StyleFlag}}
{{end}}
`
	rootCmd.SetHelpTemplate(template)
}
