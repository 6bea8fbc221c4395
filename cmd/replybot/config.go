package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sandevgo/replybot/internal/config"
	"github.com/sandevgo/replybot/internal/ui"
	"github.com/sandevgo/replybot/pkg/env"
)

// secretKeys go to .env instead of config.yaml.
var secretKeys = []string{"AI_API_KEY"}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		data, err := cfg.Redacted().YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		if err == nil {
			if verr := cfg.Validate(); verr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.WarnStyle.Render("invalid: ")+verr.Error())
			}
		}
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config.yaml and .env template when absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		written, err := writeConfigTemplates(configPath)
		for _, path := range written {
			fmt.Fprintln(out, ui.KV("created", path))
		}
		if len(written) == 0 && err == nil {
			fmt.Fprintln(out, ui.DescStyle.Render("config files already exist, nothing written"))
		}
		return err
	},
}

// writeConfigTemplates creates the config file and the .env beside it,
// leaving existing files untouched. It returns the paths it created.
func writeConfigTemplates(path string) ([]string, error) {
	cfg := config.Default()
	var written []string

	yml, err := cfg.YAML()
	if err != nil {
		return nil, err
	}
	ok, err := writeIfAbsent(path, yml, 0o644)
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, path)
	}

	dotenv, err := env.Marshal(cfg, env.Options{IncludeEmpty: true, Only: secretKeys})
	if err != nil {
		return written, err
	}
	envPath := filepath.Join(filepath.Dir(path), config.DefaultEnvFile)
	ok, err = writeIfAbsent(envPath, []byte(dotenv), 0o600)
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, envPath)
	}
	return written, nil
}

func writeIfAbsent(path string, data []byte, perm os.FileMode) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
