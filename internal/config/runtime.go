package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns REPLYBOT_CONFIG when set, otherwise fallback.
func GetConfigPath(fallback string) string {
	if path := os.Getenv("REPLYBOT_CONFIG"); path != "" {
		return path
	}
	return fallback
}

// resolvePaths anchors relative file locations to the config directory so the
// bot and the dashboard open the same database regardless of cwd.
func (c *Config) resolvePaths(baseDir string) {
	c.DBPath = resolve(baseDir, c.DBPath)
	c.LogFile = resolve(baseDir, c.LogFile)
}

func resolve(baseDir, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
