// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the CLI and the HTTP server
type Config struct {
	DBPath    string
	LogLevel  string
	LogFormat string
	Addr      string
}

// Load reads an optional .env file, then the WORKHOURS_* variables.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		DBPath:    getEnv("WORKHOURS_DB", defaultDBPath()),
		LogLevel:  getEnv("WORKHOURS_LOG_LEVEL", "info"),
		LogFormat: getEnv("WORKHOURS_LOG_FORMAT", "console"),
		Addr:      getEnv("WORKHOURS_ADDR", ":8080"),
	}
	return cfg, nil
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".workhours", "workhours.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
