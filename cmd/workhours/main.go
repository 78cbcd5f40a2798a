package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pbaille/workhours/internal/api"
	"github.com/pbaille/workhours/internal/config"
	"github.com/pbaille/workhours/internal/domain"
	"github.com/pbaille/workhours/internal/logger"
	"github.com/pbaille/workhours/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dbPath    string
	logLevel  string
	logFormat string
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:          "workhours",
		Short:        "Work hours import, reconciliation and scoring",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", cfg.LogFormat, "log format (console, json)")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(importContactsCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(scoresCmd())
	rootCmd.AddCommand(efficiencyCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(entitiesCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(renameCmd())
	rootCmd.AddCommand(weightCmd())
	rootCmd.AddCommand(weightsCmd())
	rootCmd.AddCommand(groupCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(deleteRecordsCmd())
	rootCmd.AddCommand(serveCmd(cfg.Addr))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getLogger() (*zap.Logger, error) {
	return logger.New(logLevel, logFormat, "workhours")
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(dbPath)
}

// filterFlags binds the date range flags shared by the report commands
type filterFlags struct {
	from, to, month string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first day included (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last day included (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.month, "month", "", "month bucket (YYYY-MM)")
}

func (f *filterFlags) filter() (domain.DateFilter, error) {
	var out domain.DateFilter
	var err error
	if f.from != "" {
		if out.From, err = time.Parse(domain.DateLayout, f.from); err != nil {
			return out, fmt.Errorf("--from: %w", err)
		}
	}
	if f.to != "" {
		if out.To, err = time.Parse(domain.DateLayout, f.to); err != nil {
			return out, fmt.Errorf("--to: %w", err)
		}
	}
	if f.month != "" {
		if _, err := time.Parse("2006-01", f.month); err != nil {
			return out, fmt.Errorf("--month: %w", err)
		}
		out.MonthBucket = f.month
	}
	return out, nil
}

func serveCmd(defaultAddr string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := getLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			return api.New(s, log, addr).Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", defaultAddr, "server address")
	return cmd
}
