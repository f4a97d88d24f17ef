/*
main.go - budgetd entry point

PURPOSE:
  One binary for the budget engine: `serve` runs the HTTP API and the
  daily rollover job; the other subcommands work directly against the
  same SQLite database for quick terminal use.

STARTUP SEQUENCE:
  1. Load .env (if present) into the environment
  2. Load config file, apply env overrides and flags, validate
  3. Configure the global zerolog logger
  4. Run the subcommand

COMMANDS:
  serve                         HTTP API + rollover scheduler
  status                        Balances, debt, today's snack allowance
  paycheck <amount>             Allocate a paycheck
  check <amount> <bucket>       Preview a purchase
  buy <amount> <bucket>         Authorize and spend
  history                       Recent history entries
  export [file]                 Write the state document
  import <file>                 Replace the state from a document

ENVIRONMENT:
  BUDGET_PORT, BUDGET_DB, BUDGET_ALLOWED_ORIGINS, BUDGET_ROLLOVER_CRON,
  BUDGET_SCHEDULER, BUDGET_LOG_LEVEL, BUDGET_LOG_PRETTY
  (see config/config.go)

SEE ALSO:
  - serve.go: HTTP server and graceful shutdown
  - commands.go: Terminal subcommands
*/
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/config"
	"github.com/warp/budget-engine/store/sqlite"
)

var (
	configPath string
	dbPath     string
	cfg        *config.Config
)

// rootCmd is the base command for the budgetd CLI
var rootCmd = &cobra.Command{
	Use:   "budgetd",
	Short: "Paycheck allocation and spending authorization",
	Long: `budgetd splits each paycheck across holding, savings, toiletries,
snacks and entertainment, keeps a daily snack allowance, and approves or
rejects purchases against bucket balances and protection rules.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "budget.yaml", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(paycheckCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and the logger before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		loaded.Database.SQLitePath = dbPath
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = loaded

	lvl, _ := cfg.LogLevel()
	zerolog.SetGlobalLevel(lvl)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

// openService opens the configured database and wraps it in a service.
func openService() (*budget.Service, *sqlite.Store, error) {
	path := cfg.Database.SQLitePath
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	svc := budget.NewService(store, budget.WithLogger(log.Logger.With().Str("component", "budget").Logger()))
	return svc, store, nil
}
