/*
main.go - Application entry point

PURPOSE:
  The careerup command: runs the subsidy desk server and offers the
  calculator, the deadline calendar and backups from the terminal.

COMMANDS:
  serve       HTTP API + deadline monitor
  calc        Wage-increase test on a JSON comparison set
  deadlines   Upcoming filing deadlines of an office
  export      Office backup as JSON or applications as CSV
  import      Load a JSON backup into an office

CONFIGURATION:
  Flags, CAREERUP_* environment variables and an optional YAML file
  (--config). Flags win over the environment, the environment over the file.

EXAMPLES:
  careerup serve --addr :3000 --db ./data/desk.db
  CAREERUP_AUTH_PASSWORD=secret careerup serve
  careerup calc ./yamada.json
  careerup deadlines --office tokyo --within 30

SEE ALSO:
  - config/config.go: Keys and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warp/careerup/config"
	"github.com/warp/careerup/store/sqlite"
)

var (
	cfgFile string
	version = "dev"

	v   = config.New()
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "careerup",
		Short: "キャリアアップ助成金 申請管理デスク",
		Long: `careerup tracks career-up subsidy applications for a consultant office:
clients, conversions, the 3% wage-increase test, document checklists and
filing deadlines.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (\":memory:\" for a throwaway desk)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().String("timezone", "", "time zone that decides today's date")

	// Bind flags to viper
	bindFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	bindFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	bindFlag("timezone", rootCmd.PersistentFlags().Lookup("timezone"))

	// Add commands
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(calcCmd())
	rootCmd.AddCommand(deadlinesCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}
	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	slog.SetDefault(cfg.Logging.NewLogger(os.Stderr))
	return nil
}

// bindFlag lets a flag override the config. Unset flags fall through to
// the environment, the file and the defaults.
func bindFlag(key string, flag *pflag.Flag) {
	_ = v.BindPFlag(key, flag)
}

func openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(cfg.Database.Path, sqlite.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	return store, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "careerup %s\n", version)
		},
	}
}
