package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ETAnderson/celltrack/internal/client"
	"github.com/ETAnderson/celltrack/internal/config"
	"github.com/ETAnderson/celltrack/internal/logging"
	"github.com/ETAnderson/celltrack/internal/state"
	"github.com/ETAnderson/celltrack/internal/tracking"
	"github.com/ETAnderson/celltrack/internal/view"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	api          string
	token        string
	engineer     string
	local        bool
	backend      string
	sqlitePath   string
	workbookPath string
	dsn          string
	logLevel     string
}

var rootCmd = &cobra.Command{
	Use:   "trackctl",
	Short: "Inspect and edit test progress per site and phase",
	Long: "trackctl reads the test records of a site and phase, prints the\n" +
		"cell type / cell / scope summary and applies status edits, either\n" +
		"through the celltrack API or straight against a local store.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	cfg := config.Load()

	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.api, "api", cfg.APIBaseURL, "celltrack API base URL")
	f.StringVar(&rootFlags.token, "token", cfg.APIToken, "bearer token for the API")
	f.StringVar(&rootFlags.engineer, "engineer", os.Getenv("USER"), "engineer recorded on edits")
	f.BoolVar(&rootFlags.local, "local", false, "use a local store instead of the API")
	f.StringVar(&rootFlags.backend, "backend", cfg.StoreBackend, "local store backend: memory | mysql | sqlite | workbook")
	f.StringVar(&rootFlags.sqlitePath, "sqlite-path", cfg.SQLitePath, "sqlite database file")
	f.StringVar(&rootFlags.workbookPath, "workbook-path", cfg.WorkbookPath, "workbook (.xlsx) file")
	f.StringVar(&rootFlags.dsn, "dsn", cfg.MySQLDSN, "mysql DSN")
	f.StringVar(&rootFlags.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.SugaredLogger {
	return logging.New("trackctl", "prod", rootFlags.logLevel)
}

// openService opens the configured local store. Callers close the store.
func openService(ctx context.Context, logger *zap.SugaredLogger) (*tracking.Service, state.Store, error) {
	res, err := state.NewStore(ctx, state.FactoryConfig{
		Backend:       rootFlags.backend,
		MySQLDSN:      rootFlags.dsn,
		SQLitePath:    rootFlags.sqlitePath,
		WorkbookPath:  rootFlags.workbookPath,
		RunMigrations: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", rootFlags.backend, err)
	}
	return tracking.NewService(res.Store, logger.Named("tracking")), res.Store, nil
}

// openBackend returns the view backend selected by --local and a func
// that releases it.
func openBackend(ctx context.Context, logger *zap.SugaredLogger) (view.Backend, func(), error) {
	if rootFlags.local {
		svc, store, err := openService(ctx, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = store.Close() }
		return view.LocalBackend{Service: svc, Actor: rootFlags.engineer}, closeFn, nil
	}

	c := client.New(rootFlags.api, rootFlags.token)
	c.Actor = rootFlags.engineer
	return c, func() {}, nil
}
