// Command qchemctl audits and repairs the QChemAxis credential store and
// creates accounts from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/config"
	"github.com/mmynk/qchemaxis/internal/maintenance"
	"github.com/mmynk/qchemaxis/internal/rpc"
	"github.com/mmynk/qchemaxis/internal/storage/sqlite"
	"github.com/mmynk/qchemaxis/pkg/logging"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by the subcommands.
type app struct {
	configPath string
	dbPath     string
	serverURL  string
	token      string
	verbose    bool

	in     io.Reader
	out    io.Writer
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:           "qchemctl",
		Short:         "Maintenance tools for the QChemAxis account database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.dbPath != "" {
				cfg.Database.Path = a.dbPath
			}
			a.cfg = cfg

			level := "warn"
			if a.verbose {
				level = "debug"
			}
			a.logger = logging.New(cmd.ErrOrStderr(), logging.ParseLevel(level), cfg.Log.Format)
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to an optional YAML config file")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides database.path)")
	flags.StringVar(&a.serverURL, "server", "", "run audit/cleanup on a remote server instead of the local database")
	flags.StringVar(&a.token, "token", os.Getenv("QCHEM_ADMIN_TOKEN"), "admin bearer token for --server")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(a.auditCmd(), a.cleanupCmd(), a.createUserCmd())
	return root
}

// openStore opens the local database. Failing to open it is fatal for every
// subcommand.
func (a *app) openStore() (*sqlite.SQLiteStore, error) {
	store, err := sqlite.New(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.Database.Path, err)
	}
	a.logger.Debug("Opened database", "path", a.cfg.Database.Path)
	return store, nil
}

func (a *app) remote() *rpc.MaintenanceClient {
	return rpc.NewMaintenanceClient(&http.Client{Timeout: time.Minute}, a.serverURL, a.token)
}

func (a *app) hasher() *auth.PasswordHasher {
	cost := a.cfg.Security.BcryptCost
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return auth.NewPasswordHasher(cost)
}

func (a *app) runAudit(ctx context.Context, opts maintenance.AuditOptions) (*maintenance.AuditReport, error) {
	if a.serverURL != "" {
		return a.remote().Audit(ctx, &rpc.AuditRequest{ListUsers: opts.ListUsers})
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return maintenance.NewAuditor(store, a.logger).Run(ctx, opts), nil
}

func (a *app) runCleanup(ctx context.Context, live bool) (*maintenance.CleanupReport, error) {
	if a.serverURL != "" {
		return a.remote().Cleanup(ctx, &rpc.CleanupRequest{Live: live})
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return maintenance.NewCleaner(store, a.hasher(), nil, a.logger).Run(ctx, maintenance.CleanupOptions{Live: live}), nil
}
