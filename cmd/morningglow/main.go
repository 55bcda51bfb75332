// Command morningglow is the terminal client: an interactive daily flow plus
// scriptable subcommands over the same local history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/morningglow/pkg/client"
	"github.com/codeGROOVE-dev/morningglow/pkg/config"
	"github.com/codeGROOVE-dev/morningglow/pkg/session"
	"github.com/codeGROOVE-dev/morningglow/pkg/store"
	"github.com/codeGROOVE-dev/morningglow/pkg/tui"
)

var (
	configPath string
	serverURL  string
	dbPath     string
	nickname   string
	verbose    bool
)

// app holds what every subcommand needs. It is built lazily so that commands
// like health never open the database.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *client.Client
}

var rootCmd = &cobra.Command{
	Use:           "morningglow",
	Short:         "Make your bed, check your routines, keep the streak",
	Long:          "Morning Glow scores a photo of your made bed, tracks a short morning routine checklist and keeps a streak calendar.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMachine(cmd, func(a *app, m *session.Machine) error {
			if err := a.client.WaitHealthy(cmd.Context(), 3); err != nil {
				a.logger.Warn("Analysis server is not reachable, results will use the fallback score", "server", a.cfg.Client.ServerURL, "error", err)
			}
			return tui.Run(cmd.Context(), m, a.client, a.cfg.Client.Nickname)
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/morningglow/config.yaml)")
	pf.StringVarP(&serverURL, "server", "s", "", "Analysis server URL (overrides client.server_url)")
	pf.StringVarP(&dbPath, "db", "d", "", "Database path (default ~/.local/share/morningglow/morningglow.db)")
	pf.StringVar(&nickname, "nickname", "", "Nickname shown on share cards")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp() (*app, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}
	if dbPath != "" {
		cfg.Client.DBPath = dbPath
	}
	if nickname != "" {
		cfg.Client.Nickname = nickname
	}

	c := client.New(cfg.Client.ServerURL,
		client.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		client.WithLogger(logger),
	)
	return &app{cfg: cfg, logger: logger, client: c}, nil
}

// withMachine opens the database, loads the session and runs fn.
func withMachine(cmd *cobra.Command, fn func(*app, *session.Machine) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	kv, err := store.OpenSQLite(a.cfg.Client.DBPath)
	if err != nil {
		return err
	}
	defer kv.Close() //nolint:errcheck // best effort on exit

	m := session.NewMachine(store.New(kv, a.logger), a.client, session.WithLogger(a.logger))
	if err := m.Load(cmd.Context()); err != nil {
		return err
	}
	return fn(a, m)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
