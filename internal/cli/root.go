// Package cli defines the command-line interface: the HTTP server plus a few
// operator commands that work directly against the database.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/entrypoint"
	"github.com/derkdev976-web/davel-library-sub002/internal/logging"
)

// BuildInfo is set at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
}

// globalFlags override values read from the environment.
type globalFlags struct {
	dbPath   string
	port     int32
	logLevel string
}

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand(info BuildInfo) *cobra.Command {
	flags := &globalFlags{}
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:           "library",
		Short:         "Library management backend",
		Long:          `Library management backend: membership, catalogue, reservations, events, chat and fees over a JSON API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			*cfg = *loadConfig(cmd, flags)
			logging.Apply(cfg.Log)
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return entrypoint.Run(cfg, info.Version)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.dbPath, "db", "d", "", "SQLite database path (overrides DATABASE_PATH)")
	pf.Int32VarP(&flags.port, "port", "p", 0, "HTTP server port (overrides HTTP_PORT)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCommand(cfg, info),
		newMigrateCommand(cfg),
		newCreateUserCommand(cfg),
		newVersionCommand(info),
	)
	return root
}

func loadConfig(cmd *cobra.Command, flags *globalFlags) *config.Config {
	cfg := config.NewConfig()
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = flags.dbPath
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTP.Port = flags.port
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	return cfg
}

func newServeCommand(cfg *config.Config, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return entrypoint.Run(cfg, info.Version)
		},
	}
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Skip config loading and logger setup.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "library %s (commit: %s)\n", info.Version, info.Commit)
		},
	}
}
