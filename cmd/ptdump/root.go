package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/internal/config"
	"github.com/robert-malhotra/go-tables/internal/logging"
	"github.com/robert-malhotra/go-tables/tables"
)

// app carries the settings shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	verbose    bool

	cfg config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{log: zap.NewNop()}
	cmd := &cobra.Command{
		Use:           "ptdump",
		Short:         "Inspect hierarchical table files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level, overriding the config")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log to the console at debug level")

	cmd.AddCommand(
		newTreeCommand(a),
		newShowCommand(a),
		newAttrsCommand(a),
		newCopyCommand(a),
		newRawCommand(a),
	)
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	switch {
	case a.verbose:
		level = "debug"
	case a.logLevel != "":
		level = a.logLevel
	}
	log, err := logging.New(level, a.verbose)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

// open opens path with the configured parameters.
func (a *app) open(path string, mode tables.Mode) (*tables.File, error) {
	return tables.Open(path, mode,
		tables.WithLogger(a.log),
		tables.WithParameters(a.cfg.Tables))
}
