package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/critic-sh/critic/internal/commands"
	"github.com/critic-sh/critic/internal/core/ai"
	"github.com/critic-sh/critic/internal/core/config"
	"github.com/critic-sh/critic/internal/core/deliver"
	"github.com/critic-sh/critic/internal/core/detect"
	"github.com/critic-sh/critic/internal/core/mcp"
	"github.com/critic-sh/critic/internal/core/target"
	"github.com/critic-sh/critic/internal/data/db"
	"github.com/critic-sh/critic/internal/data/stores"
	"github.com/critic-sh/critic/pkg/executil"
	"github.com/critic-sh/critic/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser   func()
		criticApp   = &commands.App{}
		database    *db.DB
		pruneCancel context.CancelFunc
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "critic",
		Usage:     "Deliver code review comments to AI coding agents",
		UsageText: "critic [global options] command [command options]",
		Description: `Critic tracks review comments through a delivery lifecycle and routes them
to a running coding-agent session, a registered remote client, or the
clipboard.

Run 'critic' with no arguments to start the web server the review UI polls.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("CRITIC_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/critic.log)",
				Sources:     cli.EnvVars("CRITIC_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CRITIC_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("CRITIC_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/critic.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "critic.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return ctx, fmt.Errorf("create data dir: %w", err)
			}

			database, err = db.Open(cfg.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			commentStore := stores.NewCommentStore(database)
			clientStore := stores.NewClientStore(database)
			kvStore := stores.NewKVStore(database)

			registry := mcp.NewRegistry(clientStore, cfg.FreshnessWindow, log.Logger)

			// Background housekeeping for stale heartbeat rows.
			pruneCtx, cancel := context.WithCancel(context.Background())
			pruneCancel = cancel
			go mcp.StartPruner(pruneCtx, clientStore, 0, 0, log.Logger)

			exec := &executil.RealExecutor{}
			detector := detect.New(exec, detect.NewPSInspector(exec), cfg.Agents, log.Logger)

			chain := make([]ai.ChainEntry, 0, len(cfg.AI.Chain))
			for _, e := range cfg.AI.Chain {
				chain = append(chain, ai.ChainEntry{Provider: e.Provider, Model: e.Model})
			}

			*criticApp = commands.App{
				Store:    commentStore,
				Registry: registry,
				Resolver: target.NewResolver(registry, log.Logger),
				Detector: detector,
				Pipeline: ai.NewPipeline(kvStore, chain, log.Logger),
				Deliver:  deliver.NewOrchestrator(commentStore, exec, log.Logger),
			}

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if pruneCancel != nil {
				pruneCancel()
			}

			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	serveCmd := commands.NewServeCmd(flags, criticApp)

	app = commands.NewTargetsCmd(flags, criticApp).Register(app)
	app = commands.NewSessionsCmd(flags, criticApp).Register(app)
	app = commands.NewSendCmd(flags, criticApp).Register(app)

	// Register serve flags on root command
	app.Flags = append(app.Flags, serveCmd.Flags()...)

	// Serve is the default action when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'critic --help' for usage", c.Args().First())
		}
		return serveCmd.Run(ctx, c)
	}

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
