package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/critic-sh/critic/internal/web"
)

type ServeCmd struct {
	flags *Flags
	app   *App

	addr string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, app *App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

// Flags returns the serve flags for registration on the root command.
// Serving is the default action, so these live on the root rather than a
// subcommand.
func (cmd *ServeCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address (overrides config)",
			Destination: &cmd.addr,
		},
	}
}

func (cmd *ServeCmd) Run(ctx context.Context, _ *cli.Command) error {
	addr := cmd.addr
	if addr == "" {
		addr = cmd.flags.Config.Addr
	}

	handlers := web.NewHandlers(
		cmd.app.Store,
		cmd.app.Registry,
		cmd.app.Resolver,
		cmd.app.Detector,
		cmd.app.Pipeline,
		log.Logger,
	)
	server := web.NewServer(addr, handlers, log.Logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	if err := server.Stop(); err != nil {
		return err
	}
	return <-errCh
}
