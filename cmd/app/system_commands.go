package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/keyguard/cmd/app/commands"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Provision the data key and serve the status API",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(context.Background()) }()

				return commands.RunServer(ctx, container, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Create or upgrade the wrapped_keys table (postgres and mysql stores)",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				cfg := container.Config()
				return commands.RunMigrations(container.Logger(), cfg.WrappedKeyStore, cfg.DBConnectionString)
			},
		},
		{
			Name:  "open-store",
			Usage: "Open the encrypted store with the data key and verify it",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunOpenStore(ctx, container, container.Logger(), commands.DefaultIO().Writer)
			},
		},
		{
			Name:  "reset",
			Usage: "Erase the encrypted store and its data key",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "confirm",
					Usage: "Confirm that every stored value will be lost",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				envelopeUseCase, err := container.EnvelopeUseCase()
				if err != nil {
					return err
				}

				return commands.RunReset(
					ctx,
					envelopeUseCase,
					container.Config().StorageDir,
					cmd.Bool("confirm"),
					container.Logger(),
					commands.DefaultIO().Writer,
				)
			},
		},
	}
}
