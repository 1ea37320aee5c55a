package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/keyguard/cmd/app/commands"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "provision",
			Usage: "Create the KEK and wrapped data key if they do not exist yet",
			Flags: []cli.Flag{formatFlag()},
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

				return commands.RunProvision(
					ctx,
					envelopeUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "status",
			Usage: "Show the data key state without creating anything",
			Flags: []cli.Flag{formatFlag()},
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

				return commands.RunStatus(ctx, envelopeUseCase, commands.DefaultIO().Writer, cmd.String("format"))
			},
		},
		{
			Name:  "hash-credential",
			Usage: "Hash a keystore credential for KEYSTORE_CREDENTIAL_HASH",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "credential",
					Usage: "Credential to hash (read from stdin when omitted)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunHashCredential(commands.DefaultIO(), cmd.String("credential"))
			},
		},
		{
			Name:  "create-kms-key",
			Usage: "Verify a KMS key URI, or generate a local base64key:// key for development",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Usage: "KMS key URI to verify (gcpkms://, awskms://, azurekeyvault://, hashivault://)",
				},
				&cli.StringFlag{
					Name:  "alias",
					Value: "keyguard_keystore_key",
					Usage: "Key alias used for the check",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateKMSKey(
					ctx,
					container.KMSService(),
					cmd.String("alias"),
					cmd.String("kms-key-uri"),
					container.Logger(),
					commands.DefaultIO().Writer,
				)
			},
		},
	}
}
