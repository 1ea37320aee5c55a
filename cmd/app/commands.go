package main

import (
	"github.com/urfave/cli/v3"

	"github.com/allisson/keyguard/internal/app"
	"github.com/allisson/keyguard/internal/config"
)

func getCommands(version string) []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getKeyCommands()...)
	return cmds
}

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

// newContainer loads and validates configuration.
func newContainer() (*app.Container, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.NewContainer(cfg), nil
}
