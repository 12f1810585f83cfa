package cmd

import (
	"context"
	"fmt"
	"os"

	"couple-notes-backend/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// Run parses the command line and runs the selected command
func Run() {
	root := &cli.Command{
		Name:  "couple-notes",
		Usage: "Shared notes for two: API server and device sync client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config.yaml",
				Value:       "config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			profileCommand(),
			linkCommand(),
			unlinkCommand(),
			noteCommand(),
			partnerCommand(),
			tasksCommand(),
			widgetCommand(),
			outboxCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("Command failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file named by --config and sets up logging
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Log)
	return cfg, nil
}
