// Package main is the entry point for the vCon dataset service.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/capitalize-ai/vcon-datasets/internal/config"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
)

const (
	serviceName = "vcon-datasets"

	metaConfig = "config"
	metaLogger = "logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vcon",
		Usage: "Turn vCon conversation records into structured training datasets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"VCON_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		After: func(c *cli.Context) error {
			if log, ok := c.App.Metadata[metaLogger].(*logger.Logger); ok {
				_ = log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (upload and retrieval endpoints)",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "Port to listen on (overrides PORT)",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Also watch the upload directory for new files",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Watch the upload directory and ingest new files",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory to watch (overrides UPLOAD_DIR)",
					},
				},
			},
			{
				Name:      "extract",
				Usage:     "Run one conversation record through the pipeline",
				ArgsUsage: "<file>",
				Action:    extractCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Dataset name (defaults to the file's base name)",
					},
				},
			},
		},
	}
}

// setup loads configuration and the logger shared by every command.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLogger] = log
	return nil
}

func newLogger(level string) (*logger.Logger, error) {
	if os.Getenv("ENV") == "development" {
		return logger.NewDevelopment()
	}
	return logger.New(level)
}

func appConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[metaConfig].(*config.Config)
}

func appLogger(c *cli.Context) *logger.Logger {
	return c.App.Metadata[metaLogger].(*logger.Logger)
}
