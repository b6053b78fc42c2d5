package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
	"github.com/capitalize-ai/vcon-datasets/internal/service"
)

type extractResult struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Pairs int    `json:"pairs"`
}

func extractCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("extract requires exactly one file argument")
	}
	path := c.Args().First()

	name := c.String("name")
	if name == "" {
		name = filepath.Base(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	rt, err := newRuntime(c.Context, appConfig(c), appLogger(c))
	if err != nil {
		return err
	}
	defer rt.close()

	dataset, err := rt.pipeline.Run(c.Context, service.Record{
		Name:   name,
		Source: model.SourceCLI,
		Data:   data,
	})
	if err != nil {
		return err
	}

	stored, err := rt.store.Path(name)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(extractResult{
		Name:  name,
		Path:  stored,
		Pairs: len(dataset.Conversation),
	})
}
