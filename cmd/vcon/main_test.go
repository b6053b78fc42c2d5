package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/capitalize-ai/vcon-datasets/internal/config"
	"github.com/capitalize-ai/vcon-datasets/internal/service"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
)

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp()

	for _, name := range []string{"serve", "watch", "extract"} {
		assert.NotNil(t, findCommand(app, name), name)
	}

	serve := findCommand(app, "serve")
	var hasWatch bool
	for _, f := range serve.Flags {
		if bf, ok := f.(*cli.BoolFlag); ok && bf.Name == "watch" {
			hasWatch = true
		}
	}
	assert.True(t, hasWatch)
}

func TestExtractRequiresFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	app := newApp()

	err := app.Run([]string{"vcon", "extract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one file argument")
}

func TestExtractMissingFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	app := newApp()

	err := app.Run([]string{"vcon", "extract", "does-not-exist.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mystery")
	app := newApp()

	err := app.Run([]string{"vcon", "extract", "a.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLMProvider")
}

func TestSetupRejectsMissingConfigFile(t *testing.T) {
	app := newApp()

	err := app.Run([]string{"vcon", "--config", "missing.yaml", "extract", "a.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestStartWatchRejectsUnusableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "uploads")
	require.NoError(t, os.WriteFile(file, []byte("not a directory"), 0o644))

	rt := &runtime{cfg: config.Default(), log: logger.NewNop(), pipeline: &service.Pipeline{}}

	wait, err := rt.startWatch(context.Background(), file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create watch directory")
	assert.Nil(t, wait)
}

func TestStartWatchStopsOnCancel(t *testing.T) {
	rt := &runtime{cfg: config.Default(), log: logger.NewNop(), pipeline: &service.Pipeline{}}

	ctx, cancel := context.WithCancel(context.Background())
	wait, err := rt.startWatch(ctx, filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	cancel()
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
