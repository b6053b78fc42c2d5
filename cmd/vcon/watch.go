package main

import (
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func watchCommand(c *cli.Context) error {
	cfg := appConfig(c)
	log := appLogger(c)

	dir := cfg.UploadDir
	if d := c.String("dir"); d != "" {
		dir = d
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	wait, err := rt.startWatch(ctx, dir)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("interrupt received, stopping watcher", zap.String("dir", dir))
	wait()
	return nil
}
