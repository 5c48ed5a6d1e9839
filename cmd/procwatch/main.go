package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := &RunFlags{}
	root := buildRoot(flags, func(ctx context.Context, f RunFlags, changed func(string) bool) error {
		cfg, err := loadConfig(f, changed)
		if err != nil {
			return err
		}
		return runSupervisor(ctx, cfg, os.Stdout)
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fatalLogger(*flags, os.Stderr).Error("procwatch failed", "error", err)
		stop()
		os.Exit(1)
	}
}
