package main

import (
	"context"

	"github.com/level10nurd/documentExtraction/internal/config"
	"github.com/level10nurd/documentExtraction/internal/container"
	httpapi "github.com/level10nurd/documentExtraction/internal/interfaces/http"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func runServe(ctx context.Context, cfg *config.Config, _ *pflag.FlagSet, logger *zap.Logger) error {
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx, container.ComponentDatabase); err != nil {
		return err
	}
	defer c.Close()

	store, err := c.ReportStore()
	if err != nil {
		return err
	}

	server := httpapi.NewServer(cfg.HTTPConfig(), store, logger)
	return server.Start(ctx)
}
