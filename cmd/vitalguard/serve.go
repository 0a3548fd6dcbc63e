package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/internal/server"
	"github.com/hed1ad/vitalguard/internal/version"
	"github.com/hed1ad/vitalguard/pkg/predict"
)

func newServeCmd(a *app) *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model artifact and serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if modelPath == "" {
				modelPath = a.cfg.Model.Path
			}
			a.logger.Info("vitalguard starting", zap.String("version", version.Short()))

			svc := predict.New(a.logger.Named("predict"), a.cfg.Risk)
			if err := svc.Load(modelPath); err != nil {
				a.logger.Error("model load failed, not serving",
					zap.String("component", "startup"),
					zap.String("path", modelPath),
					zap.Error(err),
				)
				return fmt.Errorf("load model: %w", err)
			}

			srv := server.New(a.cfg, svc, a.logger.Named("http"))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "artifact path (default model.path)")
	return cmd
}
