package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrank/internal/api"
	"github.com/dgallion1/docrank/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve outline and ranking over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetString("port"); v != "" {
			cfg.Port = v
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		embedder, stats, err := newEmbedder(cfg, logger)
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, embedder, logger)
		srv := api.NewServer(p, stats, logger, cfg)

		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		ctx := cmd.Context()
		go func() {
			<-ctx.Done()
			logger.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		logger.Info("starting docrank", "port", cfg.Port, "embedder", cfg.Embedder, "auth", cfg.APIKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (default $PORT or 8090)")

	rootCmd.AddCommand(serveCmd)
}
