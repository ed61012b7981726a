package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentvault/agent-vault/internal/api"
	apirouter "github.com/agentvault/agent-vault/internal/api/router"
	"github.com/agentvault/agent-vault/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Starts the agent wallet service",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

func runServer() {
	ctx := context.Background()
	cfg := config.DefaultServiceConfigFromEnv()

	s, err := api.InitNewServer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	apirouter.Init(s)

	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	log.Info().
		Str("listen_address", cfg.Echo.ListenAddress).
		Bool("live_cluster", s.Cluster.HasLiveConnection()).
		Msg("Agent wallet service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to gracefully shut down server")
	}
}
