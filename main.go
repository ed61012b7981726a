package main

import (
	"time"

	"github.com/agentvault/agent-vault/cmd/probe"
	"github.com/agentvault/agent-vault/cmd/server"
	"github.com/agentvault/agent-vault/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.DefaultServiceConfigFromEnv()
	initLogger(cfg.Logger)

	rootCmd := &cobra.Command{
		Use:   "agentd",
		Short: "Agent wallet custody and MPC signing service",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				log.Fatal().Err(err).Msg("Failed to print help")
			}
		},
	}
	rootCmd.AddCommand(server.New(), probe.New())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func initLogger(cfg config.Logger) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter())
	}
}
