package command

import (
	"context"

	"github.com/agentvault/agent-vault/internal/api"
	apirouter "github.com/agentvault/agent-vault/internal/api/router"
	"github.com/agentvault/agent-vault/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewSubcommandGroup returns a parent command that only dispatches to
// its subcommands.
func NewSubcommandGroup(name string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use: name,
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				log.Fatal().Err(err).Msg("Failed to print help")
			}
		},
	}
	cmd.AddCommand(subcommands...)
	return cmd
}

// WithServer builds the full server stack from cfg, hands it to f, and
// tears it down afterwards. The server is initialized but not started.
func WithServer(ctx context.Context, cfg config.Server, f func(ctx context.Context, s *api.Server) error) error {
	s, err := api.InitNewServer(ctx, cfg)
	if err != nil {
		return err
	}
	apirouter.Init(s)

	defer func() {
		if err := s.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down server cleanly")
		}
	}()

	return f(ctx, s)
}
