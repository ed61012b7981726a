package api

import (
	"context"

	"github.com/agentvault/agent-vault/internal/config"
	"github.com/agentvault/agent-vault/internal/ledger"
	"github.com/agentvault/agent-vault/internal/mpc"
	"github.com/agentvault/agent-vault/internal/router"
	"github.com/agentvault/agent-vault/internal/wallet"
	"github.com/labstack/echo/v4"
)

// Router holds the echo route groups handlers attach to.
type Router struct {
	Root  *echo.Group
	APIV1 *echo.Group
}

// Server bundles the HTTP surface with the services the handlers call
// into. Handler packages receive the whole server and pick what they
// need.
type Server struct {
	Config   config.Server
	Echo     *echo.Echo
	Router   *Router
	Registry *wallet.Registry
	Signing  *router.Router
	Cluster  *mpc.Client
	Ledger   *ledger.Client
}

func NewServer(cfg config.Server, registry *wallet.Registry, signing *router.Router, cluster *mpc.Client, ledgerClient *ledger.Client) *Server {
	return &Server{
		Config:   cfg,
		Registry: registry,
		Signing:  signing,
		Cluster:  cluster,
		Ledger:   ledgerClient,
	}
}

// Start begins serving on the configured listen address. Blocks until
// the server stops.
func (s *Server) Start() error {
	return s.Echo.Start(s.Config.Echo.ListenAddress)
}

// Shutdown drains in-flight requests, then closes the cluster client.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Echo.Shutdown(ctx); err != nil {
		return err
	}
	if s.Cluster != nil {
		return s.Cluster.Close()
	}
	return nil
}
