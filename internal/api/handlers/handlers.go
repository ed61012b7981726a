package handlers

import (
	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/api/handlers/wallets"
	"github.com/labstack/echo/v4"
)

// AttachAllRoutes binds every handler to the server's route groups.
func AttachAllRoutes(s *api.Server) {
	s.Echo.GET("/routes", getRoutes(s))

	wallets.PostCreateWalletRoute(s)
	wallets.GetWalletRoute(s)
	wallets.GetWalletBalanceRoute(s)
	wallets.PostSignRoute(s)
	wallets.PostDistributeRoute(s)
}

func getRoutes(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(200, s.Echo.Routes())
	}
}
