package wallets

import (
	"net/http"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/util"
	"github.com/labstack/echo/v4"
)

func GetWalletRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1.GET("/wallets/:agent_id", getWalletHandler(s))
}

func getWalletHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := s.Registry.Get(c.Param("agent_id"))
		if err != nil {
			return err
		}
		return util.ValidateAndReturn(c, http.StatusOK, walletResponse(rec))
	}
}
