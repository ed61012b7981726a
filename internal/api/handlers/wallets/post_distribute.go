package wallets

import (
	"net/http"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/util"
	"github.com/labstack/echo/v4"
)

func PostDistributeRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1.POST("/wallets/:agent_id/distribute", postDistributeHandler(s))
}

// postDistributeHandler migrates the wallet's custody to the MPC
// cluster. Once confirmed there is no way back to local custody.
func postDistributeHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		agentID := c.Param("agent_id")

		if err := s.Signing.Distribute(ctx, agentID); err != nil {
			log.Warn().Err(err).Str("agent_id", agentID).Msg("Key distribution failed")
			return err
		}

		rec, err := s.Registry.Get(agentID)
		if err != nil {
			return err
		}
		return util.ValidateAndReturn(c, http.StatusOK, walletResponse(rec))
	}
}
