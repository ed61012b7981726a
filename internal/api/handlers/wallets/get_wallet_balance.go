package wallets

import (
	"net/http"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/util"
	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
)

type walletBalanceResponse struct {
	AgentID *string `json:"agent_id"`
	Address *string `json:"address"`
	Balance uint64  `json:"balance"`
}

func GetWalletBalanceRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1.GET("/wallets/:agent_id/balance", getWalletBalanceHandler(s))
}

func getWalletBalanceHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		rec, err := s.Registry.Get(c.Param("agent_id"))
		if err != nil {
			return err
		}

		balance, err := s.Ledger.GetBalance(ctx, rec.PublicKey)
		if err != nil {
			log.Error().Err(err).Str("agent_id", rec.AgentID).Msg("Failed to fetch balance")
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &walletBalanceResponse{
			AgentID: swag.String(rec.AgentID),
			Address: swag.String(rec.Address()),
			Balance: balance,
		})
	}
}
