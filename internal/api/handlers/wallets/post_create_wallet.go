package wallets

import (
	"net/http"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/types"
	"github.com/agentvault/agent-vault/internal/util"
	"github.com/agentvault/agent-vault/internal/wallet"
	"github.com/btcsuite/btcutil/base58"
	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
)

func PostCreateWalletRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1.POST("/wallets", postCreateWalletHandler(s))
}

// postCreateWalletHandler creates the agent's wallet, or returns the
// existing one unchanged.
func postCreateWalletHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		var body types.PostCreateWalletPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		rec, err := s.Registry.CreateOrLoad(*body.AgentID)
		if err != nil {
			log.Error().Err(err).Str("agent_id", *body.AgentID).Msg("Failed to create wallet")
			return err
		}

		return util.ValidateAndReturn(c, http.StatusCreated, walletResponse(rec))
	}
}

func walletResponse(rec *wallet.WalletRecord) *types.WalletResponse {
	return &types.WalletResponse{
		AgentID:   swag.String(rec.AgentID),
		Address:   swag.String(rec.Address()),
		PublicKey: swag.String(base58.Encode(rec.PublicKey)),
		Custody:   swag.String(string(rec.Custody)),
		CreatedAt: rec.CreatedAt,
	}
}
