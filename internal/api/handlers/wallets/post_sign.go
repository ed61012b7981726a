package wallets

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/agentvault/agent-vault/internal/api"
	"github.com/agentvault/agent-vault/internal/types"
	"github.com/agentvault/agent-vault/internal/util"
	"github.com/agentvault/agent-vault/internal/wallet"
	"github.com/btcsuite/btcutil/base58"
	"github.com/go-openapi/swag"
	"github.com/labstack/echo/v4"
)

func PostSignRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1.POST("/wallets/:agent_id/sign", postSignHandler(s))
}

// postSignHandler signs a 32-byte message digest through whichever
// authority currently holds custody of the wallet.
func postSignHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		agentID := c.Param("agent_id")

		var body types.PostSignPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		messageHex := strings.TrimPrefix(*body.MessageHex, "0x")
		decoded, err := hex.DecodeString(messageHex)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "message_hex is not valid hex")
		}
		if len(decoded) != 32 {
			return echo.NewHTTPError(http.StatusBadRequest, "message_hex must decode to exactly 32 bytes")
		}
		var message [32]byte
		copy(message[:], decoded)

		sig, err := s.Signing.Sign(ctx, agentID, message)
		if err != nil {
			log.Warn().Err(err).Str("agent_id", agentID).Msg("Signing request failed")
			return err
		}

		rec, err := s.Registry.Get(agentID)
		if err != nil {
			return err
		}

		// Local signatures are produced and checked in-process; cluster
		// signatures are verified only when the connection is live.
		verified := rec.Custody == wallet.CustodyLocal ||
			(s.Cluster != nil && s.Cluster.HasLiveConnection())

		return util.ValidateAndReturn(c, http.StatusOK, &types.SignResponse{
			AgentID:         swag.String(agentID),
			SignatureBase58: swag.String(base58.Encode(sig)),
			Verified:        verified,
			Custody:         swag.String(string(rec.Custody)),
		})
	}
}
