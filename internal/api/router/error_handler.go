package router

import (
	"net/http"

	"github.com/agentvault/agent-vault/internal/api/httperrors"
	"github.com/agentvault/agent-vault/internal/mpc"
	signrouter "github.com/agentvault/agent-vault/internal/router"
	"github.com/agentvault/agent-vault/internal/types"
	"github.com/agentvault/agent-vault/internal/vault"
	"github.com/agentvault/agent-vault/internal/wallet"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// HTTPErrorHandler renders every error as a PublicHTTPError, mapping
// domain sentinels to their HTTP status.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	payload := toPublicHTTPError(err)

	if *payload.Code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("Request failed")
	}

	if c.Request().Method == http.MethodHead {
		if err := c.NoContent(int(*payload.Code)); err != nil {
			log.Error().Err(err).Msg("Failed to write error response")
		}
		return
	}

	if err := c.JSON(int(*payload.Code), payload); err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}

func toPublicHTTPError(err error) *types.PublicHTTPError {
	var httpErr *httperrors.HTTPError
	if errors.As(err, &httpErr) {
		return &httpErr.PublicHTTPError
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		title := http.StatusText(echoErr.Code)
		if msg, ok := echoErr.Message.(string); ok {
			title = msg
		}
		return types.NewPublicHTTPError(echoErr.Code, types.PublicHTTPErrorTypeGeneric, title)
	}

	switch {
	case errors.Is(err, wallet.ErrWalletNotFound):
		return &httperrors.ErrNotFoundWallet.PublicHTTPError
	case errors.Is(err, wallet.ErrWalletStateConflict):
		return &httperrors.ErrConflictWalletState.PublicHTTPError
	case errors.Is(err, signrouter.ErrInsufficientResources):
		return &httperrors.ErrPaymentMinBalance.PublicHTTPError
	case errors.Is(err, vault.ErrAuthenticationFailure):
		return &httperrors.ErrUnauthorizedKeyStore.PublicHTTPError
	case errors.Is(err, mpc.ErrSignatureVerificationFailure):
		return &httperrors.ErrBadGatewaySignature.PublicHTTPError
	case errors.Is(err, mpc.ErrComputationTimeout):
		return &httperrors.ErrGatewayTimeoutMPC.PublicHTTPError
	case errors.Is(err, mpc.ErrMpcUnavailable):
		return &httperrors.ErrServiceUnavailable.PublicHTTPError
	}

	return types.NewPublicHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, http.StatusText(http.StatusInternalServerError))
}
