package httperrors

import (
	"net/http"

	"github.com/agentvault/agent-vault/internal/types"
)

var (
	ErrNotFoundWallet       = NewHTTPError(http.StatusNotFound, types.PublicHTTPErrorTypeGeneric, "Wallet not found.")
	ErrConflictWalletState  = NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeGeneric, "Wallet custody state forbids this operation.")
	ErrPaymentMinBalance    = NewHTTPError(http.StatusPaymentRequired, types.PublicHTTPErrorTypeGeneric, "Wallet balance below signing minimum.")
	ErrBadGatewaySignature  = NewHTTPError(http.StatusBadGateway, types.PublicHTTPErrorTypeGeneric, "Cluster signature failed verification.")
	ErrGatewayTimeoutMPC    = NewHTTPError(http.StatusGatewayTimeout, types.PublicHTTPErrorTypeGeneric, "MPC computation did not finish in time.")
	ErrServiceUnavailable   = NewHTTPError(http.StatusServiceUnavailable, types.PublicHTTPErrorTypeGeneric, "MPC cluster is unavailable.")
	ErrUnauthorizedKeyStore = NewHTTPError(http.StatusUnauthorized, types.PublicHTTPErrorTypeGeneric, "Key store authentication failed.")
)
