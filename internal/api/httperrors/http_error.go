package httperrors

import (
	"fmt"

	"github.com/agentvault/agent-vault/internal/types"
)

// HTTPError wraps the public error payload so handlers can return it
// directly as an error value.
type HTTPError struct {
	types.PublicHTTPError
	Internal error
}

func NewHTTPError(code int, errType string, title string) *HTTPError {
	return &HTTPError{
		PublicHTTPError: *types.NewPublicHTTPError(code, errType, title),
	}
}

func NewHTTPErrorWithDetail(code int, errType string, title string, detail string) *HTTPError {
	e := NewHTTPError(code, errType, title)
	e.Detail = detail
	return e
}

func (e *HTTPError) Error() string {
	var code int64
	if e.Code != nil {
		code = *e.Code
	}
	var title string
	if e.Title != nil {
		title = *e.Title
	}

	msg := fmt.Sprintf("HTTPError %d: %s", code, title)
	if e.Detail != "" {
		msg += fmt.Sprintf(" - %s", e.Detail)
	}
	if e.Internal != nil {
		msg += fmt.Sprintf(", %v", e.Internal)
	}
	return msg
}
