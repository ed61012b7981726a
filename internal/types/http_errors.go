package types

import "github.com/go-openapi/swag"

const (
	PublicHTTPErrorTypeGeneric = "generic"
)

// PublicHTTPError is the wire shape of every error response.
type PublicHTTPError struct {
	Code   *int64  `json:"code"`
	Type   *string `json:"type"`
	Title  *string `json:"title"`
	Detail string  `json:"detail,omitempty"`
}

func NewPublicHTTPError(code int, errType string, title string) *PublicHTTPError {
	return &PublicHTTPError{
		Code:  swag.Int64(int64(code)),
		Type:  swag.String(errType),
		Title: swag.String(title),
	}
}
