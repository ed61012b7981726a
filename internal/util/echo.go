package util

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Validatable is implemented by payload types that can check their own
// required fields.
type Validatable interface {
	Validate() error
}

// BindAndValidateBody binds the JSON request body into v and runs its
// validation. Failures surface as 400s.
func BindAndValidateBody(c echo.Context, v Validatable) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to parse request body").SetInternal(err)
	}
	if err := v.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ValidateAndReturn validates the response payload if it knows how,
// then writes it as JSON.
func ValidateAndReturn(c echo.Context, code int, v interface{}) error {
	if validatable, ok := v.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return err
		}
	}
	return c.JSON(code, v)
}
