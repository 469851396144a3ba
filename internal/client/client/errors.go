package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tablescout/tablescout/internal/common"
)

var ErrUnavailable = errors.New("server unavailable")

type errorBody struct {
	Error string `json:"error"`
}

// mapError turns a non-2xx response into a sentinel error.
func mapError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrorValidation, eb.Error)
	case http.StatusUnauthorized:
		switch eb.Error {
		case "invalid credentials":
			return common.ErrInvalidCredentials
		case "session expired":
			return common.ErrSessionExpired
		case "token expired":
			return common.ErrTokenExpired
		}
		return common.ErrorUnauthorized
	case http.StatusForbidden:
		return common.ErrForbidden
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrorAlreadyExists
	case http.StatusTooManyRequests:
		return common.ErrTooManyAttempts
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	}
	return fmt.Errorf("%w: status %d", common.ErrorInternal, status)
}
