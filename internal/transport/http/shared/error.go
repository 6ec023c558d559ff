// Package shared holds transport helpers used by every handler: domain error
// translation and session cookie handling.
package shared

import (
	"errors"
	"net/http"

	jsonResponse "authgate/internal/transport/http/json"
	dErrors "authgate/pkg/domain-errors"
)

// WriteError translates transport-agnostic domain errors into HTTP status
// codes and a JSON error body. Unexpected errors never leak their text.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		jsonResponse.WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
		return
	}

	jsonResponse.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidCredentials, dErrors.CodeMissingSession:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeTooManyLoginAttempts:
		return http.StatusTooManyRequests
	case dErrors.CodeProviderError:
		return http.StatusBadGateway
	case dErrors.CodeMisconfiguredProvider:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
