package paysdktest

import (
	"net/http"
)

// APIError is the error body the API returns.
type APIError struct {
	Code    int    `json:"-"`
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id,omitempty"`
}

// NewError builds an APIError for a stubbed failure.
func NewError(code int, name, message string) *APIError {
	return &APIError{
		Code:    code,
		Name:    name,
		Message: message,
	}
}

func (e *APIError) Error() string {
	return e.Name + ": " + e.Message
}

var (
	errAuthentication = NewError(http.StatusUnauthorized, "AUTHENTICATION_FAILURE",
		"Authentication failed due to invalid authentication credentials or a missing Authorization header.")
	errMalformedJSON = NewError(http.StatusBadRequest, "MALFORMED_REQUEST_JSON",
		"The request JSON is not well formed.")
)

// tokenError is the OAuth2 error body of the token endpoint.
type tokenError struct {
	Code        int    `json:"-"`
	Err         string `json:"error"`
	Description string `json:"error_description"`
}

func (e *tokenError) Error() string {
	return e.Err + ": " + e.Description
}
