package service

import (
	"errors"
	"net/http"
)

// ErrorKind is the OAuth error taxonomy. Validation failures are rejected
// before any store call; storage failures after successful validation
// surface as KindServerError.
type ErrorKind string

const (
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindInvalidClient      ErrorKind = "invalid_client"
	KindInvalidToken       ErrorKind = "invalid_token"
	KindUnauthorizedClient ErrorKind = "unauthorized_client"
	KindServerError        ErrorKind = "server_error"
)

// Stable machine-readable codes surfaced to callers.
const (
	CodeNoAuthentication    = "AUTH401"
	CodeMissingGrantType    = "AUTH402"
	CodeGrantNotAcceptable  = "AUTH403"
	CodeMissingClientID     = "AUTH404"
	CodeMissingClientSecret = "AUTH405"
	CodeMissingUsername     = "AUTH406"
	CodeMissingPassword     = "AUTH407"
	CodeMissingRefreshToken = "AUTH408"
	CodeMissingAppKey       = "AUTH409"
	CodeMissingOS           = "AUTH410"
	CodeNoMatchedUser       = "AUTH101"
	CodeClosedAccount       = "AUTH102"
)

// AuthError is a typed authentication/validation error with the HTTP
// status and machine code the boundary layer presents. Internal storage
// errors are wrapped, logged, and never leak into Message.
type AuthError struct {
	Kind    ErrorKind
	Code    string
	Status  int
	Message string
	Wrapped error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Wrapped
}

func invalidRequest(code, msg string) *AuthError {
	return &AuthError{Kind: KindInvalidRequest, Code: code, Status: http.StatusBadRequest, Message: msg}
}

func invalidClient(code, msg string) *AuthError {
	return &AuthError{Kind: KindInvalidClient, Code: code, Status: http.StatusBadRequest, Message: msg}
}

func invalidToken(err error) *AuthError {
	return &AuthError{Kind: KindInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token", Wrapped: err}
}

func unauthorizedClient(msg string) *AuthError {
	return &AuthError{Kind: KindUnauthorizedClient, Status: http.StatusUnauthorized, Message: msg}
}

func serverError(msg string, err error) *AuthError {
	return &AuthError{Kind: KindServerError, Status: http.StatusInternalServerError, Message: msg, Wrapped: err}
}

// Not-found errors for the statistics query surface, mapped to 404 by the
// handlers.
var (
	ErrServiceNotFound = errors.New("the service does not exist")
	ErrDeviceNotFound  = errors.New("the device does not exist")
)
