package service

import (
	"errors"
	"fmt"

	"github.com/platformplatform/identity-service/internal/domain"
)

// Kind classifies a business failure for transport mapping.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindForbidden
	KindUnauthorized
)

// Error is a typed business failure resolved locally by a flow step. It never
// crosses a handler boundary as a panic; handlers map Kind to an HTTP status
// and a problem-details body.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest creates a business validation failure.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// NotFound creates a missing-record failure.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden creates a budget/permission failure.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Unauthorized creates an authentication failure.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind, true
	}
	return 0, false
}

// ExternalLoginError is a terminal failure of the external OAuth flow. The
// callback is a top-level browser navigation, so handlers surface it as a
// redirect carrying the OIDC error code, never as JSON.
type ExternalLoginError struct {
	ExternalLoginID string
	OIDCCode        string
	Result          domain.LoginResult
	Err             error
}

func (e *ExternalLoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("external login failed (%s): %v", e.OIDCCode, e.Err)
	}
	return fmt.Sprintf("external login failed (%s)", e.OIDCCode)
}

func (e *ExternalLoginError) Unwrap() error {
	return e.Err
}

func externalLoginFailure(externalLoginID string, result domain.LoginResult, err error) *ExternalLoginError {
	return &ExternalLoginError{
		ExternalLoginID: externalLoginID,
		OIDCCode:        result.OIDCErrorCode(),
		Result:          result,
		Err:             err,
	}
}

func externalLoginRejected(externalLoginID, oidcCode string, err error) *ExternalLoginError {
	return &ExternalLoginError{
		ExternalLoginID: externalLoginID,
		OIDCCode:        oidcCode,
		Err:             err,
	}
}
