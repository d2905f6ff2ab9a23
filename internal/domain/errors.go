package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")

	// Verification store outcomes.
	ErrNoRecord = errors.New("no otp")
	ErrExpired  = errors.New("expired")
	ErrMismatch = errors.New("invalid code")
	ErrInvalid  = errors.New("invalid token")

	// Credit ledger and mail transport failures.
	ErrMissingCredential    = errors.New("missing credential")
	ErrUpstream             = errors.New("upstream error")
	ErrRateLimited          = errors.New("rate limited")
	ErrEndpointNotFound     = errors.New("endpoint not found")
	ErrTransportUnavailable = errors.New("mail transport unavailable")
	ErrDeliverable          = errors.New("deliverable not produced")
	ErrInvalidConfig        = errors.New("invalid configuration")
)

// Expiry outcomes carry the wording clients see; both match ErrExpired.
var (
	ErrOTPExpired   = fmt.Errorf("otp %w", ErrExpired)
	ErrTokenExpired = fmt.Errorf("token %w", ErrExpired)
)

// ClientError carries a message returned to the caller verbatim. It matches
// its Kind sentinel.
type ClientError struct {
	Kind error
	Msg  string
}

func (e *ClientError) Error() string { return e.Msg }
func (e *ClientError) Unwrap() error { return e.Kind }

func BadInput(msg string) error { return &ClientError{Kind: ErrBadRequest, Msg: msg} }

// Reject builds a ClientError of the given kind.
func Reject(kind error, msg string) error { return &ClientError{Kind: kind, Msg: msg} }
