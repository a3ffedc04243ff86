package libshare

import "errors"

// Error kinds returned by the services. Callers classify failures with
// errors.Is; the interface layer (CLI, HTTP) maps them to its own codes.
var (
	ErrNotFound            = errors.New("not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConflict            = errors.New("conflict")
	ErrExpired             = errors.New("link expired")
	ErrPasswordRequired    = errors.New("password required")
	ErrPasswordIncorrect   = errors.New("password incorrect")
	ErrUpstreamUnavailable = errors.New("repo service unavailable")
	ErrInternal            = errors.New("internal error")
)
