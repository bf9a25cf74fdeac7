package core

import "errors"

// Request-scoped failures. Services wrap these with detail; callers match
// them with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not authorized")
	ErrDuplicate      = errors.New("already exists")
	ErrUpstream       = errors.New("upstream completion failed")
)
