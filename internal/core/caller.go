package core

import (
	"fmt"
	"time"

	"gwi.com/llm-chat-service/internal/auth"
)

const RoleAdmin = "admin"

// Caller is the identity carried by a request token.
type Caller struct {
	Email string
	Role  string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanAccess reports whether the caller owns a resource belonging to ownerEmail
// or is an admin.
func (c Caller) CanAccess(ownerEmail string) bool {
	return c.IsAdmin() || (ownerEmail != "" && c.Email == ownerEmail)
}

func resolveCaller(tokens *auth.TokenService, token string) (Caller, error) {
	email, role, err := tokens.Identity(token)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return Caller{Email: email, Role: role}, nil
}

func requireAdmin(tokens *auth.TokenService, token string) (Caller, error) {
	caller, err := resolveCaller(tokens, token)
	if err != nil {
		return Caller{}, err
	}
	if !caller.IsAdmin() {
		return Caller{}, fmt.Errorf("%w: admin role required", ErrAuthorization)
	}
	return caller, nil
}

// Clock returns the current time; services take one so tests can pin it.
type Clock func() time.Time
