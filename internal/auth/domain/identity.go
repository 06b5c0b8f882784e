package domain

import (
	"context"
	"errors"
)

const (
	RoleAdmin     = "ADMIN"
	RoleAPIClient = "API_CLIENT"
)

// Identity is an authenticated admin caller.
type Identity struct {
	Username string
	Role     string
}

// Authenticator verifies admin credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
}

var ErrInvalidCredentials = errors.New("invalid_credentials")
