package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/featureflags/internal/auth/domain"
	"github.com/smallbiznis/featureflags/internal/auth/password"
	"github.com/smallbiznis/featureflags/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthenticator(t *testing.T, admin config.AdminConfig, users ...config.AdminUser) domain.Authenticator {
	t.Helper()
	svc, err := New(Params{
		Cfg:   config.Config{Admin: admin},
		Log:   zap.NewNop(),
		Users: config.NewStaticAdminUsersHolder(users...),
	})
	require.NoError(t, err)
	return svc
}

func TestBootstrapAdminFromPlainPassword(t *testing.T) {
	svc := newAuthenticator(t, config.AdminConfig{Username: "admin", Password: "s3cret"})

	identity, err := svc.Authenticate(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{Username: "admin", Role: domain.RoleAdmin}, identity)

	_, err = svc.Authenticate(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestBootstrapAdminFromHash(t *testing.T) {
	hash, err := password.Hash("hashed")
	require.NoError(t, err)
	svc := newAuthenticator(t, config.AdminConfig{Username: "root", PasswordHash: hash})

	_, err = svc.Authenticate(context.Background(), "root", "hashed")
	assert.NoError(t, err)
}

func TestBootstrapAdminRejectsMalformedHash(t *testing.T) {
	_, err := New(Params{
		Cfg: config.Config{Admin: config.AdminConfig{Username: "root", PasswordHash: "plain"}},
		Log: zap.NewNop(),
	})
	assert.ErrorIs(t, err, password.ErrMalformedHash)
}

func TestNoBootstrapAdminWithoutPassword(t *testing.T) {
	svc := newAuthenticator(t, config.AdminConfig{Username: "admin"})

	_, err := svc.Authenticate(context.Background(), "admin", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Authenticate(context.Background(), "admin", "anything")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUsersFileAccounts(t *testing.T) {
	hash, err := password.Hash("ops-pass")
	require.NoError(t, err)
	svc := newAuthenticator(t, config.AdminConfig{},
		config.AdminUser{Username: "ops", PasswordHash: hash},
		config.AdminUser{Username: "gone", PasswordHash: hash, Disabled: true},
	)

	identity, err := svc.Authenticate(context.Background(), " ops ", "ops-pass")
	require.NoError(t, err)
	assert.Equal(t, "ops", identity.Username)

	_, err = svc.Authenticate(context.Background(), "gone", "ops-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "ops-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
