package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/featureflags/internal/auth/domain"
	"github.com/smallbiznis/featureflags/internal/auth/password"
	"github.com/smallbiznis/featureflags/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Users *config.AdminUsersHolder
}

type Service struct {
	log       *zap.Logger
	users     *config.AdminUsersHolder
	bootstrap *config.AdminUser
	// dummyHash keeps unknown usernames on the same argon2 cost as known ones.
	dummyHash string
}

func New(p Params) (domain.Authenticator, error) {
	log := p.Log.Named("auth.service")

	bootstrap, err := bootstrapAdmin(p.Cfg.Admin)
	if err != nil {
		return nil, err
	}
	if bootstrap == nil {
		log.Warn("no bootstrap admin configured, set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}

	dummy, err := password.Hash("featureflags-unknown-user")
	if err != nil {
		return nil, err
	}

	users := p.Users
	if users == nil {
		users = config.NewStaticAdminUsersHolder()
	}

	return &Service{
		log:       log,
		users:     users,
		bootstrap: bootstrap,
		dummyHash: dummy,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, username, secret string) (*domain.Identity, error) {
	name := strings.TrimSpace(username)
	if name == "" || secret == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, ok := s.lookup(name)
	if !ok {
		password.Verify(secret, s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(secret, user.PasswordHash) {
		s.log.Debug("admin password mismatch", zap.String("username", name))
		return nil, domain.ErrInvalidCredentials
	}

	return &domain.Identity{Username: user.Username, Role: domain.RoleAdmin}, nil
}

// lookup prefers the users file over the bootstrap admin.
func (s *Service) lookup(username string) (config.AdminUser, bool) {
	if user, ok := s.users.Lookup(username); ok {
		return user, true
	}
	if s.bootstrap != nil && s.bootstrap.Username == username {
		return *s.bootstrap, true
	}
	return config.AdminUser{}, false
}

func bootstrapAdmin(cfg config.AdminConfig) (*config.AdminUser, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, nil
	}

	if hash := strings.TrimSpace(cfg.PasswordHash); hash != "" {
		if err := password.Check(hash); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err)
		}
		return &config.AdminUser{Username: username, PasswordHash: hash}, nil
	}

	if cfg.Password == "" {
		return nil, nil
	}
	hash, err := password.Hash(cfg.Password)
	if err != nil {
		return nil, err
	}
	return &config.AdminUser{Username: username, PasswordHash: hash}, nil
}
