package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/featureflags/internal/auth/password"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AdminUser is one entry of the admin users file. Only argon2id hashes are
// accepted; plaintext passwords never live in the file.
type AdminUser struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"passwordHash"`
	Disabled     bool   `mapstructure:"disabled"`
}

// AdminUsersHolder keeps the latest valid admin users set. The file is
// watched and swapped in place; an invalid edit keeps the previous set.
type AdminUsersHolder struct {
	current atomic.Value // holds []AdminUser
	log     *zap.Logger
}

func NewAdminUsersHolder(cfg Config, log *zap.Logger) (*AdminUsersHolder, error) {
	holder := &AdminUsersHolder{log: log.Named("admin.users")}
	holder.current.Store([]AdminUser{})

	path := strings.TrimSpace(cfg.Admin.UsersFile)
	if path == "" {
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read admin users file: %w", err)
	}

	users, err := decodeAdminUsers(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(users)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		holder.reload(v, e.Name)
	})

	return holder, nil
}

// reload swaps in the users from v, keeping the current set when the file
// no longer validates.
func (h *AdminUsersHolder) reload(v *viper.Viper, source string) {
	updated, err := decodeAdminUsers(v)
	if err != nil {
		h.log.Warn("invalid admin users file ignored", zap.String("file", source), zap.Error(err))
		return
	}
	h.current.Store(updated)
	h.log.Info("admin users reloaded", zap.String("file", source), zap.Int("users", len(updated)))
}

// NewStaticAdminUsersHolder returns a holder that never reloads.
func NewStaticAdminUsersHolder(users ...AdminUser) *AdminUsersHolder {
	holder := &AdminUsersHolder{log: zap.NewNop()}
	holder.current.Store(append([]AdminUser(nil), users...))
	return holder
}

func (h *AdminUsersHolder) Get() []AdminUser {
	return h.current.Load().([]AdminUser)
}

// Lookup returns the enabled user with the given username.
func (h *AdminUsersHolder) Lookup(username string) (AdminUser, bool) {
	for _, u := range h.Get() {
		if u.Username == username && !u.Disabled {
			return u, true
		}
	}
	return AdminUser{}, false
}

func decodeAdminUsers(v *viper.Viper) ([]AdminUser, error) {
	var users []AdminUser
	if err := v.UnmarshalKey("admin.users", &users); err != nil {
		return nil, err
	}
	if err := validateAdminUsers(users); err != nil {
		return nil, err
	}
	return users, nil
}

func validateAdminUsers(users []AdminUser) error {
	seen := make(map[string]struct{}, len(users))
	for i, u := range users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return fmt.Errorf("admin.users[%d].username is required", i)
		}
		if err := password.Check(u.PasswordHash); err != nil {
			return fmt.Errorf("admin.users[%d].passwordHash must be an argon2id hash", i)
		}
		if _, ok := seen[name]; ok {
			return errors.New("admin.users contains duplicate username " + name)
		}
		seen[name] = struct{}{}
		users[i].Username = name
	}
	return nil
}
