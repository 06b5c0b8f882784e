package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	"github.com/smallbiznis/featureflags/internal/apikey/repository"
	"github.com/smallbiznis/featureflags/internal/clock"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/pkg/db"
	"github.com/smallbiznis/featureflags/pkg/keyhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type countingRepo struct {
	apikeydomain.Repository
	lookups int
}

func (r *countingRepo) FindEnabledByHash(ctx context.Context, conn *gorm.DB, keyHash string) (*apikeydomain.APIKey, error) {
	r.lookups++
	return r.Repository.FindEnabledByHash(ctx, conn, keyHash)
}

type fixture struct {
	svc  apikeydomain.Service
	db   *gorm.DB
	repo *countingRepo
	logs *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := db.NewTest(t, &apikeydomain.APIKey{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	core, logs := observer.New(zapcore.InfoLevel)
	repo := &countingRepo{Repository: repository.Provide()}

	return &fixture{
		svc: New(Params{
			DB:    conn,
			Log:   zap.New(core),
			GenID: node,
			Clock: clock.NewFakeClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)),
			Repo:  repo,
		}),
		db:   conn,
		repo: repo,
		logs: logs,
	}
}

func TestGenerateUsesPrefixAndHex(t *testing.T) {
	svc := New(Params{
		Log:    zap.NewNop(),
		Random: bytes.NewReader(bytes.Repeat([]byte{0xab}, 16)),
	})

	raw, err := svc.Generate()
	require.NoError(t, err)
	assert.Equal(t, "fk_"+strings.Repeat("ab", 16), raw)
}

func TestGenerateFailsOnShortEntropy(t *testing.T) {
	svc := New(Params{
		Log:    zap.NewNop(),
		Random: bytes.NewReader([]byte{1, 2, 3}),
	})

	_, err := svc.Generate()
	assert.Error(t, err)
}

func TestCreateStoresOnlyDigest(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "web", Environment: "prod"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.RawKey, apikeydomain.KeyPrefix))
	assert.Equal(t, "web", resp.APIKey.Name)
	assert.True(t, resp.APIKey.Enabled)
	require.NotNil(t, resp.APIKey.Environment)
	assert.Equal(t, "PROD", *resp.APIKey.Environment)

	var stored apikeydomain.APIKey
	require.NoError(t, f.db.First(&stored).Error)
	digest, err := keyhash.Digest(resp.RawKey)
	require.NoError(t, err)
	assert.Equal(t, digest, stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, resp.RawKey)

	for _, entry := range f.logs.All() {
		for _, field := range entry.Context {
			assert.NotEqual(t, resp.RawKey, field.String)
		}
	}
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "  "})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidName)

	_, err = f.svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "web", Environment: "QA"})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidEnvironment)

	var count int64
	require.NoError(t, f.db.Model(&apikeydomain.APIKey{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestValidateFindsEnabledKey(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "web"})
	require.NoError(t, err)

	key, err := f.svc.Validate(context.Background(), resp.RawKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, resp.APIKey.ID, key.ID.String())
	assert.Nil(t, key.Environment)
	assert.True(t, key.Allows(flagdomain.EnvironmentProd))

	missing, err := f.svc.Validate(context.Background(), "fk_notakey")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestValidateBlankSkipsStore(t *testing.T) {
	f := newFixture(t)

	for _, raw := range []string{"", "   "} {
		key, err := f.svc.Validate(context.Background(), raw)
		require.NoError(t, err)
		assert.Nil(t, key)
	}
	assert.Zero(t, f.repo.lookups)
}

func TestRevokeDisablesKey(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "web", Environment: "DEV"})
	require.NoError(t, err)
	id, err := snowflake.ParseString(resp.APIKey.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(context.Background(), id))
	require.NoError(t, f.svc.Revoke(context.Background(), id))

	key, err := f.svc.Validate(context.Background(), resp.RawKey)
	require.NoError(t, err)
	assert.Nil(t, key)

	keys, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Enabled)
}

func TestRevokeUnknownKey(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.svc.Revoke(context.Background(), snowflake.ID(42)), apikeydomain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Revoke(context.Background(), snowflake.ID(0)), apikeydomain.ErrInvalidID)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "first"})
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "second"})
	require.NoError(t, err)

	keys, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "second", keys[0].Name)
	assert.Equal(t, "first", keys[1].Name)
}

func TestKeyAllowsScopedEnvironment(t *testing.T) {
	env := flagdomain.EnvironmentDev
	key := apikeydomain.APIKey{Environment: &env}

	assert.True(t, key.Allows(flagdomain.EnvironmentDev))
	assert.False(t, key.Allows(flagdomain.EnvironmentProd))
}
