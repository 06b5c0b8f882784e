package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	auditrepo "github.com/smallbiznis/featureflags/internal/audit/repository"
	auditservice "github.com/smallbiznis/featureflags/internal/audit/service"
	"github.com/smallbiznis/featureflags/internal/clock"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	flagrepo "github.com/smallbiznis/featureflags/internal/flag/repository"
	flagservice "github.com/smallbiznis/featureflags/internal/flag/service"
	"github.com/smallbiznis/featureflags/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSeeder(t *testing.T) (*Seeder, flagdomain.Service, *gorm.DB) {
	t.Helper()
	conn := db.NewTest(t, &flagdomain.FeatureFlag{}, &flagdomain.FeatureTarget{}, &auditdomain.FlagChangeLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: auditrepo.Provide(),
	})
	flags := flagservice.New(flagservice.Params{
		DB: conn, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: flagrepo.Provide(), Audit: audit,
	})
	return New(Params{Log: zap.NewNop(), Flags: flags}), flags, conn
}

func TestSeedCreatesDemoFlags(t *testing.T) {
	seeder, flags, conn := newSeeder(t)
	ctx := context.Background()

	require.NoError(t, seeder.Run(ctx, DemoFlags))

	dashboard, err := flags.Get(ctx, "new_dashboard", flagdomain.EnvironmentDev)
	require.NoError(t, err)
	assert.True(t, dashboard.Enabled)
	assert.Equal(t, 50, dashboard.RolloutPercent)

	checkout, err := flags.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	require.NoError(t, err)
	assert.Equal(t, 0, checkout.RolloutPercent)

	targets, err := flags.ListTargets(ctx, "checkout", flagdomain.EnvironmentProd)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "alice", targets[0].UserID)

	var logs []auditdomain.FlagChangeLog
	require.NoError(t, conn.Order("id").Find(&logs).Error)
	require.Len(t, logs, 3)
	for _, entry := range logs {
		assert.Equal(t, auditdomain.ChangedBySystem, entry.ChangedBy)
	}
}

func TestSeedSkipsExistingFlags(t *testing.T) {
	seeder, flags, conn := newSeeder(t)
	ctx := context.Background()

	_, err := flags.Create(ctx, flagdomain.CreateRequest{
		FeatureKey:     "checkout",
		Environment:    flagdomain.EnvironmentProd,
		Enabled:        false,
		RolloutPercent: 10,
	}, "ops")
	require.NoError(t, err)

	require.NoError(t, seeder.Run(ctx, DemoFlags))
	require.NoError(t, seeder.Run(ctx, DemoFlags))

	checkout, err := flags.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	require.NoError(t, err)
	assert.False(t, checkout.Enabled)
	assert.Equal(t, 10, checkout.RolloutPercent)

	targets, err := flags.ListTargets(ctx, "checkout", flagdomain.EnvironmentProd)
	require.NoError(t, err)
	assert.Empty(t, targets)

	var count int64
	require.NoError(t, conn.Model(&auditdomain.FlagChangeLog{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
