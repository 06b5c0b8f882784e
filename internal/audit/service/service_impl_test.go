package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	"github.com/smallbiznis/featureflags/internal/audit/repository"
	"github.com/smallbiznis/featureflags/internal/auditcontext"
	"github.com/smallbiznis/featureflags/internal/clock"
	"github.com/smallbiznis/featureflags/pkg/db"
	"github.com/smallbiznis/featureflags/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	conn := db.NewTest(t, &auditdomain.FlagChangeLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, conn, fake
}

func appendN(t *testing.T, svc *Service, fake *clock.FakeClock, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.Append(context.Background(), nil, auditdomain.AppendRequest{
			FeatureKey:  "checkout",
			Environment: "PROD",
			ChangeType:  auditdomain.ChangeFlagUpdated,
			ChangedBy:   "ops",
			Details:     "step " + string(rune('a'+i)),
		})
		require.NoError(t, err)
		fake.Advance(time.Second)
	}
}

func TestAppendDefaultsChangedByToSystem(t *testing.T) {
	svc, _, _ := newTestService(t)

	entry, err := svc.Append(context.Background(), nil, auditdomain.AppendRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
		ChangeType:  auditdomain.ChangeFlagCreated,
	})
	require.NoError(t, err)
	assert.Equal(t, auditdomain.ChangedBySystem, entry.ChangedBy)
}

func TestAppendUsesActorFromContext(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := auditcontext.WithActor(context.Background(), auditcontext.Actor{Type: auditcontext.ActorTypeAdmin, ID: "ops"})
	ctx = auditcontext.WithRequestID(ctx, "req-9")

	entry, err := svc.Append(ctx, nil, auditdomain.AppendRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
		ChangeType:  auditdomain.ChangeTargetAdded,
		Details:     "userId=alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "ops", entry.ChangedBy)
	assert.Equal(t, "req-9", entry.Metadata["request_id"])
}

func TestAppendRejectsUnknownChangeType(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Append(context.Background(), nil, auditdomain.AppendRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
		ChangeType:  "FLAG_DELETED",
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidChangeType)
}

func TestAppendRollsBackWithTransaction(t *testing.T) {
	svc, conn, _ := newTestService(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Append(context.Background(), tx, auditdomain.AppendRequest{
			FeatureKey:  "checkout",
			Environment: "PROD",
			ChangeType:  auditdomain.ChangeFlagCreated,
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&auditdomain.FlagChangeLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListHistoryNewestFirst(t *testing.T) {
	svc, _, fake := newTestService(t)
	appendN(t, svc, fake, 3)

	resp, err := svc.ListHistory(context.Background(), auditdomain.ListHistoryRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, "step c", resp.Entries[0].Details)
	assert.Equal(t, "step a", resp.Entries[2].Details)
	assert.Empty(t, resp.NextPageToken)
}

func TestListHistoryScopedToFlag(t *testing.T) {
	svc, _, fake := newTestService(t)
	appendN(t, svc, fake, 2)

	resp, err := svc.ListHistory(context.Background(), auditdomain.ListHistoryRequest{
		FeatureKey:  "checkout",
		Environment: "DEV",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Entries)
}

func TestListHistoryPaginates(t *testing.T) {
	svc, _, fake := newTestService(t)
	appendN(t, svc, fake, 5)

	first, err := svc.ListHistory(context.Background(), auditdomain.ListHistoryRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
		Pagination:  pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.NotEmpty(t, first.NextPageToken)
	assert.Equal(t, "step e", first.Entries[0].Details)

	second, err := svc.ListHistory(context.Background(), auditdomain.ListHistoryRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
		Pagination:  pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	assert.Equal(t, "step c", second.Entries[0].Details)

	third, err := svc.ListHistory(context.Background(), auditdomain.ListHistoryRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
		Pagination:  pagination.Pagination{PageSize: 2, PageToken: second.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, third.Entries, 1)
	assert.Empty(t, third.NextPageToken)
}

func TestListHistoryRejectsBadToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ListHistory(context.Background(), auditdomain.ListHistoryRequest{
		FeatureKey:  "checkout",
		Environment: "PROD",
		Pagination:  pagination.Pagination{PageToken: "garbage"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
