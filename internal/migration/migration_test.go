package migration

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/smallbiznis/featureflags/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn := db.NewTest(t)

	require.NoError(t, Run(conn, zap.NewNop()))
	for _, table := range []string{"feature_flags", "feature_targets", "api_keys", "flag_change_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("feature_flags", "ux_feature_flags_key_env"))
	assert.True(t, conn.Migrator().HasIndex("api_keys", "ux_api_keys_key_hash"))

	require.NoError(t, Run(conn, zap.NewNop()))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	versions := make([]string, 0, len(ups))
	for version := range ups {
		versions = append(versions, version)
		assert.True(t, downs[version], "missing down migration for %s", version)
	}
	sort.Strings(versions)
	require.Len(t, versions, 3)
	assert.Equal(t, "000001_feature_flags", versions[0])
}

func TestRunRejectsNilDB(t *testing.T) {
	assert.Error(t, Run(nil, zap.NewNop()))
	assert.Error(t, RunMigrations(nil))
}
