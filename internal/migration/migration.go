package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationsDir = "migrations/postgres"

//go:embed migrations/postgres/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&flagdomain.FeatureFlag{},
		&flagdomain.FeatureTarget{},
		&apikeydomain.APIKey{},
		&auditdomain.FlagChangeLog{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL
// migrations; other dialects are created from the gorm models.
func Run(conn *gorm.DB, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if !db.IsPostgres(conn) {
		log.Info("auto-migrating schema", zap.String("dialect", conn.Dialector.Name()))
		return conn.AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
