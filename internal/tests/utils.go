package tests

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres/migrations"
	"github.com/Layr-Labs/tokenfarm/pkg/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	gormSqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestDatabaseEnv selects the database used by storage-backed tests.
// Anything other than "postgres" runs against a throwaway sqlite file.
const TestDatabaseEnv = "TOKENFARM_TEST_DB"

func GetConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv(fmt.Sprintf("%s_DEBUG", config.ENV_PREFIX)) == "true"
	cfg.DatabaseConfig.Host = config.StringWithDefault(os.Getenv("TOKENFARM_DATABASE_HOST"), "localhost")
	cfg.DatabaseConfig.Port = 5432
	cfg.DatabaseConfig.User = os.Getenv("TOKENFARM_DATABASE_USER")
	cfg.DatabaseConfig.Password = os.Getenv("TOKENFARM_DATABASE_PASSWORD")
	return cfg
}

func UsePostgres() bool {
	return strings.EqualFold(os.Getenv(TestDatabaseEnv), "postgres")
}

// GenerateTestDbName returns a name that is safe to use as a postgres database
// or a sqlite shared-cache name.
func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

// GetSqliteDatabaseConnection opens a fresh, uniquely named database file in the
// temp dir. Unlike a named in-memory database it survives the driver dropping
// its only connection, which happens when a transaction's context is cancelled.
func GetSqliteDatabaseConnection(l *zap.Logger) (*gorm.DB, error) {
	name, err := GenerateTestDbName()
	if err != nil {
		return nil, err
	}
	return sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(filepath.Join(os.TempDir(), name+".db"), l))
}

// GetMigratedSqliteDatabase opens a fresh sqlite database with every migration applied.
func GetMigratedSqliteDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	grm, err := GetSqliteDatabaseConnection(l)
	if err != nil {
		return nil, err
	}
	sqlDb, err := grm.DB()
	if err != nil {
		return nil, err
	}
	if err := migrations.NewMigrator(sqlDb, grm, l, cfg).MigrateAll(); err != nil {
		return nil, err
	}
	return grm, nil
}

// CloseDatabase closes grm and, for a sqlite file database, removes the file
// along with its WAL and shared-memory siblings.
func CloseDatabase(grm *gorm.DB) {
	if sqlDb, err := grm.DB(); err == nil {
		_ = sqlDb.Close()
	}
	dialector, ok := grm.Dialector.(*gormSqlite.Dialector)
	if !ok || strings.HasPrefix(dialector.DSN, "file:") {
		return
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(dialector.DSN + suffix)
	}
}

func ReplaceEnv(newValues map[string]string, previousValues *map[string]string) {
	for k, v := range newValues {
		(*previousValues)[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
}

func RestoreEnv(previousValues map[string]string) {
	for k, v := range previousValues {
		os.Setenv(k, v)
	}
}
