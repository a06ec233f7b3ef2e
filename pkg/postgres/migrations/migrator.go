package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	_202610160900_ledgerState "github.com/Layr-Labs/tokenfarm/pkg/postgres/migrations/202610160900_ledgerState"
	_202610160915_stakers "github.com/Layr-Labs/tokenfarm/pkg/postgres/migrations/202610160915_stakers"
	_202610161130_feeVault "github.com/Layr-Labs/tokenfarm/pkg/postgres/migrations/202610161130_feeVault"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migration is a single named schema change. The SQL in Up must run on both
// postgres and sqlite.
type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

// Migrations is the record of an applied migration.
type Migrations struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Migrations) TableName() string {
	return "migrations"
}

// All returns every migration in the order it must be applied.
func All() []Migration {
	return []Migration{
		&_202610160900_ledgerState.Migration{},
		&_202610160915_stakers.Migration{},
		&_202610161130_feeVault.Migration{},
	}
}

func (m *Migrator) MigrateAll() error {
	if err := m.createMigrationTableIfNotExists(); err != nil {
		return err
	}

	for _, migration := range All() {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) createMigrationTableIfNotExists() error {
	query := `
		create table if not exists migrations (
			name text primary key,
			created_at timestamp default current_timestamp,
			updated_at timestamp default null
		)
	`
	if res := m.GDb.Exec(query); res.Error != nil {
		m.Logger.Sugar().Errorw("Failed to create migrations table", zap.Error(res.Error))
		return res.Error
	}
	return nil
}

// Migrate applies a single migration and records it in the same transaction.
// Migrations that were already recorded are skipped.
func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var count int64
	res := m.GDb.Model(&Migrations{}).Where("name = ?", name).Count(&count)
	if res.Error != nil {
		return fmt.Errorf("failed to look up migration '%s': %w", name, res.Error)
	}
	if count > 0 {
		m.Logger.Sugar().Debugw("Migration already applied", zap.String("name", name))
		return nil
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	err := m.GDb.Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(m.Db, tx, m.globalConfig); err != nil {
			return err
		}
		now := time.Now()
		return tx.Create(&Migrations{Name: name, CreatedAt: now, UpdatedAt: now}).Error
	})
	if err != nil {
		m.Logger.Sugar().Errorw("Failed to run migration", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("failed to run migration '%s': %w", name, err)
	}
	return nil
}

// Applied returns the names of the migrations recorded so far, oldest first.
func (m *Migrator) Applied() ([]string, error) {
	names := make([]string, 0)
	res := m.GDb.Model(&Migrations{}).Order("name asc").Pluck("name", &names)
	if res.Error != nil {
		return nil, res.Error
	}
	return names, nil
}
