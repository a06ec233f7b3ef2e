package migrations

import (
	"fmt"
	"testing"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Migrator, *gorm.DB) {
	l, _ := zap.NewDevelopment()
	grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewInMemorySqliteWithName(fmt.Sprintf("migrator_%s", uuid.NewString()), l))
	require.Nil(t, err)

	sqlDb, err := grm.DB()
	require.Nil(t, err)
	t.Cleanup(func() { _ = sqlDb.Close() })

	return NewMigrator(sqlDb, grm, l, config.NewConfig()), grm
}

func Test_Migrator(t *testing.T) {
	t.Run("Should apply every migration once", func(t *testing.T) {
		m, grm := setup(t)

		require.Nil(t, m.MigrateAll())

		applied, err := m.Applied()
		assert.Nil(t, err)
		expected := make([]string, 0)
		for _, migration := range All() {
			expected = append(expected, migration.GetName())
		}
		assert.Equal(t, expected, applied)

		for _, table := range []string{"ledger_state", "reward_tiers", "stakers", "fee_vault"} {
			assert.True(t, grm.Migrator().HasTable(table), table)
		}
	})
	t.Run("Should be a no-op when run again", func(t *testing.T) {
		m, grm := setup(t)

		require.Nil(t, m.MigrateAll())
		res := grm.Exec(`insert into reward_tiers (tier_key, rate) values (10, '1')`)
		require.Nil(t, res.Error)

		require.Nil(t, m.MigrateAll())

		var count int64
		grm.Model(&Migrations{}).Count(&count)
		assert.Equal(t, int64(len(All())), count)

		var tiers int64
		grm.Table("reward_tiers").Count(&tiers)
		assert.Equal(t, int64(1), tiers)
	})
	t.Run("Should reject a second roster entry in the same slot", func(t *testing.T) {
		m, grm := setup(t)
		require.Nil(t, m.MigrateAll())

		res := grm.Exec(`insert into stakers (address, slot) values ('0xaa', 1)`)
		require.Nil(t, res.Error)
		res = grm.Exec(`insert into stakers (address, slot) values ('0xbb', 1)`)
		assert.True(t, sqlite.IsDuplicateKeyError(res.Error))
	})
	t.Run("Should reject fee rates outside of basis point range", func(t *testing.T) {
		m, grm := setup(t)
		require.Nil(t, m.MigrateAll())

		res := grm.Exec(`insert into fee_vault (id, fee_rate_bps) values (1, 10001)`)
		assert.NotNil(t, res.Error)
		res = grm.Exec(`insert into fee_vault (id, fee_rate_bps) values (1, 100)`)
		assert.Nil(t, res.Error)
	})
}
