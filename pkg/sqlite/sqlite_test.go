package sqlite

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) *gorm.DB {
	l, _ := zap.NewDevelopment()
	db, err := NewGormSqliteFromSqlite(NewInMemorySqliteWithName(fmt.Sprintf("sqlite_test_%s", uuid.NewString()), l))
	require.Nil(t, err)

	res := db.Exec(`create table amounts (name text primary key, amount text not null)`)
	require.Nil(t, res.Error)

	t.Cleanup(func() {
		sqlDb, _ := db.DB()
		_ = sqlDb.Close()
	})
	return db
}

func Test_Sqlite(t *testing.T) {
	t.Run("Should sum amounts wider than 64 bits", func(t *testing.T) {
		db := setup(t)

		values := map[string]string{
			"a": "1000000000000000000000000",
			"b": "2500000000000000000000000",
			"c": "7",
		}
		for name, amount := range values {
			res := db.Exec(`insert into amounts (name, amount) values (?, ?)`, name, amount)
			require.Nil(t, res.Error)
		}

		var total string
		res := db.Raw(`select sum_big(amount) from amounts`).Scan(&total)
		assert.Nil(t, res.Error)
		assert.Equal(t, "3500000000000000000000007", total)
	})
	t.Run("Should return zero when summing no rows", func(t *testing.T) {
		db := setup(t)

		var total string
		res := db.Raw(`select sum_big(amount) from amounts`).Scan(&total)
		assert.Nil(t, res.Error)
		assert.Equal(t, "0", total)
	})
	t.Run("Should compare big numbers numerically", func(t *testing.T) {
		db := setup(t)

		var cmp int64
		res := db.Raw(`select compare_big(?, ?)`, "99999999999999999999", "100000000000000000000").Scan(&cmp)
		assert.Nil(t, res.Error)
		assert.Equal(t, int64(-1), cmp)
	})
	t.Run("Should detect unique constraint violations", func(t *testing.T) {
		db := setup(t)

		res := db.Exec(`insert into amounts (name, amount) values ('a', '1')`)
		require.Nil(t, res.Error)
		res = db.Exec(`insert into amounts (name, amount) values ('a', '2')`)
		assert.NotNil(t, res.Error)
		assert.True(t, IsDuplicateKeyError(res.Error))
		assert.False(t, IsDuplicateKeyError(nil))
	})
}

func Test_SumBigNumbers(t *testing.T) {
	s := NewSumBigNumbers()
	s.Step("10")
	s.Step([]byte("5"))
	s.Step(int64(3))
	s.Step("not-a-number")
	s.Step(nil)

	total, err := s.Done()
	assert.Nil(t, err)
	assert.Equal(t, "18", total)
}
