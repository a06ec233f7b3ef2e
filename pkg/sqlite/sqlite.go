package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	goSqlite "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const driverName = "sqlite3_with_extensions"

// SumBigNumbers is the sum_big aggregate. Amounts are stored as base-10 text
// so the builtin sum() would lose precision past 2^63.
type SumBigNumbers struct {
	total *big.Int
}

func NewSumBigNumbers() *SumBigNumbers {
	return &SumBigNumbers{total: big.NewInt(0)}
}

func (s *SumBigNumbers) Step(value any) {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case int64:
		s.total.Add(s.total, big.NewInt(v))
		return
	default:
		return
	}
	bigValue, ok := new(big.Int).SetString(strings.TrimSpace(str), 10)
	if !ok {
		return
	}
	s.total.Add(s.total, bigValue)
}

func (s *SumBigNumbers) Done() (string, error) {
	return s.total.String(), nil
}

// compareBig orders two base-10 strings numerically, for use in ORDER BY and WHERE.
func compareBig(a, b string) (int64, error) {
	x, ok := new(big.Int).SetString(a, 10)
	if !ok {
		return 0, fmt.Errorf("invalid integer '%s'", a)
	}
	y, ok := new(big.Int).SetString(b, 10)
	if !ok {
		return 0, fmt.Errorf("invalid integer '%s'", b)
	}
	return int64(x.Cmp(y)), nil
}

var registerOnce sync.Once

const SqliteInMemoryPath = "file::memory:?cache=shared"

func NewInMemorySqlite(l *zap.Logger) gorm.Dialector {
	return NewSqlite(SqliteInMemoryPath, l)
}

// NewInMemorySqliteWithName opens a private in-memory database that lives as
// long as at least one connection to it is open.
func NewInMemorySqliteWithName(name string, l *zap.Logger) gorm.Dialector {
	return NewSqlite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), l)
}

func NewSqlite(path string, l *zap.Logger) gorm.Dialector {
	registerOnce.Do(func() {
		sql.Register(driverName, &goSqlite.SQLiteDriver{
			ConnectHook: func(conn *goSqlite.SQLiteConn) error {
				if err := conn.RegisterAggregator("sum_big", NewSumBigNumbers, true); err != nil {
					l.Sugar().Errorw("Failed to register aggregator sum_big", "error", err)
					return err
				}
				if err := conn.RegisterFunc("compare_big", compareBig, true); err != nil {
					l.Sugar().Errorw("Failed to register function compare_big", "error", err)
					return err
				}
				return nil
			},
		})
	})

	return &sqlite.Dialector{
		DriverName: driverName,
		DSN:        path,
	}
}

func NewGormSqliteFromSqlite(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// A single connection keeps pragmas and shared-cache table locks consistent.
	sqlDb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDb.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA synchronous = normal;`,
		`PRAGMA busy_timeout = 5000;`,
	}
	for _, pragma := range pragmas {
		if res := db.Exec(pragma); res.Error != nil {
			return nil, res.Error
		}
	}
	return db, nil
}

func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr goSqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == goSqlite.ErrConstraintUnique || sqliteErr.ExtendedCode == goSqlite.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
