package cmd

import (
	"context"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/cycles"
	"github.com/Layr-Labs/tokenfarm/pkg/eventBus"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/prometheus"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres/migrations"
	"github.com/Layr-Labs/tokenfarm/pkg/sqlite"
	"github.com/Layr-Labs/tokenfarm/pkg/token"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	stakeTokenName    = "Mock DAI"
	stakeTokenSymbol  = "mDAI"
	rewardTokenName   = "Dapp Token"
	rewardTokenSymbol = "DAPP"
)

// farmRuntime holds everything a command needs to operate on the ledger.
type farmRuntime struct {
	cfg    *config.Config
	logger *zap.Logger

	grm         *gorm.DB
	store       *token.Store
	stakeToken  *token.Token
	rewardToken *token.Token
	cycles      cycles.Source
	eventBus    *eventBus.EventBus
	sink        *metrics.MetricsSink
	prometheus  *prometheus.PrometheusMetricsClient
	ledger      *ledger.Ledger
}

func openDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	switch cfg.StorageDriver {
	case config.StorageDriver_Postgres:
		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			return nil, errors.Wrap(err, "failed to setup postgres connection")
		}
		return postgres.NewGormFromPostgresConnection(pg.Db)
	default:
		l.Sugar().Infow("Using sqlite storage", zap.String("path", cfg.SqliteConfig.GetSqlitePath()))
		return sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(cfg.SqliteConfig.GetSqlitePath(), l))
	}
}

func migrateDatabase(grm *gorm.DB, cfg *config.Config, l *zap.Logger) error {
	sqlDb, err := grm.DB()
	if err != nil {
		return err
	}
	if err := migrations.NewMigrator(sqlDb, grm, l, cfg).MigrateAll(); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}
	return nil
}

// bootstrap opens storage, deploys the local asset ledgers if needed and
// builds the ledger. The caller must Close the returned runtime.
func bootstrap(ctx context.Context, cfg *config.Config, l *zap.Logger) (*farmRuntime, error) {
	rt := &farmRuntime{cfg: cfg, logger: l}

	grm, err := openDatabase(cfg, l)
	if err != nil {
		return nil, err
	}
	rt.grm = grm
	if err := migrateDatabase(grm, cfg, l); err != nil {
		rt.Close()
		return nil, err
	}

	store, err := token.OpenStore(cfg.TokensConfig.DataDir)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = store

	rt.stakeToken, err = token.Deploy(store, cfg.GetStakeTokenAddress(), stakeTokenName, stakeTokenSymbol, cfg.GetOwnerAddress(), l)
	if err != nil {
		rt.Close()
		return nil, err
	}
	// the farm mints claimed rewards, so it owns the reward token
	rt.rewardToken, err = token.Deploy(store, cfg.GetRewardTokenAddress(), rewardTokenName, rewardTokenSymbol, cfg.GetFarmAddress(), l)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.cycles, err = cycles.NewSourceFromConfig(ctx, cfg, l)
	if err != nil {
		rt.Close()
		return nil, err
	}

	clients, pmc, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.prometheus = pmc
	rt.sink, err = metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.eventBus = eventBus.NewEventBus(l)

	rt.ledger, err = ledger.NewLedger(grm, rt.stakeToken, rt.rewardToken, rt.cycles, rt.eventBus, rt.sink, l, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *farmRuntime) Close() {
	if rt.sink != nil {
		rt.sink.Flush()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Sugar().Errorw("Failed to close token store", zap.Error(err))
		}
	}
	if rt.grm != nil {
		if sqlDb, err := rt.grm.DB(); err == nil {
			_ = sqlDb.Close()
		}
	}
}
