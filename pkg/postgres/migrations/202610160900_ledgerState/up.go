package _202610160900_ledgerState

import (
	"database/sql"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists ledger_state (
			id integer primary key,
			owner text not null,
			stake_asset text not null,
			reward_asset text not null,
			version text not null,
			total_staking_balance text not null default '0',
			current_cycle bigint not null default 0,
			created_at timestamp default current_timestamp,
			updated_at timestamp default null,
			check (id = 1)
		)`,
		`create table if not exists reward_tiers (
			tier_key bigint primary key,
			rate text not null,
			created_at timestamp default current_timestamp,
			updated_at timestamp default null
		)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610160900_ledgerState"
}
