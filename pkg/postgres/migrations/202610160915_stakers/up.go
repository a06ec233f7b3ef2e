package _202610160915_stakers

import (
	"database/sql"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`create table if not exists stakers (
			address text primary key,
			slot bigint not null,
			staked_amount text not null default '0',
			pending_reward text not null default '0',
			last_accrual_point bigint not null default 0,
			created_at timestamp default current_timestamp,
			updated_at timestamp default null
		)`,
		`create unique index if not exists uniq_stakers_slot on stakers (slot)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610160915_stakers"
}
