package _202610161130_feeVault

import (
	"database/sql"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

// Up only creates the table. The single row is inserted by the fee upgrade,
// so a missing row means the ledger is still on the base version.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	query := `
		create table if not exists fee_vault (
			id integer primary key,
			fee_rate_bps bigint not null,
			fee_balance text not null default '0',
			created_at timestamp default current_timestamp,
			updated_at timestamp default null,
			check (id = 1),
			check (fee_rate_bps > 0 and fee_rate_bps <= 10000)
		)
	`
	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202610161130_feeVault"
}
