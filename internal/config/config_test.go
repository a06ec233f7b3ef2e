package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
		hasError bool
	}{
		{"local", Environment_Local, false},
		{"testnet", Environment_Testnet, false},
		{"mainnet", Environment_Mainnet, false},
		{"", Environment_Local, true},
		{"unknown", Environment_Local, true},
	}

	for _, test := range tests {
		result, err := parseEnvironment(test.input)
		if (err != nil) != test.hasError {
			t.Errorf("parseEnvironment(%s) error = %v, wantErr %v", test.input, err, test.hasError)
		}
		if result != test.expected {
			t.Errorf("parseEnvironment(%s) = %v, want %v", test.input, result, test.expected)
		}
	}
}

func TestKebabToSnakeCase(t *testing.T) {
	assert.Equal(t, "database.db_name", KebabToSnakeCase("database.db-name"))
	assert.Equal(t, "rpc.http_port", KebabToSnakeCase("rpc.http-port"))
	assert.Equal(t, "debug", KebabToSnakeCase("debug"))
}

func TestNewConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("Should apply defaults when nothing is set", func(t *testing.T) {
		viper.Reset()
		cfg := NewConfig()

		assert.Equal(t, Environment_Local, cfg.Environment)
		assert.Equal(t, StorageDriver_Sqlite, cfg.StorageDriver)
		assert.Equal(t, CycleSource_Manual, cfg.CyclesConfig.Source)
		assert.Equal(t, DefaultDistributionBatchSize, cfg.DistributionConfig.BatchSize)
		assert.Equal(t, "./tokenfarm.db", cfg.SqliteConfig.DbFilePath)
		assert.Equal(t, DefaultFarmAddress, cfg.GetFarmAddress())
		assert.Nil(t, cfg.Validate())
	})

	t.Run("Should read values set through viper", func(t *testing.T) {
		viper.Reset()
		viper.Set(StorageDriverKey, "postgres")
		viper.Set(DatabaseDbName, "tokenfarm")
		viper.Set(DatabasePort, 5433)
		viper.Set(DistributionBatchSize, 25)
		viper.Set(DistributionInterval, "30s")
		viper.Set(RpcAllowOrigins, "http://a.local, http://b.local,")
		viper.Set(FarmOwner, "0x00000000000000000000000000000000000000aa")

		cfg := NewConfig()
		assert.Equal(t, StorageDriver_Postgres, cfg.StorageDriver)
		assert.Equal(t, "tokenfarm", cfg.DatabaseConfig.DbName)
		assert.Equal(t, 5433, cfg.DatabaseConfig.Port)
		assert.Equal(t, 25, cfg.DistributionConfig.BatchSize)
		assert.Equal(t, 30*time.Second, cfg.DistributionConfig.Interval)
		assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.RpcConfig.AllowOrigins)
		assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa"), cfg.GetOwnerAddress())
		assert.Nil(t, cfg.Validate())
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		hasError bool
	}{
		{
			name:     "sqlite with manual cycles",
			cfg:      Config{StorageDriver: StorageDriver_Sqlite, CyclesConfig: CyclesConfig{Source: CycleSource_Manual}},
			hasError: false,
		},
		{
			name:     "unknown storage driver",
			cfg:      Config{StorageDriver: "mysql", CyclesConfig: CyclesConfig{Source: CycleSource_Manual}},
			hasError: true,
		},
		{
			name:     "postgres without a database name",
			cfg:      Config{StorageDriver: StorageDriver_Postgres, CyclesConfig: CyclesConfig{Source: CycleSource_Manual}},
			hasError: true,
		},
		{
			name:     "ethereum cycles without rpc url",
			cfg:      Config{StorageDriver: StorageDriver_Sqlite, CyclesConfig: CyclesConfig{Source: CycleSource_Ethereum}},
			hasError: true,
		},
		{
			name: "invalid owner address",
			cfg: Config{
				StorageDriver: StorageDriver_Sqlite,
				CyclesConfig:  CyclesConfig{Source: CycleSource_Manual},
				FarmConfig:    FarmConfig{Owner: "not-an-address"},
			},
			hasError: true,
		},
	}

	for _, test := range tests {
		err := test.cfg.Validate()
		if (err != nil) != test.hasError {
			t.Errorf("%s: Validate() error = %v, wantErr %v", test.name, err, test.hasError)
		}
	}
}

func TestDefaultTierRates(t *testing.T) {
	rates := DefaultTierRates()
	assert.Len(t, rates, 3)
	assert.Equal(t, "1000000000", rates[10].String())
	assert.Equal(t, "1000000000000", rates[100].String())
	assert.Equal(t, "1000000000000000", rates[1000].String())
}
