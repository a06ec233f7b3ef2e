package config

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "TOKENFARM"

type Environment string

const (
	Environment_Local   Environment = "local"
	Environment_Testnet Environment = "testnet"
	Environment_Mainnet Environment = "mainnet"
)

func (e Environment) String() string {
	return string(e)
}

func parseEnvironment(name string) (Environment, error) {
	switch name {
	case "local":
		return Environment_Local, nil
	case "testnet":
		return Environment_Testnet, nil
	case "mainnet":
		return Environment_Mainnet, nil
	case "":
		return Environment_Local, fmt.Errorf("environment not found")
	}
	return Environment_Local, fmt.Errorf("unsupported environment %s", name)
}

type StorageDriver string

const (
	StorageDriver_Postgres StorageDriver = "postgres"
	StorageDriver_Sqlite   StorageDriver = "sqlite"
)

var supportedStorageDrivers = []StorageDriver{StorageDriver_Postgres, StorageDriver_Sqlite}

type CycleSource string

const (
	// CycleSource_Manual advances the cycle counter through the API or on a ticker.
	CycleSource_Manual CycleSource = "manual"
	// CycleSource_Ethereum uses the block height of an Ethereum node.
	CycleSource_Ethereum CycleSource = "ethereum"
)

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

type SqliteConfig struct {
	InMemory   bool
	DbFilePath string
}

func (s *SqliteConfig) GetSqlitePath() string {
	if s.InMemory {
		return "file::memory:?cache=shared"
	}
	return s.DbFilePath
}

type RpcConfig struct {
	HttpPort     int
	AllowOrigins []string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type DataDogConfig struct {
	StatsdConfig  StatsdConfig
	EnableTracing bool
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DistributionConfig struct {
	BatchSize int
	// Interval between automatic sweeps, zero disables the scheduler.
	Interval time.Duration
}

type CyclesConfig struct {
	Source         CycleSource
	EthereumRpcUrl string
	// TickInterval advances the manual counter automatically when non-zero.
	TickInterval time.Duration
}

type TokensConfig struct {
	DataDir string
}

type FarmConfig struct {
	Address            string
	Owner              string
	StakeTokenAddress  string
	RewardTokenAddress string
}

type Config struct {
	Debug              bool
	Environment        Environment
	StorageDriver      StorageDriver
	DatabaseConfig     DatabaseConfig
	SqliteConfig       SqliteConfig
	RpcConfig          RpcConfig
	PrometheusConfig   PrometheusConfig
	DataDogConfig      DataDogConfig
	DistributionConfig DistributionConfig
	CyclesConfig       CyclesConfig
	TokensConfig       TokensConfig
	FarmConfig         FarmConfig
}

func StringWithDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func StringWithDefaults(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseListEnvVar(envVar string) []string {
	if envVar == "" {
		return []string{}
	}
	l := make([]string, 0)
	for _, s := range strings.Split(envVar, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			l = append(l, s)
		}
	}
	return l
}

const (
	Debug          = "debug"
	EnvironmentKey = "environment"

	StorageDriverKey = "storage.driver"

	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"

	SqliteInMemory   = "sqlite.in_memory"
	SqliteDbFilePath = "sqlite.db_file_path"

	RpcHttpPort     = "rpc.http_port"
	RpcAllowOrigins = "rpc.allow_origins"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"
	DataDogEnableTracing    = "datadog.tracing.enabled"

	DistributionBatchSize = "distribution.batch_size"
	DistributionInterval  = "distribution.interval"

	CyclesSource         = "cycles.source"
	CyclesEthereumRpcUrl = "cycles.ethereum_rpc_url"
	CyclesTickInterval   = "cycles.tick_interval"

	TokensDataDir = "tokens.data_dir"

	FarmAddress            = "farm.address"
	FarmOwner              = "farm.owner"
	FarmStakeTokenAddress  = "farm.stake_token_address"
	FarmRewardTokenAddress = "farm.reward_token_address"

	// subcommand flags
	InitTiersFile   = "init.tiers_file"
	UpgradeFeeBps   = "upgrade.fee_bps"
	DistributeCycle = "distribute.cycle"
	ExportOutput    = "export.output"
)

const DefaultDistributionBatchSize = 500

func NewConfig() *Config {
	env, err := parseEnvironment(StringWithDefault(viper.GetString(normalizeFlagName(EnvironmentKey)), string(Environment_Local)))
	if err != nil {
		env = Environment_Local
	}

	batchSize := viper.GetInt(normalizeFlagName(DistributionBatchSize))
	if batchSize <= 0 {
		batchSize = DefaultDistributionBatchSize
	}

	return &Config{
		Debug:         viper.GetBool(normalizeFlagName(Debug)),
		Environment:   env,
		StorageDriver: StorageDriver(StringWithDefault(viper.GetString(normalizeFlagName(StorageDriverKey)), string(StorageDriver_Sqlite))),

		DatabaseConfig: DatabaseConfig{
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
		},

		SqliteConfig: SqliteConfig{
			InMemory:   viper.GetBool(normalizeFlagName(SqliteInMemory)),
			DbFilePath: StringWithDefault(viper.GetString(normalizeFlagName(SqliteDbFilePath)), "./tokenfarm.db"),
		},

		RpcConfig: RpcConfig{
			HttpPort:     viper.GetInt(normalizeFlagName(RpcHttpPort)),
			AllowOrigins: parseListEnvVar(viper.GetString(normalizeFlagName(RpcAllowOrigins))),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
			EnableTracing: viper.GetBool(normalizeFlagName(DataDogEnableTracing)),
		},

		DistributionConfig: DistributionConfig{
			BatchSize: batchSize,
			Interval:  viper.GetDuration(normalizeFlagName(DistributionInterval)),
		},

		CyclesConfig: CyclesConfig{
			Source:         CycleSource(StringWithDefault(viper.GetString(normalizeFlagName(CyclesSource)), string(CycleSource_Manual))),
			EthereumRpcUrl: viper.GetString(normalizeFlagName(CyclesEthereumRpcUrl)),
			TickInterval:   viper.GetDuration(normalizeFlagName(CyclesTickInterval)),
		},

		TokensConfig: TokensConfig{
			DataDir: StringWithDefault(viper.GetString(normalizeFlagName(TokensDataDir)), "./tokens"),
		},

		FarmConfig: FarmConfig{
			Address:            viper.GetString(normalizeFlagName(FarmAddress)),
			Owner:              viper.GetString(normalizeFlagName(FarmOwner)),
			StakeTokenAddress:  viper.GetString(normalizeFlagName(FarmStakeTokenAddress)),
			RewardTokenAddress: viper.GetString(normalizeFlagName(FarmRewardTokenAddress)),
		},
	}
}

// Validate checks the combinations of settings that cannot be expressed as flag defaults.
func (c *Config) Validate() error {
	if !slices.Contains(supportedStorageDrivers, c.StorageDriver) {
		return fmt.Errorf("unsupported storage driver '%s'", c.StorageDriver)
	}
	if c.StorageDriver == StorageDriver_Postgres && c.DatabaseConfig.DbName == "" {
		return errors.New("database.db_name is required when using postgres")
	}
	switch c.CyclesConfig.Source {
	case CycleSource_Manual:
	case CycleSource_Ethereum:
		if c.CyclesConfig.EthereumRpcUrl == "" {
			return errors.New("cycles.ethereum_rpc_url is required when cycles.source is ethereum")
		}
	default:
		return fmt.Errorf("unsupported cycle source '%s'", c.CyclesConfig.Source)
	}
	for name, addr := range map[string]string{
		FarmAddress:            c.FarmConfig.Address,
		FarmOwner:              c.FarmConfig.Owner,
		FarmStakeTokenAddress:  c.FarmConfig.StakeTokenAddress,
		FarmRewardTokenAddress: c.FarmConfig.RewardTokenAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: '%s'", name, addr)
		}
	}
	return nil
}

// Default devnet addresses used when the farm section is not configured.
var (
	DefaultFarmAddress        = common.HexToAddress("0x000000000000000000000000000000000000fa53")
	DefaultStakeTokenAddress  = common.HexToAddress("0x00000000000000000000000000000000000001b0")
	DefaultRewardTokenAddress = common.HexToAddress("0x00000000000000000000000000000000000000da")
)

func (c *Config) GetFarmAddress() common.Address {
	if c.FarmConfig.Address == "" {
		return DefaultFarmAddress
	}
	return common.HexToAddress(c.FarmConfig.Address)
}

func (c *Config) GetStakeTokenAddress() common.Address {
	if c.FarmConfig.StakeTokenAddress == "" {
		return DefaultStakeTokenAddress
	}
	return common.HexToAddress(c.FarmConfig.StakeTokenAddress)
}

func (c *Config) GetRewardTokenAddress() common.Address {
	if c.FarmConfig.RewardTokenAddress == "" {
		return DefaultRewardTokenAddress
	}
	return common.HexToAddress(c.FarmConfig.RewardTokenAddress)
}

// GetOwnerAddress returns the configured owner, or the zero address when unset.
func (c *Config) GetOwnerAddress() common.Address {
	return common.HexToAddress(c.FarmConfig.Owner)
}

// DefaultTierRates are the per-cycle reward rates used by the original deployment.
func DefaultTierRates() map[uint64]*big.Int {
	return map[uint64]*big.Int{
		10:   big.NewInt(1_000_000_000),
		100:  big.NewInt(1_000_000_000_000),
		1000: big.NewInt(1_000_000_000_000_000),
	}
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}
