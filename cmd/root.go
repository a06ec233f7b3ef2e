package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "tokenfarm",
	Short: "TokenFarm is a staking ledger that pays tiered rewards per distribution cycle",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool("debug", false, `"true" or "false"`)
	rootCmd.PersistentFlags().String("environment", "local", "The environment to run in (local, testnet, mainnet)")

	rootCmd.PersistentFlags().String("storage.driver", "sqlite", `Ledger storage driver, "sqlite" or "postgres"`)

	rootCmd.PersistentFlags().String("database.host", "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int("database.port", 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String("database.user", "tokenfarm", `PostgreSQL username`)
	rootCmd.PersistentFlags().String("database.password", "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String("database.db-name", "tokenfarm", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String("database.schema-name", "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String("database.ssl-mode", "disable", `PostgreSQL sslmode`)
	rootCmd.PersistentFlags().String("database.ssl-cert", "", `Path to the client certificate`)
	rootCmd.PersistentFlags().String("database.ssl-key", "", `Path to the client key`)
	rootCmd.PersistentFlags().String("database.ssl-root-cert", "", `Path to the root certificate`)

	rootCmd.PersistentFlags().Bool("sqlite.in-memory", false, `Keep the sqlite ledger in memory`)
	rootCmd.PersistentFlags().String("sqlite.db-file-path", "./tokenfarm.db", `Path to the sqlite ledger file`)

	rootCmd.PersistentFlags().Int("rpc.http-port", 7101, `http rpc port`)
	rootCmd.PersistentFlags().String("rpc.allow-origins", "", `Comma separated list of CORS origins`)

	rootCmd.PersistentFlags().Bool("datadog.statsd.enabled", false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String("datadog.statsd.url", "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64("datadog.statsd.sample-rate", 1.0, `Sample rate for statsd metrics`)
	rootCmd.PersistentFlags().Bool("datadog.tracing.enabled", false, `e.g. "true" or "false"`)

	rootCmd.PersistentFlags().Bool("prometheus.enabled", false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int("prometheus.port", 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().Int("distribution.batch-size", config.DefaultDistributionBatchSize, `Stakers processed per distribution transaction`)
	rootCmd.PersistentFlags().Duration("distribution.interval", 0, `Interval between automatic distributions, e.g. "10m" (0 disables)`)

	rootCmd.PersistentFlags().String("cycles.source", string(config.CycleSource_Manual), `Cycle source, "manual" or "ethereum"`)
	rootCmd.PersistentFlags().String("cycles.ethereum-rpc-url", "", `e.g. "http://<hostname>:8545"`)
	rootCmd.PersistentFlags().Duration("cycles.tick-interval", 0, `Advance the manual cycle counter on this interval (0 disables)`)

	rootCmd.PersistentFlags().String("tokens.data-dir", "./tokens", `Directory of the local token ledgers`)

	rootCmd.PersistentFlags().String("farm.address", "", `Account of the farm in the token ledgers`)
	rootCmd.PersistentFlags().String("farm.owner", "", `Owner address of the farm`)
	rootCmd.PersistentFlags().String("farm.stake-token-address", "", `Address of the stake token`)
	rootCmd.PersistentFlags().String("farm.reward-token-address", "", `Address of the reward token`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(initLedgerCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(distributeCmd)
	rootCmd.AddCommand(exportStakersCmd)
	rootCmd.AddCommand(runVersionCmd)

	// bind any subcommand flags
	initLedgerCmd.PersistentFlags().String("init.tiers-file", "", `YAML file of tier rates (defaults to the built-in rates)`)
	upgradeCmd.PersistentFlags().Uint64("upgrade.fee-bps", 0, `Protocol fee in basis points, 1 to 10000`)
	distributeCmd.PersistentFlags().Uint64("distribute.cycle", 0, `Cycle to distribute up to (defaults to the current cycle)`)
	exportStakersCmd.PersistentFlags().String("export.output", "stakers.csv", `Path of the CSV file to write`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// initCommandFlags binds a subcommand's own flags, which the root VisitAll
// never sees.
func initCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		if err := viper.BindPFlag(key, f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(key); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
