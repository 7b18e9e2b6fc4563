package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// setDefaultConfig sets the default value of every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	v.SetDefault("wallet.account", "")

	v.SetDefault("ledger.backend", LedgerDevnet)
	v.SetDefault("ledger.contract_address", "")
	v.SetDefault("ledger.finality_timeout", 2*time.Minute)
	v.SetDefault("ledger.rpc.url", "")
	v.SetDefault("ledger.rpc.timeout", 30*time.Second)
	v.SetDefault("ledger.rpc.rate_limit", 10.0)
	v.SetDefault("ledger.rpc.burst", 5)
	v.SetDefault("ledger.rpc.poll_interval", time.Second)
	v.SetDefault("ledger.devnet.driver", DriverSQLite)
	v.SetDefault("ledger.devnet.path", "data/devnet.db")
	v.SetDefault("ledger.devnet.dsn", "")
	v.SetDefault("ledger.devnet.block_time", 2*time.Second)

	v.SetDefault("fhe.backend", FHEDevnet)
	v.SetDefault("fhe.devnet.key", "")
	v.SetDefault("fhe.relayer.url", "")
	v.SetDefault("fhe.relayer.api_key", "")
	v.SetDefault("fhe.relayer.timeout", 60*time.Second)

	v.SetDefault("records.fetch_concurrency", 4)
	v.SetDefault("records.estimate_ttl", 30*time.Minute)

	v.SetDefault("workflow.retry.max_retries", 2)
	v.SetDefault("workflow.retry.initial_delay", 2*time.Second)
	v.SetDefault("workflow.retry.max_delay", 30*time.Second)
	v.SetDefault("workflow.retry.multiplier", 2.0)

	v.SetDefault("api.listen", "127.0.0.1:8787")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "genenft")
	v.SetDefault("mqtt.topic", "genenft/status")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("notify.urls", []string{})

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
