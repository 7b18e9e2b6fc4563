package conf

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable
const EnvPrefix = "GENENFT"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "GENENFT_DEBUG", validateEnvBool},
		{"wallet.account", "GENENFT_WALLET_ACCOUNT", validateEnvAddress},

		{"ledger.backend", "GENENFT_LEDGER_BACKEND", validateEnvOneOf(LedgerDevnet, LedgerRPC)},
		{"ledger.contract_address", "GENENFT_LEDGER_CONTRACT_ADDRESS", validateEnvAddress},
		{"ledger.rpc.url", "GENENFT_LEDGER_RPC_URL", validateEnvURL},
		{"ledger.devnet.driver", "GENENFT_LEDGER_DEVNET_DRIVER", validateEnvOneOf(DriverSQLite, DriverMySQL)},
		{"ledger.devnet.path", "GENENFT_LEDGER_DEVNET_PATH", nil},
		{"ledger.devnet.dsn", "GENENFT_LEDGER_DEVNET_DSN", nil},

		{"fhe.backend", "GENENFT_FHE_BACKEND", validateEnvOneOf(FHEDevnet, FHERelayer)},
		{"fhe.devnet.key", "GENENFT_FHE_DEVNET_KEY", validateEnvHexKey},
		{"fhe.relayer.url", "GENENFT_FHE_RELAYER_URL", validateEnvURL},
		{"fhe.relayer.api_key", "GENENFT_FHE_RELAYER_API_KEY", nil},

		{"records.fetch_concurrency", "GENENFT_RECORDS_FETCH_CONCURRENCY", validateEnvPositiveInt},

		{"api.listen", "GENENFT_API_LISTEN", nil},

		{"mqtt.enabled", "GENENFT_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "GENENFT_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "GENENFT_MQTT_USERNAME", nil},
		{"mqtt.password", "GENENFT_MQTT_PASSWORD", nil},

		{"sentry.enabled", "GENENFT_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "GENENFT_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars binds every variable and validates the ones that are set.
// Invalid values are reported but stay bound; ValidateSettings has the
// final word.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return bindEnvVars(v)
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvAddress(value string) error {
	if !addressPattern.MatchString(value) {
		return fmt.Errorf("must be a 0x-prefixed 20-byte hex address")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

// validateEnvHexKey never echoes the key
func validateEnvHexKey(value string) error {
	b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return fmt.Errorf("must be hex encoded")
	}
	if len(b) < minDevnetKeyBytes {
		return fmt.Errorf("must be at least %d bytes", minDevnetKeyBytes)
	}
	return nil
}

func validateEnvOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}
