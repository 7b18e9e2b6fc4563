package conf

import (
	"fmt"
	"net"
	"strings"
)

// minDevnetKeyBytes matches the devnet gateway's minimum seed length
const minDevnetKeyBytes = 16

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct and reports every
// problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateWalletSettings,
		validateLedgerSettings,
		validateFHESettings,
		validateRecordSettings,
		validateRetrySettings,
		validateAPISettings,
		validateMQTTSettings,
		validateSentrySettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWalletSettings(s *Settings) []string {
	if s.Wallet.Account != "" && !addressPattern.MatchString(s.Wallet.Account) {
		return []string{"wallet.account must be a 0x-prefixed 20-byte hex address"}
	}
	return nil
}

func validateLedgerSettings(s *Settings) []string {
	var errs []string
	l := &s.Ledger

	if l.ContractAddress != "" && !addressPattern.MatchString(l.ContractAddress) {
		errs = append(errs, "ledger.contract_address must be a 0x-prefixed 20-byte hex address")
	}
	if l.FinalityTimeout <= 0 {
		errs = append(errs, "ledger.finality_timeout must be positive")
	}

	switch l.Backend {
	case LedgerRPC:
		if validateEnvURL(l.RPC.URL) != nil {
			errs = append(errs, "ledger.rpc.url must be an absolute URL when ledger.backend is rpc")
		}
		if l.RPC.RateLimit < 0 {
			errs = append(errs, "ledger.rpc.rate_limit must not be negative")
		}
	case LedgerDevnet:
		switch l.Devnet.Driver {
		case DriverSQLite:
			if l.Devnet.Path == "" {
				errs = append(errs, "ledger.devnet.path is required for the sqlite driver")
			}
		case DriverMySQL:
			if l.Devnet.DSN == "" {
				errs = append(errs, "ledger.devnet.dsn is required for the mysql driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("ledger.devnet.driver must be sqlite or mysql, got %q", l.Devnet.Driver))
		}
		if l.Devnet.BlockTime < 0 {
			errs = append(errs, "ledger.devnet.block_time must not be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("ledger.backend must be devnet or rpc, got %q", l.Backend))
	}
	return errs
}

func validateFHESettings(s *Settings) []string {
	switch s.FHE.Backend {
	case FHEDevnet:
		if s.FHE.Devnet.Key == "" {
			return []string{"fhe.devnet.key is required; run `genenft config init` to generate one"}
		}
		if err := validateEnvHexKey(s.FHE.Devnet.Key); err != nil {
			return []string{"fhe.devnet.key " + err.Error()}
		}
	case FHERelayer:
		if validateEnvURL(s.FHE.Relayer.URL) != nil {
			return []string{"fhe.relayer.url must be an absolute URL when fhe.backend is relayer"}
		}
	default:
		return []string{fmt.Sprintf("fhe.backend must be devnet or relayer, got %q", s.FHE.Backend)}
	}
	return nil
}

func validateRecordSettings(s *Settings) []string {
	var errs []string
	if s.Records.FetchConcurrency < 1 {
		errs = append(errs, "records.fetch_concurrency must be at least 1")
	}
	if s.Records.EstimateTTL <= 0 {
		errs = append(errs, "records.estimate_ttl must be positive")
	}
	return errs
}

func validateRetrySettings(s *Settings) []string {
	var errs []string
	r := &s.Workflow.Retry
	if r.MaxRetries < 0 {
		errs = append(errs, "workflow.retry.max_retries must not be negative")
	}
	if r.Multiplier < 1 {
		errs = append(errs, "workflow.retry.multiplier must be at least 1")
	}
	if r.InitialDelay < 0 || r.MaxDelay < r.InitialDelay {
		errs = append(errs, "workflow.retry delays must satisfy 0 <= initial_delay <= max_delay")
	}
	return errs
}

func validateAPISettings(s *Settings) []string {
	if _, _, err := net.SplitHostPort(s.API.Listen); err != nil {
		return []string{fmt.Sprintf("api.listen must be host:port: %v", err)}
	}
	return nil
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if validateEnvURL(s.MQTT.Broker) != nil {
		errs = append(errs, "mqtt.broker must be a URL such as tcp://host:1883")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when mqtt is enabled")
	}
	if s.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}
	return errs
}

func validateSentrySettings(s *Settings) []string {
	if s.Sentry.Enabled && validateEnvURL(s.Sentry.DSN) != nil {
		return []string{"sentry.dsn must be a URL when sentry is enabled"}
	}
	return nil
}
