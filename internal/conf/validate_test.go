package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := DefaultSettings()
	require.NoError(t, err)
	s.FHE.Devnet.Key = testKey
	require.NoError(t, ValidateSettings(s))
	return s
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"bad account", func(s *Settings) { s.Wallet.Account = "alice" }, "wallet.account"},
		{"bad contract", func(s *Settings) { s.Ledger.ContractAddress = "0x12" }, "ledger.contract_address"},
		{"unknown ledger", func(s *Settings) { s.Ledger.Backend = "ethereum" }, "ledger.backend"},
		{"rpc without url", func(s *Settings) { s.Ledger.Backend = LedgerRPC }, "ledger.rpc.url"},
		{"mysql without dsn", func(s *Settings) { s.Ledger.Devnet.Driver = DriverMySQL }, "ledger.devnet.dsn"},
		{"unknown driver", func(s *Settings) { s.Ledger.Devnet.Driver = "postgres" }, "ledger.devnet.driver"},
		{"zero finality timeout", func(s *Settings) { s.Ledger.FinalityTimeout = 0 }, "ledger.finality_timeout"},
		{"short key", func(s *Settings) { s.FHE.Devnet.Key = "0011" }, "fhe.devnet.key"},
		{"missing key", func(s *Settings) { s.FHE.Devnet.Key = "" }, "config init"},
		{"relayer without url", func(s *Settings) { s.FHE.Backend = FHERelayer }, "fhe.relayer.url"},
		{"zero concurrency", func(s *Settings) { s.Records.FetchConcurrency = 0 }, "records.fetch_concurrency"},
		{"negative retries", func(s *Settings) { s.Workflow.Retry.MaxRetries = -1 }, "max_retries"},
		{"small multiplier", func(s *Settings) { s.Workflow.Retry.Multiplier = 0.5 }, "multiplier"},
		{"inverted delays", func(s *Settings) { s.Workflow.Retry.MaxDelay = 0 }, "initial_delay <= max_delay"},
		{"bad listen", func(s *Settings) { s.API.Listen = "localhost" }, "api.listen"},
		{"mqtt without topic", func(s *Settings) { s.MQTT.Enabled = true; s.MQTT.Topic = "" }, "mqtt.topic"},
		{"mqtt bad qos", func(s *Settings) { s.MQTT.Enabled = true; s.MQTT.QoS = 3 }, "mqtt.qos"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings(t)
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSettingsAcceptsRelayerAndRPC(t *testing.T) {
	s := validSettings(t)
	s.Ledger.Backend = LedgerRPC
	s.Ledger.RPC.URL = "https://node.example.org"
	s.FHE.Backend = FHERelayer
	s.FHE.Devnet.Key = ""
	s.FHE.Relayer.URL = "https://relayer.example.org"
	assert.NoError(t, ValidateSettings(s))
}
