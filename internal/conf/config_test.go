package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
)

const testKey = "000102030405060708090a0b0c0d0e0f"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func load(t *testing.T, path string) (*Settings, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return Load(path)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "fhe:\n  devnet:\n    key: "+testKey+"\n")

	s, err := load(t, path)
	require.NoError(t, err)
	assert.Equal(t, LedgerDevnet, s.Ledger.Backend)
	assert.Equal(t, DriverSQLite, s.Ledger.Devnet.Driver)
	assert.Equal(t, 2*time.Minute, s.Ledger.FinalityTimeout)
	assert.Equal(t, 2*time.Second, s.Ledger.Devnet.BlockTime)
	assert.Equal(t, 4, s.Records.FetchConcurrency)
	assert.Equal(t, 30*time.Minute, s.Records.EstimateTTL)
	assert.Equal(t, 2, s.Workflow.Retry.MaxRetries)
	assert.InDelta(t, 2.0, s.Workflow.Retry.Multiplier, 0)
	assert.Equal(t, "127.0.0.1:8787", s.API.Listen)
	assert.Equal(t, "genenft/status", s.MQTT.Topic)
	assert.Equal(t, byte(1), s.MQTT.QoS)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
	assert.Same(t, s, GetSettings())
}

func TestLoadReadsFileValues(t *testing.T) {
	path := writeConfig(t, `
wallet:
  account: "0xA11CE00000000000000000000000000000000001"
ledger:
  backend: rpc
  finality_timeout: 45s
  rpc:
    url: https://node.example.org/rpc
    rate_limit: 2.5
fhe:
  backend: relayer
  relayer:
    url: https://relayer.example.org
    api_key: secret
workflow:
  retry:
    max_retries: 4
    initial_delay: 500ms
notify:
  urls:
    - "generic://hooks.example.org/genenft"
`)

	s, err := load(t, path)
	require.NoError(t, err)
	assert.Equal(t, "0xA11CE00000000000000000000000000000000001", s.Wallet.Account)
	assert.Equal(t, LedgerRPC, s.Ledger.Backend)
	assert.Equal(t, 45*time.Second, s.Ledger.FinalityTimeout)
	assert.InDelta(t, 2.5, s.Ledger.RPC.RateLimit, 0)
	assert.Equal(t, FHERelayer, s.FHE.Backend)
	assert.Equal(t, "secret", s.FHE.Relayer.APIKey)
	assert.Equal(t, 4, s.Workflow.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, s.Workflow.Retry.InitialDelay)
	assert.Equal(t, []string{"generic://hooks.example.org/genenft"}, s.Notify.URLs)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "fhe:\n  devnet:\n    key: "+testKey+"\napi:\n  listen: 127.0.0.1:9000\n")
	t.Setenv("GENENFT_API_LISTEN", "0.0.0.0:8080")
	t.Setenv("GENENFT_RECORDS_FETCH_CONCURRENCY", "9")
	t.Setenv("GENENFT_LEDGER_DEVNET_BLOCK_TIME", "250ms")

	s, err := load(t, path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", s.API.Listen)
	assert.Equal(t, 9, s.Records.FetchConcurrency)
	assert.Equal(t, 250*time.Millisecond, s.Ledger.Devnet.BlockTime, "automatic env covers unlisted keys")
}

func TestLoadResolvesSecrets(t *testing.T) {
	passwordFile := filepath.Join(t.TempDir(), "mqtt-password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("broker-pass\n"), 0o600))
	t.Setenv("GENENFT_TEST_DEVNET_KEY", testKey)
	t.Setenv("GENENFT_TEST_RELAYER_KEY", "relayer-token")

	path := writeConfig(t, `
fhe:
  backend: relayer
  devnet:
    key: ${GENENFT_TEST_DEVNET_KEY}
  relayer:
    url: https://relayer.example.org
    api_key: Bearer ${GENENFT_TEST_RELAYER_KEY}
mqtt:
  password: ignored
  password_file: `+passwordFile+`
`)

	s, err := load(t, path)
	require.NoError(t, err)
	assert.Equal(t, testKey, s.FHE.Devnet.Key)
	assert.Equal(t, "Bearer relayer-token", s.FHE.Relayer.APIKey)
	assert.Equal(t, "broker-pass", s.MQTT.Password)

	path = writeConfig(t, "sentry:\n  dsn: ${GENENFT_TEST_UNSET_DSN}\n")
	_, err = load(t, path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := writeConfig(t, "ledger:\n  backend: rpc\nrecords:\n  fetch_concurrency: 0\n")

	_, err := load(t, path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3, "rpc url, devnet key and fetch concurrency are all reported")
}

func TestLoadWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GENENFT_FHE_DEVNET_KEY", testKey)

	s, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, testKey, s.FHE.Devnet.Key)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "ledger")
	assert.Contains(t, string(data), "finality_timeout: 2m0s")

	s, err := load(t, path)
	require.NoError(t, err, "the generated file loads and validates")
	assert.Len(t, s.FHE.Devnet.Key, 64)

	err = WriteDefaultConfig(path, false)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
	assert.NoError(t, WriteDefaultConfig(path, true))
}

func TestGenerateDevnetKeyIsRandom(t *testing.T) {
	a, err := GenerateDevnetKey()
	require.NoError(t, err)
	b, err := GenerateDevnetKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NoError(t, validateEnvHexKey(a))
}
