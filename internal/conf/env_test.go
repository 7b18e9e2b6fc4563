package conf

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvValidators(t *testing.T) {
	assert.NoError(t, validateEnvBool("true"))
	assert.Error(t, validateEnvBool("yes please"))

	assert.NoError(t, validateEnvPositiveInt("3"))
	assert.Error(t, validateEnvPositiveInt("0"))

	assert.NoError(t, validateEnvAddress("0x6E6E4654000000000000000000000000000000D1"))
	assert.Error(t, validateEnvAddress("6E6E4654000000000000000000000000000000D1"))

	assert.NoError(t, validateEnvURL("tcp://broker:1883"))
	assert.Error(t, validateEnvURL("broker:1883/x"))

	assert.NoError(t, validateEnvHexKey("0x"+testKey))
	err := validateEnvHexKey("not-a-secret-zz")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "not-a-secret")

	oneOf := validateEnvOneOf(LedgerDevnet, LedgerRPC)
	assert.NoError(t, oneOf("rpc"))
	assert.ErrorContains(t, oneOf("ipfs"), "devnet, rpc")
}

func TestBindEnvVarsReportsInvalidValues(t *testing.T) {
	t.Setenv("GENENFT_LEDGER_BACKEND", "ipfs")
	t.Setenv("GENENFT_MQTT_ENABLED", "maybe")

	v := viper.New()
	err := configureEnvironmentVariables(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENENFT_LEDGER_BACKEND")
	assert.Contains(t, err.Error(), "GENENFT_MQTT_ENABLED")
	assert.Equal(t, "ipfs", v.GetString("ledger.backend"), "the value stays bound for ValidateSettings")
}

func TestEnvBindingsUsePrefix(t *testing.T) {
	for _, b := range getEnvBindings() {
		assert.Regexp(t, `^GENENFT_[A-Z_]+$`, b.EnvVar)
	}
}
