// Package conf loads GeneNFT-Z settings from config.yaml, GENENFT_*
// environment variables and command line flags.
package conf

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
	"github.com/adamidy7424/GeneNFT-Z/internal/secrets"
)

// Backend names
const (
	LedgerDevnet = "devnet"
	LedgerRPC    = "rpc"

	FHEDevnet  = "devnet"
	FHERelayer = "relayer"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Settings contains all configuration options for GeneNFT-Z.
type Settings struct {
	Debug    bool                 `yaml:"debug" mapstructure:"debug"`
	Logging  logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Wallet   WalletSettings       `yaml:"wallet" mapstructure:"wallet"`
	Ledger   LedgerSettings       `yaml:"ledger" mapstructure:"ledger"`
	FHE      FHESettings          `yaml:"fhe" mapstructure:"fhe"`
	Records  RecordSettings       `yaml:"records" mapstructure:"records"`
	Workflow WorkflowSettings     `yaml:"workflow" mapstructure:"workflow"`
	API      APISettings          `yaml:"api" mapstructure:"api"`
	MQTT     MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Notify   NotifySettings       `yaml:"notify" mapstructure:"notify"`
	Sentry   SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
}

// WalletSettings names the account that signs ledger transactions
type WalletSettings struct {
	Account string `yaml:"account" mapstructure:"account"`
}

// LedgerSettings selects and configures the ledger backend
type LedgerSettings struct {
	Backend         string         `yaml:"backend" mapstructure:"backend"`                   // devnet or rpc
	ContractAddress string         `yaml:"contract_address" mapstructure:"contract_address"` // optional, the node reports it otherwise
	FinalityTimeout time.Duration  `yaml:"finality_timeout" mapstructure:"finality_timeout"`
	RPC             RPCSettings    `yaml:"rpc" mapstructure:"rpc"`
	Devnet          DevnetSettings `yaml:"devnet" mapstructure:"devnet"`
}

// RPCSettings configures the JSON-RPC ledger client
type RPCSettings struct {
	URL          string        `yaml:"url" mapstructure:"url"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit    float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Burst        int           `yaml:"burst" mapstructure:"burst"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// DevnetSettings configures the local database-backed ledger
type DevnetSettings struct {
	Driver    string        `yaml:"driver" mapstructure:"driver"` // sqlite or mysql
	Path      string        `yaml:"path" mapstructure:"path"`
	DSN       string        `yaml:"dsn" mapstructure:"dsn"`
	BlockTime time.Duration `yaml:"block_time" mapstructure:"block_time"`
}

// FHESettings selects and configures the encryption service
type FHESettings struct {
	Backend string             `yaml:"backend" mapstructure:"backend"` // devnet or relayer
	Devnet  FHEDevnetSettings  `yaml:"devnet" mapstructure:"devnet"`
	Relayer FHERelayerSettings `yaml:"relayer" mapstructure:"relayer"`
}

// FHEDevnetSettings holds the devnet gateway seed
type FHEDevnetSettings struct {
	Key string `yaml:"key" mapstructure:"key"` // hex, at least 16 bytes
}

// FHERelayerSettings configures the remote relayer client
type FHERelayerSettings struct {
	URL        string        `yaml:"url" mapstructure:"url"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`           // literal or ${VAR}
	APIKeyFile string        `yaml:"api_key_file" mapstructure:"api_key_file"` // read instead of api_key when set
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RecordSettings tunes the record normalizer and the estimate cache
type RecordSettings struct {
	FetchConcurrency int           `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
	EstimateTTL      time.Duration `yaml:"estimate_ttl" mapstructure:"estimate_ttl"`
}

// WorkflowSettings tunes the orchestrators
type WorkflowSettings struct {
	Retry RetrySettings `yaml:"retry" mapstructure:"retry"`
}

// RetrySettings is the verification retry policy
type RetrySettings struct {
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// APISettings configures the HTTP API server
type APISettings struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// MQTTSettings configures status publishing to an MQTT broker
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	Username     string `yaml:"username" mapstructure:"username"`
	Password     string `yaml:"password" mapstructure:"password"` // literal or ${VAR}
	PasswordFile string `yaml:"password_file" mapstructure:"password_file"`
	QoS          byte   `yaml:"qos" mapstructure:"qos"`
	Retain       bool   `yaml:"retain" mapstructure:"retain"`
}

// NotifySettings lists shoutrrr URLs that receive final statuses
type NotifySettings struct {
	URLs []string `yaml:"urls" mapstructure:"urls"`
}

// SentrySettings configures error telemetry
type SentrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile, or config.yaml from the default search paths when
// configFile is empty, applies environment overrides and validates the
// result. A missing config file is not an error; defaults apply.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	settingsInstance = settings
	return settings, nil
}

// initViper sets defaults and env bindings on the global viper and reads
// the config file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		for _, path := range DefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig(viper.GetViper())

	if err := configureEnvironmentVariables(viper.GetViper()); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Info("no config file found, using defaults")
			return nil
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("config_file", configFile).
			Build()
	}
	return nil
}

// resolveSecrets replaces credential fields with their resolved values
func resolveSecrets(s *Settings) error {
	fields := []struct {
		path  string
		value *string
	}{
		{s.FHE.Relayer.APIKeyFile, &s.FHE.Relayer.APIKey},
		{s.MQTT.PasswordFile, &s.MQTT.Password},
		{"", &s.Sentry.DSN},
		{"", &s.FHE.Devnet.Key},
	}
	for _, f := range fields {
		v, err := secrets.Resolve(f.path, *f.value)
		if err != nil {
			return err
		}
		*f.value = v
	}
	return nil
}

// GetSettings returns the settings of the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultSettings returns the settings produced by the defaults alone
func DefaultSettings() (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	return settings, nil
}

// WriteDefaultConfig writes a config file with the default settings and a
// freshly generated devnet key to path. An existing file is only replaced
// when force is set.
func WriteDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Newf("config file %s already exists", path).
			Component("conf").
			Category(errors.CategoryConflict).
			Build()
	}

	settings, err := DefaultSettings()
	if err != nil {
		return err
	}
	key, err := GenerateDevnetKey()
	if err != nil {
		return err
	}
	settings.FHE.Devnet.Key = key

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	return SaveYAMLConfig(path, settings)
}

// SaveYAMLConfig marshals settings to configPath, replacing the file
// atomically. Comments in an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error setting config file permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GenerateDevnetKey returns a random 32-byte hex seed for the devnet gateway
func GenerateDevnetKey() (string, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("failed to generate devnet key: %w", err)
	}
	return hex.EncodeToString(seed), nil
}
