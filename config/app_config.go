package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// This is the global app config for the full node.
type AppConfig struct {
	// TCP port the gRPC service listens on.
	Port string `yaml:"port"`
	// TCP port serving /metrics. Empty disables the metrics endpoint.
	MetricsPort string `yaml:"metrics_port"`
	// logrus level name, e.g. "info" or "debug".
	LogLevel string `yaml:"log_level"`
	// Value of the genesis coinbase output.
	CoinbaseReward float64 `yaml:"coinbase_reward"`
	// PEM RSA private key owning the genesis output.
	KeyPath string `yaml:"key_path"`
	// How many rejected block hashes are remembered.
	RejectCacheSize int `yaml:"reject_cache_size"`
	// Directory visualisations are written to.
	ShowPath string `yaml:"show_path"`
}

// DefaultAppConfig returns the settings used for anything a config file leaves out.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Port:            "10000",
		MetricsPort:     "",
		LogLevel:        "info",
		CoinbaseReward:  25,
		KeyPath:         "/tmp/full_node.pem",
		RejectCacheSize: 1000,
		ShowPath:        "/tmp",
	}
}

// Validate checks the config is usable.
func (c AppConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if c.CoinbaseReward < 0 {
		return errors.Errorf("coinbase_reward must be non-negative, got %v", c.CoinbaseReward)
	}
	if c.RejectCacheSize < 0 {
		return errors.Errorf("reject_cache_size must be non-negative, got %d", c.RejectCacheSize)
	}
	return nil
}

// ParseAppConfig reads the yaml file at path on top of DefaultAppConfig.
func ParseAppConfig(path string) (AppConfig, error) {
	c := DefaultAppConfig()
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, errors.Wrapf(err, "unmarshal config %s", path)
	}
	if err := c.Validate(); err != nil {
		return c, errors.Wrapf(err, "invalid config %s", path)
	}
	return c, nil
}
