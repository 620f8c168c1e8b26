// Package config holds the TA/CA configuration surface (spec §6).
// It generalizes the teacher's viper-based env loader.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all process configuration, loaded from environment
// variables prefixed with AIRACCOUNT_.
type Config struct {
	Env string `mapstructure:"env"`

	TA TAConfig
	CA CAConfig
}

// TAConfig holds Trusted Application settings.
type TAConfig struct {
	// SocketPath is the Unix domain socket the TA listens on, standing in
	// for the secure-world call gate.
	SocketPath string `mapstructure:"socket_path"`

	// SealedStoreDir is where encrypted wallet records are persisted.
	SealedStoreDir string `mapstructure:"sealed_store_dir"`

	// SessionTTLSec bounds how long an opened session stays valid.
	SessionTTLSec int `mapstructure:"session_ttl_sec"`

	// DevUUID / ProductionUUID are the fixed TA identities; ProductionMode
	// selects between them.
	DevUUID        string `mapstructure:"dev_uuid"`
	ProductionUUID string `mapstructure:"production_uuid"`
	ProductionMode bool   `mapstructure:"production_mode"`

	// RateLimitPerMinute bounds high-risk operations (sign, mnemonic export)
	// per session per rolling window.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

	// FactorySeedSource selects the factory-seed source: "emulated" or "kms".
	FactorySeedSource string `mapstructure:"factory_seed_source"`
	KMSKeyID          string `mapstructure:"kms_key_id"`
	AWSRegion         string `mapstructure:"aws_region"`

	LocalStackEndpoint string `mapstructure:"localstack_endpoint"`
}

// CAConfig holds Client Proxy / admin-surface settings.
type CAConfig struct {
	SocketPath    string `mapstructure:"socket_path"`
	AdminAddr     string `mapstructure:"admin_addr"`
	DialTimeoutMs int    `mapstructure:"dial_timeout_ms"`
}

const (
	// DevUUID is the reserved development TA UUID used under QEMU/testing.
	DevUUID = "527c1990-a3da-4cf9-8e7c-8d6e6b5a1000"
	// ProductionUUID is the production TA identity, distinct from DevUUID
	// per spec §6.
	ProductionUUID = "9b8f4d2a-6e41-4e7a-8cf6-0b4a9d2f7a21"
)

// Load reads configuration from environment variables prefixed with
// AIRACCOUNT_, applying the defaults below.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AIRACCOUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")

	v.SetDefault("ta.socket_path", "/var/run/airaccount/ta.sock")
	v.SetDefault("ta.sealed_store_dir", "/var/lib/airaccount/sealed")
	v.SetDefault("ta.session_ttl_sec", 1800)
	v.SetDefault("ta.dev_uuid", DevUUID)
	v.SetDefault("ta.production_uuid", ProductionUUID)
	v.SetDefault("ta.production_mode", false)
	v.SetDefault("ta.rate_limit_per_minute", 30)
	v.SetDefault("ta.factory_seed_source", "emulated")
	v.SetDefault("ta.aws_region", "us-east-1")

	v.SetDefault("ca.socket_path", "/var/run/airaccount/ta.sock")
	v.SetDefault("ca.admin_addr", "127.0.0.1:7443")
	v.SetDefault("ca.dial_timeout_ms", 2000)

	cfg := &Config{
		Env: v.GetString("env"),
		TA: TAConfig{
			SocketPath:         v.GetString("ta.socket_path"),
			SealedStoreDir:     v.GetString("ta.sealed_store_dir"),
			SessionTTLSec:      v.GetInt("ta.session_ttl_sec"),
			DevUUID:            v.GetString("ta.dev_uuid"),
			ProductionUUID:     v.GetString("ta.production_uuid"),
			ProductionMode:     v.GetBool("ta.production_mode"),
			RateLimitPerMinute: v.GetInt("ta.rate_limit_per_minute"),
			FactorySeedSource:  v.GetString("ta.factory_seed_source"),
			KMSKeyID:           v.GetString("ta.kms_key_id"),
			AWSRegion:          v.GetString("ta.aws_region"),
			LocalStackEndpoint: v.GetString("localstack_endpoint"),
		},
		CA: CAConfig{
			SocketPath:    v.GetString("ca.socket_path"),
			AdminAddr:     v.GetString("ca.admin_addr"),
			DialTimeoutMs: v.GetInt("ca.dial_timeout_ms"),
		},
	}

	return cfg, nil
}

// ActiveUUID returns the TA identity that applies given the configuration.
func (c *TAConfig) ActiveUUID() string {
	if c.ProductionMode {
		return c.ProductionUUID
	}
	return c.DevUUID
}
