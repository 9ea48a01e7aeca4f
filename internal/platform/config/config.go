// Package config reads process configuration from the environment so main
// stays lean. Every knob has a development-friendly default.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything cmd/server needs to wire the agent.
type Config struct {
	Addr     string
	LogLevel string

	// PostgresURL enables the durable credential store; empty keeps the
	// in-memory store (dev mode).
	PostgresURL string
	// RedisURL enables the shared revocation record store and status
	// cache; empty keeps the in-memory variants.
	RedisURL string

	// KafkaBrokers enables the audit trail publisher; empty disables it.
	KafkaBrokers []string
	KafkaTopic   string

	// Chain registry settings for EthrStatusRegistry2019.
	RegistryRPCURL  string
	RegistryAddress string
	RegistryChainID int64
	RevokeGasLimit  uint64

	// ResolverURL points at a universal-resolver endpoint; empty resolves
	// against the local identity directory only.
	ResolverURL string

	RequestTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("AGENT_ADDR", ":3000"),
		LogLevel:        getenv("AGENT_LOG_LEVEL", "info"),
		PostgresURL:     os.Getenv("AGENT_POSTGRES_URL"),
		RedisURL:        os.Getenv("AGENT_REDIS_URL"),
		KafkaTopic:      getenv("AGENT_KAFKA_TOPIC", "credential-audit"),
		RegistryRPCURL:  os.Getenv("AGENT_REGISTRY_RPC_URL"),
		RegistryAddress: os.Getenv("AGENT_REGISTRY_ADDRESS"),
		RegistryChainID: getenvInt64("AGENT_REGISTRY_CHAIN_ID", 1),
		RevokeGasLimit:  uint64(getenvInt64("AGENT_REVOKE_GAS_LIMIT", 1_000_000)),
		ResolverURL:     os.Getenv("AGENT_RESOLVER_URL"),
		RequestTimeout:  getenvDuration("AGENT_REQUEST_TIMEOUT", 30*time.Second),
	}
	if brokers := os.Getenv("AGENT_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
