package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TUNNELD_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TUNNELD_THING_NAME"); v != "" {
		cfg.ThingName = v
	}
	if v := os.Getenv("TUNNELD_ROOT_CA"); v != "" {
		cfg.RootCA = v
	}
	if envBool("TUNNELD_SUBSCRIBE") {
		cfg.SubscribeNotification = true
	}
	if v := os.Getenv("TUNNELD_ENDPOINT"); v != "" {
		cfg.EndpointOverride = v
	}

	// Static tunnel
	if v := os.Getenv("TUNNELD_REGION"); v != "" {
		cfg.StaticRegion = v
	}
	if v := os.Getenv("TUNNELD_ACCESS_TOKEN"); v != "" {
		cfg.StaticAccessToken = v
	}
	if v := os.Getenv("TUNNELD_ADDRESS"); v != "" {
		cfg.StaticAddress = v
	}
	if v := envInt("TUNNELD_PORT"); v > 0 {
		cfg.StaticPort = v
	}

	// Notification broker
	if v := os.Getenv("TUNNELD_BROKER_ADDR"); v != "" {
		cfg.BrokerAddr = v
	}
	if v := os.Getenv("TUNNELD_BROKER_PASSWORD"); v != "" {
		cfg.BrokerPassword = v
	}
	if v := envInt("TUNNELD_BROKER_DB"); v > 0 {
		cfg.BrokerDB = v
	}

	// Service resolution
	if v := os.Getenv("TUNNELD_LINK_STATE"); v != "" {
		cfg.LinkStatePath = v
	}
	if v := envInt("TUNNELD_MAX_BUS_SYSTEMS"); v > 0 {
		cfg.MaxBusSystems = v
	}
	if v := os.Getenv("TUNNELD_RELAY_DEVICE"); v != "" {
		cfg.RelayDevice = v
	}

	// Output
	if v := os.Getenv("TUNNELD_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("TUNNELD_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := envInt("TUNNELD_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
