// Package config defines the runtime configuration for tunneld and
// validates it before any component starts.
package config

import (
	"fmt"
	"time"

	"tunneld/util"
)

// Config holds every tuneable for a single tunneld process.
type Config struct {
	// ── Identity ─────────────────────────────────────────────────────
	ThingName string // device identity, scopes the notification topic
	RootCA    string // path to the root trust bundle (optional)

	// ── Tunnel mode ──────────────────────────────────────────────────
	SubscribeNotification bool   // true → notification-driven, false → static
	EndpointOverride      string // operator-supplied proxy endpoint host

	// Static-mode tunnel (used only when SubscribeNotification is false).
	StaticRegion      string
	StaticAccessToken string
	StaticAddress     string
	StaticPort        int

	// ── Notification broker ──────────────────────────────────────────
	BrokerAddr     string
	BrokerPassword string
	BrokerDB       int

	// ── Service resolution ───────────────────────────────────────────
	LinkStatePath  string // single-line file selecting the bus variant
	MaxBusSystems  int    // number of numbered bus endpoints to generate
	RelayDevice    string // serial device bridged by the local relay
	ConnectTimeout time.Duration

	// ── Output ───────────────────────────────────────────────────────
	LogFile     string // rotating log file ("" = stderr only)
	MetricsAddr string // Prometheus listen address ("" = disabled)
	Verbose     int
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ThingName == "" {
		return fmt.Errorf("thing name is required (use --help for usage)")
	}

	if c.MaxBusSystems < 0 {
		return fmt.Errorf("max bus systems must be >= 0, got %d", c.MaxBusSystems)
	}

	if c.SubscribeNotification {
		if c.BrokerAddr == "" {
			return fmt.Errorf("notification mode requires a broker address")
		}
		return nil
	}

	// Static mode: the full tunnel tuple must be present and well formed.
	if c.StaticAccessToken == "" {
		return fmt.Errorf("static mode requires an access token")
	}
	if c.StaticRegion == "" {
		return fmt.Errorf("static mode requires a region")
	}
	if !util.IsValidIPv4(c.StaticAddress) {
		return fmt.Errorf("static mode destination %q is not a valid IPv4 address", c.StaticAddress)
	}
	if !util.IsValidPort(c.StaticPort) {
		return fmt.Errorf("static mode port %d out of range 1-65535", c.StaticPort)
	}
	return nil
}
