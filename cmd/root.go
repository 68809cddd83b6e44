// Package cmd wires up the CLI flags and runs the tunnel feature.
package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"tunneld/config"
	"tunneld/internal/feature"
	"tunneld/internal/notify"
	"tunneld/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tunneld/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the agent until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{
		BrokerAddr:     config.DefaultBrokerAddr,
		LinkStatePath:  config.DefaultLinkStatePath,
		MaxBusSystems:  config.DefaultMaxBusSystems,
		RelayDevice:    config.DefaultRelayDevice,
		ConnectTimeout: config.DefaultConnectTimeout,
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("tunneld", flag.ContinueOnError)

	// ── identity ─────────────────────────────────────────────────
	fs.StringVarP(&cfg.ThingName, "thing-name", "t", cfg.ThingName, "Device identity (notification topic scope)")
	fs.StringVar(&cfg.RootCA, "root-ca", cfg.RootCA, "Root CA bundle for the proxy TLS handshake")

	// ── tunnel mode ──────────────────────────────────────────────
	fs.BoolVarP(&cfg.SubscribeNotification, "subscribe", "s", cfg.SubscribeNotification,
		"Subscribe to tunnel notifications (default: static tunnel from flags)")
	fs.StringVar(&cfg.EndpointOverride, "endpoint", cfg.EndpointOverride, "Override proxy endpoint host")
	fs.StringVar(&cfg.StaticRegion, "region", cfg.StaticRegion, "Static tunnel region")
	fs.StringVar(&cfg.StaticAccessToken, "access-token", cfg.StaticAccessToken, "Static tunnel access token")
	fs.StringVar(&cfg.StaticAddress, "address", cfg.StaticAddress, "Static tunnel destination IPv4 address")
	fs.IntVarP(&cfg.StaticPort, "port", "p", cfg.StaticPort, "Static tunnel destination port")

	// ── notification broker ──────────────────────────────────────
	fs.StringVar(&cfg.BrokerAddr, "broker", cfg.BrokerAddr, "Notification broker address")
	fs.StringVar(&cfg.BrokerPassword, "broker-password", cfg.BrokerPassword, "Notification broker password")
	fs.IntVar(&cfg.BrokerDB, "broker-db", cfg.BrokerDB, "Notification broker database")

	// ── service resolution ───────────────────────────────────────
	fs.StringVar(&cfg.LinkStatePath, "link-state", cfg.LinkStatePath, "Link-state file for the bus interface")
	fs.IntVar(&cfg.MaxBusSystems, "max-bus-systems", cfg.MaxBusSystems, "Numbered bus endpoints to expose")
	fs.StringVar(&cfg.RelayDevice, "relay-device", cfg.RelayDevice, "Serial device for the local relay")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Rotating log file (in addition to stderr)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (empty = off)")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("tunneld %s\n", version)
		return nil
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.LogFile != "" {
		logger.SetFile(cfg.LogFile)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	var channel notify.Channel
	if cfg.SubscribeNotification {
		rc := notify.NewRedisChannel(cfg, logger)
		defer rc.Close()
		channel = rc
	}

	feat := feature.New(cfg, logger, channel, feature.DefaultFactory(cfg, logger))
	if err := feat.Start(ctx); err != nil {
		return err
	}
	defer feat.Stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		return nil
	case err := <-feat.Err():
		return fmt.Errorf("tunnel feature failed: %w", err)
	}
}

func serveMetrics(addr string, logger *util.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Verbose("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener: %v", err)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Printf(`tunneld %s - device-side secure tunnel agent

Usage:
  tunneld --subscribe --thing-name NAME [options]
  tunneld --thing-name NAME --region REGION --access-token TOK --address IP --port PORT

Modes:
  --subscribe   wait for tunnel-open notifications and serve each one
  (default)     open a single statically configured tunnel at start

Options:
%s
Environment variables with the TUNNELD_ prefix provide defaults for
every flag (e.g. TUNNELD_THING_NAME, TUNNELD_BROKER_ADDR).
`, version, fs.FlagUsages())
}
