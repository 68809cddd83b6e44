package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, environment variable loading, and tests.

const (
	// DefaultBrokerAddr is the local notification broker.
	DefaultBrokerAddr = "127.0.0.1:6379"

	// DefaultLinkStatePath is the kernel operstate file for the bus
	// network interface; its content selects TCP vs serial-relay mode.
	DefaultLinkStatePath = "/sys/class/net/eth1/operstate"

	// DefaultMaxBusSystems bounds the numbered bus endpoint fan-out.
	DefaultMaxBusSystems = 10

	// DefaultRelayDevice is the serial device bridged by the local
	// relay listener in serial mode.
	DefaultRelayDevice = "/dev/ttyS2"

	// DefaultConnectTimeout applies to proxy and destination dials.
	DefaultConnectTimeout = 30 * time.Second
)

// Well-known logical service names and their fixed destinations.
// The address tables in internal/resolver are built from these.
const (
	// ServiceSSH and ServiceGateway share the network bridge address.
	ServiceSSH     = "SSH"
	ServiceGateway = "GW"

	// ServiceBus is the logical bus service; a link-state probe picks
	// one of its two concrete variants at request time.
	ServiceBus       = "BUS"
	ServiceBusTCP    = "BUS_TCP"
	ServiceBusSerial = "BUS_RS485"

	// BusFanoutPrefix names the numbered secondary bus systems:
	// BUS_0, BUS_1, ... up to MaxBusSystems.
	BusFanoutPrefix = "BUS_"

	NetworkBridgeAddress = "169.254.0.2"
	BusTCPAddress        = "169.254.0.4"
	BusSerialAddress     = "169.254.0.5"

	// BusFanoutAddressPrefix plus a host id forms each numbered bus
	// endpoint; the master system sits at BusMasterHostID.
	BusFanoutAddressPrefix = "169.254.0."
	BusMasterHostID        = 6

	SSHPort     = 22
	GatewayPort = 8080
	BusPort     = 5555
)

// LinkStateUp is the operstate content that selects the TCP bus variant.
const LinkStateUp = "up"
