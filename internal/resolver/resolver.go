// Package resolver maps logical service names to concrete destination
// addresses and TCP ports.
//
// The tables are fixed for the life of the process and built once in
// New — never mutated afterwards, so lookups are safe from any
// goroutine without locking.  The only dynamic input is the link-state
// probe that picks between the two bus variants at request time.
package resolver

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"tunneld/config"
	"tunneld/internal/errors"
	"tunneld/util"
)

// Resolver owns the immutable service lookup tables.
type Resolver struct {
	addresses     map[string]string
	ports         map[string]int
	linkStatePath string
	log           *util.Logger
}

// New builds the lookup tables from config.
//
// Fixed entries: SSH and GW share the network bridge address; the two
// bus variants have fixed addresses of their own.  On top of those,
// one numbered endpoint per secondary bus system is generated, host
// ids assigned sequentially from the master system upwards.  The
// fan-out is deterministic: the same config always yields the same
// table.
func New(cfg *config.Config, log *util.Logger) *Resolver {
	addresses := map[string]string{
		config.ServiceSSH:       config.NetworkBridgeAddress,
		config.ServiceGateway:   config.NetworkBridgeAddress,
		config.ServiceBusTCP:    config.BusTCPAddress,
		config.ServiceBusSerial: config.BusSerialAddress,
	}
	for i := 0; i < cfg.MaxBusSystems; i++ {
		name := config.BusFanoutPrefix + strconv.Itoa(i)
		addresses[name] = config.BusFanoutAddressPrefix + strconv.Itoa(config.BusMasterHostID+i)
	}

	return &Resolver{
		addresses: addresses,
		ports: map[string]int{
			config.ServiceSSH:     config.SSHPort,
			config.ServiceGateway: config.GatewayPort,
			config.ServiceBus:     config.BusPort,
		},
		linkStatePath: cfg.LinkStatePath,
		log:           log,
	}
}

// AddressFor returns the destination address for a (normalized)
// service name.
func (r *Resolver) AddressFor(service string) (string, error) {
	addr, ok := r.addresses[service]
	if !ok {
		return "", &errors.ResolutionError{Service: service, What: "address"}
	}
	return addr, nil
}

// PortFor returns the destination port for a service.  Ports are keyed
// by base name only: any variant suffix (and any fan-out index) is
// stripped before lookup.
func (r *Resolver) PortFor(service string) (int, error) {
	port, ok := r.ports[BaseName(service)]
	if !ok {
		return 0, &errors.ResolutionError{Service: service, What: "port"}
	}
	return port, nil
}

// Normalize resolves the bus service to one of its two concrete
// variants by probing the link state; every other name is returned
// unchanged.  A readable link state of "up" selects the TCP variant,
// anything else (including a missing or unreadable file) falls back to
// the serial relay variant.
func (r *Resolver) Normalize(service string) string {
	if service != config.ServiceBus {
		return service
	}
	if r.linkUp() {
		return config.ServiceBusTCP
	}
	return config.ServiceBusSerial
}

// BaseName strips a variant suffix: "BUS_TCP" → "BUS", "SSH" → "SSH".
func BaseName(service string) string {
	base, _, _ := strings.Cut(service, "_")
	return base
}

func (r *Resolver) linkUp() bool {
	f, err := os.Open(r.linkStatePath)
	if err != nil {
		r.log.Debug("link state %s unreadable: %v", r.linkStatePath, err)
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return false
	}
	return sc.Text() == config.LinkStateUp
}
