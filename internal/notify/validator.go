package notify

import (
	"tunneld/internal/errors"
	"tunneld/internal/resolver"
	"tunneld/util"
)

// Resolved is a validated notification with its destination resolved.
type Resolved struct {
	AccessToken string
	Region      string
	Service     string // normalized service name
	Address     string
	Port        int
}

// Validator runs the admission pipeline over incoming notifications.
type Validator struct {
	resolver *resolver.Resolver
}

// NewValidator returns a Validator backed by the given resolver.
func NewValidator(r *resolver.Resolver) *Validator {
	return &Validator{resolver: r}
}

// Validate applies every admission check in order, short-circuiting on
// the first failure.  The order is load-bearing: later checks assume
// earlier ones passed (e.g. the service lookup reads Services[0]).
// A non-nil error is terminal for the notification — the caller logs
// it and drops the message, nothing is retried.
func (v *Validator) Validate(n Notification) (*Resolved, error) {
	if n.ClientMode != Destination {
		return nil, errors.Reject("client-mode", "unexpected client mode %q", n.ClientMode)
	}

	if len(n.Services) == 0 {
		return nil, errors.Reject("services", "no service requested")
	}
	if len(n.Services) > 1 {
		return nil, errors.Reject("services",
			"multi-port tunnel request with %d services is not supported", len(n.Services))
	}

	if n.ClientAccessToken == "" {
		return nil, errors.Reject("access-token", "access token cannot be empty")
	}
	if n.Region == "" {
		return nil, errors.Reject("region", "region cannot be empty")
	}

	service := v.resolver.Normalize(n.Service())

	address, err := v.resolver.AddressFor(service)
	if err != nil {
		return nil, errors.Reject("address", "unsupported service %q: %v", n.Service(), err)
	}
	if !util.IsValidIPv4(address) {
		return nil, errors.Reject("address",
			"service %q resolved to invalid destination address %q", service, address)
	}

	port, err := v.resolver.PortFor(service)
	if err != nil {
		return nil, errors.Reject("port", "unsupported service %q: %v", service, err)
	}
	if !util.IsValidPort(port) {
		return nil, errors.Reject("port",
			"service %q resolved to invalid destination port %d", service, port)
	}

	return &Resolved{
		AccessToken: n.ClientAccessToken,
		Region:      n.Region,
		Service:     service,
		Address:     address,
		Port:        port,
	}, nil
}
