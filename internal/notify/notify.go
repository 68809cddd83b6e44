// Package notify defines the tunnel-open notification, the validation
// pipeline applied to it, and the channel it arrives on.
package notify

import (
	"context"
	"fmt"
)

// ClientMode is the role the device is asked to play in a tunnel.
type ClientMode string

func (m ClientMode) String() string { return string(m) }

// List of ClientModes.  This agent only ever acts as the destination.
const (
	Source      ClientMode = "source"
	Destination ClientMode = "destination"
)

// Notification is the payload of a tunnel-open message.  Immutable
// once received.
type Notification struct {
	ClientAccessToken string     `json:"clientAccessToken"`
	ClientMode        ClientMode `json:"clientMode"`
	Region            string     `json:"region"`
	Services          []string   `json:"services"`
}

// Service returns the single requested service.  Valid only after the
// notification has passed validation.
func (n *Notification) Service() string {
	return n.Services[0]
}

// Topic returns the notification topic for a device identity.
func Topic(thingName string) string {
	return fmt.Sprintf("$aws/things/%s/tunnels/notify", thingName)
}

// Handler consumes one delivered notification.  It is invoked on a
// transport-owned goroutine and must tolerate duplicate and
// out-of-order delivery.
type Handler func(n Notification)

// Channel is the transport the notifications arrive on.  Delivery is
// at-least-once; dedup is the consumer's job.
type Channel interface {
	// Subscribe registers h for the device's notification topic and
	// returns once the subscription is established.  Delivery continues
	// until ctx is cancelled or Close is called.
	Subscribe(ctx context.Context, thingName string, h Handler) error

	// Close tears down the subscription and releases the transport.
	Close() error
}
