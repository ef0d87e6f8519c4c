// Package broker defines the publish capability the agent drives and its MQTT
// implementation.
package broker

import (
	"context"
	"errors"
)

var ErrNotConnected = errors.New("broker: not connected")

// Reason codes follow the numbering browser MQTT clients report on connection
// loss. Zero is a clean close and never triggers a reconnect.
const (
	ReasonNormal      = 0
	ReasonPingTimeout = 4
	ReasonInternal    = 5
	ReasonSocketError = 7
	ReasonSocketClose = 8
)

type Reason struct {
	Code int
	Err  error
}

// Abnormal reports whether the loss was unexpected.
func (r Reason) Abnormal() bool {
	return r.Code != ReasonNormal
}

func (r Reason) String() string {
	if r.Err == nil {
		return "normal"
	}
	return r.Err.Error()
}

type ConnectOptions struct {
	Username string
	Password string
	UseTLS   bool
}

// Client is a single broker session. OnConnectionLost must be set before
// Connect; the handler may run on any goroutine.
type Client interface {
	OnConnectionLost(handler func(Reason))
	Connect(ctx context.Context, opts ConnectOptions) error
	Disconnect()
	// Publish hands the payload to the transport without waiting for delivery.
	Publish(topic string, payload []byte) error
}

// Factory builds an unconnected Client bound to a broker address and client id.
type Factory func(hostname string, port int, clientID string) Client
