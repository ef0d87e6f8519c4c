package broker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const (
	mqttQos            = 0   // Quality-of-service level for published visits
	mqttQuiesce        = 250 // Graceful shutdown delay in milliseconds
	mqttConnectTimeout = 10 * time.Second
	mqttKeepAlive      = 60 * time.Second
	mqttPath           = "/mqtt"
)

// MQTTClient speaks MQTT over websockets, the transport browser clients use.
type MQTTClient struct {
	hostname string
	port     int
	clientID string

	mu     sync.Mutex
	client mqtt.Client
	onLost func(Reason)
}

// NewMQTT is a Factory.
func NewMQTT(hostname string, port int, clientID string) Client {
	return &MQTTClient{
		hostname: hostname,
		port:     port,
		clientID: clientID,
	}
}

// BrokerURL returns the websocket address of the broker.
func BrokerURL(hostname string, port int, useTLS bool) string {
	scheme := "ws"
	if useTLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(hostname, strconv.Itoa(port)), mqttPath)
}

func (c *MQTTClient) OnConnectionLost(handler func(Reason)) {
	c.mu.Lock()
	c.onLost = handler
	c.mu.Unlock()
}

func (c *MQTTClient) Connect(ctx context.Context, opts ConnectOptions) error {
	brokerURL := BrokerURL(c.hostname, c.port, opts.UseTLS)
	o := mqtt.NewClientOptions()
	o.AddBroker(brokerURL)
	o.SetClientID(c.clientID)
	o.SetUsername(opts.Username)
	o.SetPassword(opts.Password)
	o.SetCleanSession(true)
	o.SetAutoReconnect(false)
	o.SetConnectRetry(false)
	o.SetConnectTimeout(mqttConnectTimeout)
	o.SetKeepAlive(mqttKeepAlive)
	o.SetOrderMatters(false)
	if opts.UseTLS {
		o.SetTLSConfig(&tls.Config{ServerName: c.hostname, MinVersion: tls.VersionTLS12})
	}
	o.SetConnectionLostHandler(c.connectionLost)

	client := mqtt.NewClient(o)
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	logger.Log.Info("Connecting to message broker", "url", brokerURL, "client_id", c.clientID)
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to %s: %w", brokerURL, err)
		}
		return nil
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
}

func (c *MQTTClient) Disconnect() {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return
	}
	client.Disconnect(mqttQuiesce)
}

func (c *MQTTClient) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}
	client.Publish(topic, mqttQos, false, payload)
	return nil
}

func (c *MQTTClient) connectionLost(_ mqtt.Client, err error) {
	c.mu.Lock()
	handler := c.onLost
	c.mu.Unlock()
	reason := Classify(err)
	logger.Log.Warn("Lost connection to message broker", "code", reason.Code, "err", err)
	if handler != nil {
		handler(reason)
	}
}

// Classify maps a transport error onto a Reason.
func Classify(err error) Reason {
	switch {
	case err == nil:
		return Reason{Code: ReasonNormal}
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return Reason{Code: ReasonSocketClose, Err: err}
	case strings.Contains(err.Error(), "pingresp not received"):
		return Reason{Code: ReasonPingTimeout, Err: err}
	default:
		return Reason{Code: ReasonSocketError, Err: err}
	}
}
