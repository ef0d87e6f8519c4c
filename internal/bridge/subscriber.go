package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/The-Promised-Neverland/navlink/internal/models"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const (
	subscribeQoS = 0
	quiesce      = 500 // ms
)

// Subscriber forwards every visit published on its topics to the hub.
type Subscriber struct {
	brokerURL string
	topics    []string
	hub       *Hub
	clientID  string
}

func NewSubscriber(brokerURL string, topics []string, hub *Hub) *Subscriber {
	return &Subscriber{
		brokerURL: brokerURL,
		topics:    topics,
		hub:       hub,
		clientID:  "navlink-bridge-" + uuid.NewString()[:8],
	}
}

// clientOptions moves credentials embedded in the broker URL into the MQTT
// options, since the broker address must not carry them.
func (s *Subscriber) clientOptions() (*mqtt.ClientOptions, error) {
	u, err := url.Parse(s.brokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	userinfo := u.User
	u.User = nil

	opts := mqtt.NewClientOptions()
	opts.AddBroker(u.String())
	opts.SetClientID(s.clientID)
	if userinfo != nil {
		opts.SetUsername(userinfo.Username())
		if pw, ok := userinfo.Password(); ok {
			opts.SetPassword(pw)
		}
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Log.Warn("Lost connection to broker", "err", err)
	})
	return opts, nil
}

// Run connects and relays until ctx is cancelled. The client reconnects on
// its own after a loss; topics are resubscribed on every connect.
func (s *Subscriber) Run(ctx context.Context) error {
	opts, err := s.clientOptions()
	if err != nil {
		return err
	}
	logger.Log.Info("Connecting to broker", "broker", opts.Servers[0].Redacted(), "client", s.clientID)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
	case <-ctx.Done():
	}
	<-ctx.Done()
	client.Disconnect(quiesce)
	return nil
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	filters := make(map[string]byte, len(s.topics))
	for _, t := range s.topics {
		filters[t] = subscribeQoS
	}
	token := client.SubscribeMultiple(filters, nil)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Log.Error("Failed to subscribe", "topics", s.topics, "err", err)
			return
		}
		logger.Log.Info("Subscribed to topics", "topics", s.topics)
	}()
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	var v models.Visit
	if err := json.Unmarshal(payload, &v); err != nil {
		logger.Log.Warn("Could not decode visit", "topic", topic, "err", err)
		return
	}
	if err := s.hub.Broadcast(v); err != nil {
		logger.Log.Error("Could not relay visit", "topic", topic, "err", err)
	}
}
