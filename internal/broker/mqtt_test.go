package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "wss://broker.example.net:8080/mqtt", BrokerURL("broker.example.net", 8080, true))
	assert.Equal(t, "ws://localhost:9001/mqtt", BrokerURL("localhost", 9001, false))
	assert.Equal(t, "ws://[::1]:9001/mqtt", BrokerURL("::1", 9001, false))
}

func TestClassify(t *testing.T) {
	assert.False(t, Classify(nil).Abnormal())
	assert.Equal(t, ReasonNormal, Classify(nil).Code)

	eof := Classify(fmt.Errorf("read: %w", io.EOF))
	assert.Equal(t, ReasonSocketClose, eof.Code)
	assert.True(t, eof.Abnormal())

	assert.Equal(t, ReasonPingTimeout, Classify(errors.New("pingresp not received, disconnecting")).Code)
	assert.Equal(t, ReasonSocketError, Classify(errors.New("connection reset by peer")).Code)
}

func TestPublishBeforeConnect(t *testing.T) {
	c := NewMQTT("localhost", 8080, "id")
	assert.ErrorIs(t, c.Publish("Browsing/id", []byte("{}")), ErrNotConnected)
	c.Disconnect()
}

func TestConnectRespectsCancelledContext(t *testing.T) {
	c := NewMQTT("127.0.0.1", 1, "id")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Connect(ctx, ConnectOptions{})
	assert.Error(t, err)
}
