package agent

import (
	"context"
	"sync"

	"github.com/The-Promised-Neverland/navlink/internal/broker"
)

type published struct {
	topic   string
	payload []byte
}

// fakeBroker is a broker.Factory that records every client it builds and
// tracks how many of them hold a connection at once.
type fakeBroker struct {
	mu      sync.Mutex
	clients []*fakeClient
	live    int
	maxLive int
	// gated clients wait for a value on their gate before Connect returns.
	gated   bool
	failing bool
}

func (b *fakeBroker) factory(hostname string, port int, clientID string) broker.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &fakeClient{
		broker:   b,
		hostname: hostname,
		port:     port,
		clientID: clientID,
		gate:     make(chan error, 1),
		gated:    b.gated,
		failing:  b.failing,
	}
	b.clients = append(b.clients, c)
	b.live++
	if b.live > b.maxLive {
		b.maxLive = b.live
	}
	return c
}

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *fakeBroker) client(i int) *fakeClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 {
		i += len(b.clients)
	}
	return b.clients[i]
}

func (b *fakeBroker) maxConcurrent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxLive
}

func (b *fakeBroker) setGated(v bool) {
	b.mu.Lock()
	b.gated = v
	b.mu.Unlock()
}

func (b *fakeBroker) setFailing(v bool) {
	b.mu.Lock()
	b.failing = v
	b.mu.Unlock()
}

func (b *fakeBroker) release() {
	b.mu.Lock()
	b.live--
	b.mu.Unlock()
}

type fakeClient struct {
	broker   *fakeBroker
	hostname string
	port     int
	clientID string
	gate     chan error
	gated    bool
	failing  bool

	mu              sync.Mutex
	onLost          func(broker.Reason)
	lostBeforeDial  bool
	opts            broker.ConnectOptions
	connectCalls    int
	disconnectCalls int
	released        bool
	messages        []published
}

func (c *fakeClient) OnConnectionLost(handler func(broker.Reason)) {
	c.mu.Lock()
	c.onLost = handler
	c.mu.Unlock()
}

func (c *fakeClient) Connect(ctx context.Context, opts broker.ConnectOptions) error {
	c.mu.Lock()
	c.opts = opts
	c.connectCalls++
	c.lostBeforeDial = c.onLost != nil
	gated, failing := c.gated, c.failing
	c.mu.Unlock()

	var err error
	if gated {
		select {
		case err = <-c.gate:
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else if failing {
		err = broker.ErrNotConnected
	}
	if err != nil {
		c.releaseOnce()
	}
	return err
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	c.disconnectCalls++
	c.mu.Unlock()
	c.releaseOnce()
}

func (c *fakeClient) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, payload: payload})
	return nil
}

// drop simulates the broker side closing the connection.
func (c *fakeClient) drop(code int) {
	c.mu.Lock()
	handler := c.onLost
	c.mu.Unlock()
	c.releaseOnce()
	if handler != nil {
		handler(broker.Reason{Code: code})
	}
}

func (c *fakeClient) releaseOnce() {
	c.mu.Lock()
	already := c.released
	c.released = true
	c.mu.Unlock()
	if !already {
		c.broker.release()
	}
}

func (c *fakeClient) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.messages...)
}

func (c *fakeClient) disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectCalls
}

func (c *fakeClient) connectOptions() broker.ConnectOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

func (c *fakeClient) connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectCalls
}

func (c *fakeClient) handlerSetBeforeConnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lostBeforeDial
}
