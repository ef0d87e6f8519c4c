package feed

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/The-Promised-Neverland/navlink/pkg/logger"
	"github.com/The-Promised-Neverland/navlink/pkg/utils"
)

const (
	// FeedPath is the bridge endpoint that streams visits.
	FeedPath = "/ws/browsing"

	reconnectDelay = 5 * time.Second
	// The bridge pings every 30s; two missed pings drop the connection.
	readDeadline = 70 * time.Second
)

// ConnState reports transitions of the subscriber's connection.
type ConnState struct {
	Connected bool
	Err       error
}

// Subscriber keeps a websocket to the bridge open and decodes every message it
// receives. Undecodable messages are logged and skipped.
type Subscriber struct {
	url            string
	dialer         *websocket.Dialer
	onItem         func(Item)
	onState        func(ConnState)
	reconnectDelay time.Duration
}

// NewSubscriber accepts the bridge base URL (http, https, ws or wss).
func NewSubscriber(baseURL string, onItem func(Item)) *Subscriber {
	return &Subscriber{
		url:            utils.BuildWebSocketURL(baseURL, FeedPath),
		dialer:         websocket.DefaultDialer,
		onItem:         onItem,
		onState:        func(ConnState) {},
		reconnectDelay: reconnectDelay,
	}
}

// OnState registers a callback for connection changes. Call before Run.
func (s *Subscriber) OnState(fn func(ConnState)) {
	s.onState = fn
}

func (s *Subscriber) URL() string {
	return s.url
}

// Run dials, reads until the connection drops and redials after a delay,
// until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.onState(ConnState{Err: err})
		logger.Log.Warn("Feed connection lost, retrying", "url", s.url, "err", err, "delay", s.reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	logger.Log.Info("Connected to feed", "url", s.url)
	s.onState(ConnState{Connected: true})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()
	return s.readPump(conn)
}

func (s *Subscriber) readPump(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		item, err := Decode(data)
		if err != nil {
			logger.Log.Warn("Failed to decode feed message", "err", err)
			continue
		}
		s.onItem(item)
	}
}
