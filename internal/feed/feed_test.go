package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/The-Promised-Neverland/navlink/internal/navigation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

func TestStreamKeepsNewestFifty(t *testing.T) {
	s := NewStream()
	for i := 0; i < 60; i++ {
		s.Push(Item{Identity: fmt.Sprint(i)})
	}

	items := s.Items()
	require.Len(t, items, Limit)
	assert.Equal(t, "59", items[0].Identity)
	assert.Equal(t, "10", items[Limit-1].Identity)
}

func TestStreamNewestFirst(t *testing.T) {
	s := NewStream()
	s.Push(Item{Identity: "a"})
	s.Push(Item{Identity: "b"})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Identity)
	assert.Equal(t, "a", items[1].Identity)
	assert.Equal(t, 2, s.Len())
}

func TestDecodeBridgeMessage(t *testing.T) {
	item, err := Decode([]byte(`{"timestamp":"2023-11-14T22:13:20.000Z","identity":"desk-1",
		"uri":{"protocol":"http","hostname":"example.com","port":"8080","path":"/abc"}}`))
	require.NoError(t, err)

	assert.True(t, item.Timestamp.Equal(time.UnixMilli(1700000000000)))
	assert.Equal(t, "desk-1", item.Identity)
	require.NotNil(t, item.URI)
	assert.Equal(t, "http://example.com:8080/abc", item.URI.String())
}

func TestDecodeStringURIAndEpochTimestamp(t *testing.T) {
	item, err := Decode([]byte(`{"timestamp":1700000000000,"identity":"x","uri":"https://example.com/a?b=c"}`))
	require.NoError(t, err)

	assert.True(t, item.Timestamp.Equal(time.UnixMilli(1700000000000)))
	assert.Equal(t, "example.com", item.URI.Host)
	assert.Equal(t, "b=c", item.URI.RawQuery)
}

func TestDecodeObjectWithoutOptionalParts(t *testing.T) {
	item, err := Decode([]byte(`{"uri":{"protocol":"https","hostname":"bank.example"}}`))
	require.NoError(t, err)

	assert.Equal(t, "https://bank.example", item.URI.String())
	assert.True(t, item.Timestamp.IsZero())
	assert.Empty(t, item.Identity)
}

func TestDecodeObjectKeepsEscapedPath(t *testing.T) {
	res, ok := navigation.Normalize("http://example.com/a%20b/caf%C3%A9", true)
	require.True(t, ok)
	require.NotNil(t, res.Path)

	item, err := Decode([]byte(fmt.Sprintf(`{"uri":{"protocol":"http","hostname":"example.com","path":%q}}`, *res.Path)))
	require.NoError(t, err)

	assert.Equal(t, "http://example.com"+*res.Path, item.URI.String())
	assert.Equal(t, "/a b/café", item.URI.Path)

	item, err = Decode([]byte(`{"uri":{"protocol":"http","hostname":"example.com","path":"/a%20b"}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/a%20b", item.URI.String())
}

func TestDecodeObjectBracketsIPv6Host(t *testing.T) {
	item, err := Decode([]byte(`{"uri":{"protocol":"http","hostname":"::1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://[::1]", item.URI.String())
	assert.Equal(t, "::1", item.URI.Hostname())

	item, err = Decode([]byte(`{"uri":{"protocol":"http","hostname":"::1","port":"8080","path":"/x"}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://[::1]:8080/x", item.URI.String())
}

func TestDecodeObjectRejectsBadEscape(t *testing.T) {
	_, err := Decode([]byte(`{"uri":{"protocol":"http","hostname":"example.com","path":"/%zz"}}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`[1,2]`,
		`{"timestamp":"yesterday"}`,
		`{"timestamp":true}`,
		`{"uri":42}`,
		`{"uri":"http://[::1"}`,
	} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidMessage, raw)
	}
}

func TestModelRendersItems(t *testing.T) {
	m := NewModel("ws://feed.test/ws/browsing")
	u, _ := url.Parse("http://example.com/abc")

	next, _ := m.Update(StateMsg{Connected: true})
	next, _ = next.Update(ItemMsg{Identity: "desk-1", URI: u, Timestamp: time.Now()})
	view := next.View()

	assert.Contains(t, view, "desk-1")
	assert.Contains(t, view, "http://example.com/abc")
	assert.Contains(t, view, "ws://feed.test/ws/browsing")
}

func TestModelKeys(t *testing.T) {
	m := NewModel("feed")
	next, _ := m.Update(ItemMsg{Identity: "gone"})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.NotContains(t, next.View(), "gone")

	_, cmd := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

// feedServer upgrades every request and writes the given frames.
func feedServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FeedPath, r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestSubscriberDeliversDecodedItems(t *testing.T) {
	srv := feedServer(t,
		`{"timestamp":"2023-11-14T22:13:20.000Z","identity":"a","uri":{"protocol":"http","hostname":"one.test"}}`,
		`garbage`,
		`{"timestamp":1700000000000,"identity":"b","uri":"https://two.test/"}`,
	)
	defer srv.Close()

	var mu sync.Mutex
	var got []Item
	sub := NewSubscriber(srv.URL, func(it Item) {
		mu.Lock()
		got = append(got, it)
		mu.Unlock()
	})
	states := make(chan ConnState, 4)
	sub.OnState(func(s ConnState) { states <- s })
	assert.True(t, strings.HasPrefix(sub.URL(), "ws://"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, (<-states).Connected)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, "a", got[0].Identity)
	assert.Equal(t, "b", got[1].Identity)
	mu.Unlock()
}

func TestSubscriberRedialsAfterLoss(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	sub := NewSubscriber(srv.URL, func(Item) {})
	sub.reconnectDelay = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
