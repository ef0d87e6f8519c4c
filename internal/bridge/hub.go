package bridge

import (
	"encoding/json"
	"sync"

	"github.com/The-Promised-Neverland/navlink/internal/models"
	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

// Client is one feed consumer. Send is closed when the hub drops the client.
type Client struct {
	ID   string
	Send chan []byte
}

// Hub fans encoded visits out to every registered client and remembers the
// most recent ones for clients that join later.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	cache      *cache
	bufferSize int
}

func NewHub(bufferSize, cacheSize int) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		cache:      newCache(cacheSize),
		bufferSize: bufferSize,
	}
}

// Register adds a client whose channel already holds the cached visits,
// oldest first.
func (h *Hub) Register(id string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{ID: id, Send: make(chan []byte, h.bufferSize)}
	for _, data := range h.cache.snapshot() {
		select {
		case c.Send <- data:
		default:
		}
	}
	h.clients[id] = c
	logger.Log.Info("Feed client registered", "client", id, "clients", len(h.clients))
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

func (h *Hub) remove(c *Client) {
	if current, ok := h.clients[c.ID]; !ok || current != c {
		return
	}
	delete(h.clients, c.ID)
	close(c.Send)
	logger.Log.Info("Feed client removed", "client", c.ID, "clients", len(h.clients))
}

// Broadcast encodes v, caches it and queues it for every client. A client
// whose buffer is full is dropped.
func (h *Hub) Broadcast(v models.Visit) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache.add(data)
	for _, c := range h.clients {
		select {
		case c.Send <- data:
		default:
			logger.Log.Warn("Feed client too slow, dropping", "client", c.ID)
			h.remove(c)
		}
	}
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.remove(c)
	}
}

// cache is a fixed-capacity ring of encoded visits.
type cache struct {
	items [][]byte
	next  int
	full  bool
}

func newCache(capacity int) *cache {
	return &cache{items: make([][]byte, capacity)}
}

func (c *cache) add(data []byte) {
	if len(c.items) == 0 {
		return
	}
	c.items[c.next] = data
	c.next = (c.next + 1) % len(c.items)
	if c.next == 0 {
		c.full = true
	}
}

func (c *cache) snapshot() [][]byte {
	if !c.full {
		return append([][]byte(nil), c.items[:c.next]...)
	}
	out := make([][]byte, 0, len(c.items))
	out = append(out, c.items[c.next:]...)
	return append(out, c.items[:c.next]...)
}
