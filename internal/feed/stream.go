// Package feed renders the live browsing feed published by the bridge.
package feed

import (
	"net/url"
	"sync"
	"time"
)

// Limit is the number of items a Stream keeps.
const Limit = 50

type Item struct {
	Timestamp time.Time
	Identity  string
	URI       *url.URL
}

// Stream holds the most recent items, newest first.
type Stream struct {
	mu    sync.RWMutex
	limit int
	items []Item
}

func NewStream() *Stream {
	return &Stream{limit: Limit}
}

// Push adds item at the front and evicts the oldest item past the limit.
func (s *Stream) Push(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, Item{})
	copy(s.items[1:], s.items)
	s.items[0] = item
	if len(s.items) > s.limit {
		s.items[len(s.items)-1] = Item{}
		s.items = s.items[:s.limit]
	}
}

func (s *Stream) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
