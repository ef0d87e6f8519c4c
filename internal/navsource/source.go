// Package navsource delivers completed top-level navigations to the agent.
package navsource

import (
	"sync"

	"github.com/The-Promised-Neverland/navlink/internal/models"
)

type Handler func(models.NavigationEvent)

// Source is a host facility that reports completed navigations. Handlers are
// registered once and never removed.
type Source interface {
	Subscribe(h Handler)
}

type fanout struct {
	mu       sync.RWMutex
	handlers []Handler
}

func (f *fanout) Subscribe(h Handler) {
	f.mu.Lock()
	f.handlers = append(f.handlers, h)
	f.mu.Unlock()
}

func (f *fanout) emit(ev models.NavigationEvent) {
	f.mu.RLock()
	handlers := f.handlers
	f.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

// Ingest is fed by the control server with events forwarded by a browser
// extension.
type Ingest struct {
	fanout
}

func NewIngest() *Ingest {
	return &Ingest{}
}

func (s *Ingest) Publish(ev models.NavigationEvent) {
	s.emit(ev)
}
