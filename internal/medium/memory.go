package medium

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrClosed is returned by operations on a closed endpoint.
var ErrClosed = errors.New("medium: closed")

// Store is an in-process key/value store safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
	fail error
}

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// FailWith makes every later operation return err; nil restores the store.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return "", false, s.fail
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.data[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.data, key)
	return nil
}

func (s *Store) Scan(ctx context.Context, prefix string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := make(map[string]string)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

// Hub is an in-process broadcast channel. Each window joins with its own
// Endpoint; full endpoint buffers drop messages instead of blocking.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[*Endpoint]struct{}
	buffer    int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 64
	}
	return &Hub{endpoints: make(map[*Endpoint]struct{}), buffer: buffer}
}

func (h *Hub) Join() *Endpoint {
	e := &Endpoint{hub: h, ch: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.endpoints[e] = struct{}{}
	h.mu.Unlock()
	return e
}

// Size returns the number of joined endpoints.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}

type Endpoint struct {
	hub    *Hub
	ch     chan []byte
	closed bool
}

func (e *Endpoint) Publish(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := e.hub
	h.mu.RLock()
	defer h.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	for peer := range h.endpoints {
		if peer == e {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case peer.ch <- msg:
		default:
		}
	}
	return nil
}

func (e *Endpoint) Messages() <-chan []byte { return e.ch }

func (e *Endpoint) Close() error {
	h := e.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	delete(h.endpoints, e)
	close(e.ch)
	return nil
}
