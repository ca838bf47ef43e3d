package portal

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/medium"
	"github.com/san-kum/neonportal/internal/medium/sqlite"
	"github.com/san-kum/neonportal/internal/presence"
)

// Medium attaches a window to the store and broadcast channel shared by
// every window of the experience.
type Medium interface {
	Open(ctx context.Context, windowID string) (*Conn, error)
}

// Conn is one window's attachment to a medium.
type Conn struct {
	Store presence.Store
	Bus   presence.Bus

	closers []io.Closer
}

func NewConn(store presence.Store, bus presence.Bus, closers ...io.Closer) *Conn {
	return &Conn{Store: store, Bus: bus, closers: closers}
}

// Close closes the bus first, then anything the medium opened for it.
func (c *Conn) Close() error {
	var errs []error
	if c.Bus != nil {
		errs = append(errs, c.Bus.Close())
	}
	for _, cl := range c.closers {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

// Memory shares one in-process store and hub between portals. Tests and
// headless replays mount several portals on the same Memory.
type Memory struct {
	Store *medium.Store
	Hub   *medium.Hub
}

func NewMemory() *Memory {
	return &Memory{Store: medium.NewStore(), Hub: medium.NewHub(0)}
}

func (m *Memory) Open(ctx context.Context, windowID string) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewConn(m.Store, m.Hub.Join()), nil
}

// SQLite shares a database file between processes on one machine. Each
// Open gets its own connection pool and message cursor.
type SQLite struct {
	Path       string
	BusOptions []sqlite.BusOption
}

func (s SQLite) Open(ctx context.Context, windowID string) (*Conn, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("no database path: %w", dynamo.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := sqlite.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", s.Path, err, dynamo.ErrUnavailable)
	}
	bus, err := db.NewBus(windowID, s.BusOptions...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("join bus: %v: %w", err, dynamo.ErrUnavailable)
	}
	return NewConn(db, bus, db), nil
}
