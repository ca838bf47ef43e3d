package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultRetention    = 10 * time.Second
	pollBatch           = 256
)

var ErrBusClosed = errors.New("sqlite: bus closed")

// Bus is one window's endpoint on the message log. It starts reading after
// the newest message present when it was opened and skips its own messages.
type Bus struct {
	db        *DB
	sender    string
	interval  time.Duration
	retention time.Duration
	logger    *log.Logger

	ch     chan []byte
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

type BusOption func(*Bus)

func WithPollInterval(d time.Duration) BusOption { return func(b *Bus) { b.interval = d } }
func WithRetention(d time.Duration) BusOption    { return func(b *Bus) { b.retention = d } }
func WithLogger(l *log.Logger) BusOption         { return func(b *Bus) { b.logger = l } }

// NewBus joins the message log as sender and starts polling.
func (d *DB) NewBus(sender string, opts ...BusOption) (*Bus, error) {
	if sender == "" {
		return nil, fmt.Errorf("sender is required")
	}
	b := &Bus{
		db:        d,
		sender:    sender,
		interval:  DefaultPollInterval,
		retention: DefaultRetention,
		logger:    log.Default(),
		ch:        make(chan []byte, 128),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	var last int64
	if err := d.sqlDB.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM messages`).Scan(&last); err != nil {
		return nil, fmt.Errorf("read message cursor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.poll(ctx, last)
	return b, nil
}

func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}
	_, err := b.db.sqlDB.ExecContext(ctx,
		`INSERT INTO messages (sender, payload, created_at) VALUES (?, ?, ?)`,
		b.sender, payload, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (b *Bus) Messages() <-chan []byte { return b.ch }

// Close stops polling and closes the messages channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	<-b.done
	close(b.ch)
	return nil
}

func (b *Bus) poll(ctx context.Context, last int64) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		next, err := b.drain(ctx, last)
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Printf("sqlite: poll messages: %v", err)
			}
			continue
		}
		last = next

		ticks++
		if ticks%40 == 0 {
			b.prune(ctx)
		}
	}
}

func (b *Bus) drain(ctx context.Context, last int64) (int64, error) {
	rows, err := b.db.sqlDB.QueryContext(ctx, `
SELECT seq, payload FROM messages
WHERE seq > ? AND sender <> ?
ORDER BY seq
LIMIT ?
`, last, b.sender, pollBatch)
	if err != nil {
		return last, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			return last, err
		}
		last = seq
		select {
		case b.ch <- payload:
		default:
		}
	}
	return last, rows.Err()
}

func (b *Bus) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-b.retention).UnixMilli()
	if _, err := b.db.sqlDB.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff); err != nil && ctx.Err() == nil {
		b.logger.Printf("sqlite: prune messages: %v", err)
	}
}
