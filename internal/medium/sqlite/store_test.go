package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestKeyValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, ok, err := db.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.Set(ctx, "neon-portal:seed", "42"))
	require.NoError(t, db.Set(ctx, "neon-portal:seed", "43"))
	v, ok, err := db.Get(ctx, "neon-portal:seed")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "43", v)

	require.NoError(t, db.Delete(ctx, "neon-portal:seed"))
	_, ok, err = db.Get(ctx, "neon-portal:seed")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScanEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.Set(ctx, "w_1:a", "1"))
	require.NoError(t, db.Set(ctx, "w_1:b", "2"))
	require.NoError(t, db.Set(ctx, "wx1:c", "3"))

	got, err := db.Scan(ctx, "w_1:")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"w_1:a": "1", "w_1:b": "2"}, got)
}

func TestSharedAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Set(ctx, "k", "from-a"))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "from-a", v)
}

func TestBusDeliversToPeersOnly(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	a, err := db.NewBus("a", WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	defer a.Close()
	b, err := db.NewBus("b", WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Publish(ctx, []byte(`{"restartEpoch":7}`)))

	select {
	case msg := <-b.Messages():
		require.JSONEq(t, `{"restartEpoch":7}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not receive message")
	}

	select {
	case msg := <-a.Messages():
		t.Fatalf("publisher received its own message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusStartsAfterExistingMessages(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	a, err := db.NewBus("a", WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Publish(ctx, []byte("old")))

	late, err := db.NewBus("late", WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	defer late.Close()

	select {
	case msg := <-late.Messages():
		t.Fatalf("late joiner replayed %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusCloseIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	bus, err := db.NewBus("a")
	require.NoError(t, err)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(context.Background(), []byte("x")), ErrBusClosed)
	_, ok := <-bus.Messages()
	require.False(t, ok)
}
