package presence

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Shared keys. Per-window entries live under WindowKeyPrefix; older writers
// kept every window in one JSON array under WindowsKey. Both are read.
const (
	KeyPrefix       = "neon-portal:"
	SeedKey         = KeyPrefix + "seed"
	EpochKey        = KeyPrefix + "start"
	WindowsKey      = KeyPrefix + "windows"
	WindowKeyPrefix = KeyPrefix + "window:"
)

func WindowKey(id string) string { return WindowKeyPrefix + id }

// Store is the origin-scoped key/value medium every window can read.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context, prefix string) (map[string]string, error)
}

// Bus is one window's endpoint on the broadcast channel. Publish never
// delivers to the publishing endpoint; delivery is at-most-once.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Messages() <-chan []byte
	Close() error
}

// Clock supplies wall time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// snapshot is one full read of the medium's window entries.
type snapshot struct {
	entries   []WindowInfo
	keys      map[string]WindowInfo // per-window key -> entry
	malformed []string              // per-window keys that failed to parse

	legacy        []WindowInfo
	legacyPresent bool
	legacyCorrupt bool
}

func readSnapshot(ctx context.Context, store Store) (*snapshot, error) {
	snap := &snapshot{keys: make(map[string]WindowInfo)}

	values, err := store.Scan(ctx, WindowKeyPrefix)
	if err != nil {
		return nil, err
	}
	for key, raw := range values {
		var w WindowInfo
		if err := json.Unmarshal([]byte(raw), &w); err != nil || !w.Valid() ||
			w.ID != strings.TrimPrefix(key, WindowKeyPrefix) {
			snap.malformed = append(snap.malformed, key)
			continue
		}
		snap.keys[key] = w
		snap.entries = append(snap.entries, w)
	}

	raw, ok, err := store.Get(ctx, WindowsKey)
	if err != nil {
		return nil, err
	}
	if ok {
		snap.legacyPresent = true
		var list []WindowInfo
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			snap.legacyCorrupt = true
		}
		for _, w := range list {
			if w.Valid() {
				snap.legacy = append(snap.legacy, w)
				snap.entries = append(snap.entries, w)
			}
		}
	}

	return snap, nil
}

// ReadLiveWindows reads the medium without joining it: every entry from
// either layout refreshed within staleAfter of now, newest per id, sorted
// by id.
func ReadLiveWindows(ctx context.Context, store Store, now time.Time, staleAfter time.Duration) ([]WindowInfo, error) {
	snap, err := readSnapshot(ctx, store)
	if err != nil {
		return nil, err
	}
	newest := make(map[string]WindowInfo, len(snap.entries))
	for _, w := range snap.entries {
		if cur, ok := newest[w.ID]; ok && cur.TS >= w.TS {
			continue
		}
		newest[w.ID] = w
	}
	live := make([]WindowInfo, 0, len(newest))
	for _, w := range newest {
		if w.Age(now) <= staleAfter {
			live = append(live, w)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live, nil
}
