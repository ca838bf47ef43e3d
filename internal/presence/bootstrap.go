package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// LoadOrInitSeed returns the shared particle seed, storing a fresh one from
// newSeed when the medium has none or holds garbage. A nil store yields a
// local seed that no peer will share.
func LoadOrInitSeed(ctx context.Context, store Store, newSeed func() (uint32, error)) (uint32, error) {
	if store != nil {
		raw, ok, err := store.Get(ctx, SeedKey)
		if err != nil {
			return 0, fmt.Errorf("read seed: %w", err)
		}
		if ok {
			if seed, err := strconv.ParseUint(raw, 10, 32); err == nil && seed != 0 {
				return uint32(seed), nil
			}
		}
	}

	seed, err := newSeed()
	if err != nil {
		return 0, err
	}
	if store != nil {
		if err := store.Set(ctx, SeedKey, strconv.FormatUint(uint64(seed), 10)); err != nil {
			return 0, fmt.Errorf("write seed: %w", err)
		}
	}
	return seed, nil
}

// LoadOrInitEpoch returns the shared simulation epoch in Unix milliseconds,
// storing now when the medium has none or holds garbage.
func LoadOrInitEpoch(ctx context.Context, store Store, now time.Time) (int64, error) {
	if store != nil {
		raw, ok, err := store.Get(ctx, EpochKey)
		if err != nil {
			return 0, fmt.Errorf("read epoch: %w", err)
		}
		if ok {
			if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil && epoch > 0 {
				return epoch, nil
			}
		}
	}

	epoch := now.UnixMilli()
	if store != nil {
		if err := store.Set(ctx, EpochKey, strconv.FormatInt(epoch, 10)); err != nil {
			return 0, fmt.Errorf("write epoch: %w", err)
		}
	}
	return epoch, nil
}
