package sim

import (
	"fmt"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
)

// DefaultMaxCatchUp is the most steps a window replays in one frame before
// it gives up and treats itself as desynchronized (four seconds).
const DefaultMaxCatchUp = 4 * field.StepsPerSecond

// Clock maps wall time onto the shared step timeline that starts at the
// epoch. Every window derives the same target step from the same epoch.
type Clock struct {
	epoch      int64
	step       int64
	maxCatchUp int64
}

func NewClock(epoch int64, maxCatchUp int64) *Clock {
	if maxCatchUp <= 0 {
		maxCatchUp = DefaultMaxCatchUp
	}
	return &Clock{epoch: epoch, maxCatchUp: maxCatchUp}
}

func (c *Clock) Epoch() int64 { return c.epoch }
func (c *Clock) Step() int64  { return c.step }

// Target is the step the shared timeline has reached at nowMs.
func (c *Clock) Target(nowMs int64) int64 {
	return floorDiv((nowMs-c.epoch)*field.StepsPerSecond, 1000)
}

// Due reports how many steps are owed at nowMs. A backlog beyond the
// catch-up limit, or a clock that ran backwards past the local step, is
// ErrDesync. Before the epoch has started nothing is owed.
func (c *Clock) Due(nowMs int64) (int64, error) {
	target := c.Target(nowMs)
	if target < 0 && c.step == 0 {
		return 0, nil
	}
	owed := target - c.step
	if owed < 0 || owed > c.maxCatchUp {
		return 0, fmt.Errorf("%d steps owed at step %d: %w", owed, c.step, dynamo.ErrDesync)
	}
	return owed, nil
}

func (c *Clock) Advance(n int64) { c.step += n }

func (c *Clock) Reset(epoch int64) {
	c.epoch = epoch
	c.step = 0
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
