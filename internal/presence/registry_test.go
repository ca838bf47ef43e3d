package presence

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/neonportal/internal/medium"
)

type window struct {
	reg      *Registry
	ep       *medium.Endpoint
	restarts []int64
}

// drain delivers every buffered broadcast to the window's registry.
func (w *window) drain() {
	for {
		select {
		case msg, ok := <-w.ep.Messages():
			if !ok {
				return
			}
			w.reg.Handle(msg)
		default:
			return
		}
	}
}

var _ = Describe("Registry", func() {
	var (
		ctx   context.Context
		clock *ManualClock
		store *medium.Store
		hub   *medium.Hub
		start time.Time
		quiet *log.Logger
	)

	open := func(id string, rect Rect) *window {
		w := &window{ep: hub.Join()}
		reg, err := New(id, rect, start.UnixMilli(), store, w.ep, DefaultConfig(),
			WithClock(clock),
			WithLogger(quiet),
			WithRestartHook(func(epoch int64) { w.restarts = append(w.restarts, epoch) }),
		)
		Expect(err).NotTo(HaveOccurred())
		w.reg = reg
		return w
	}

	BeforeEach(func() {
		ctx = context.Background()
		start = time.UnixMilli(1_700_000_000_000)
		clock = NewManualClock(start)
		store = medium.NewStore()
		hub = medium.NewHub(64)
		quiet = log.New(io.Discard, "", 0)
	})

	It("rejects an invalid rect", func() {
		_, err := New("a", Rect{Width: 0, Height: 10}, 1, store, nil, DefaultConfig())
		Expect(err).To(HaveOccurred())
	})

	It("lists only itself before any heartbeat", func() {
		a := open("a", Rect{0, 0, 800, 600})
		Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a"}))
	})

	Context("two windows a and b", func() {
		var a, b *window

		BeforeEach(func() {
			a = open("a", Rect{0, 0, 800, 600})
			a.reg.Heartbeat(ctx)

			clock.Advance(50 * time.Millisecond)
			b = open("b", Rect{800, 0, 800, 600})
			b.reg.Heartbeat(ctx)
			a.drain()

			clock.Advance(DefaultHeartbeatInterval)
			a.reg.Heartbeat(ctx)
			b.drain()
			b.reg.Heartbeat(ctx)
			a.drain()
		})

		It("converges on {a,b} within one heartbeat interval", func() {
			Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a", "b"}))
			Expect(IDs(b.reg.ListLiveWindows())).To(Equal([]string{"a", "b"}))
		})

		It("computes the same shared bounds in both windows", func() {
			want := Bounds{OriginX: 0, OriginY: 0, Width: 1600, Height: 600}
			Expect(a.reg.ComputeBounds()).To(Equal(want))
			Expect(b.reg.ComputeBounds()).To(Equal(want))
		})

		It("lets the smallest id restart the epoch exactly once", func() {
			Expect(a.restarts).To(HaveLen(1))
			Expect(b.restarts).To(Equal(a.restarts))
			Expect(a.reg.CurrentEpoch()).To(Equal(b.reg.CurrentEpoch()))

			raw, ok, err := store.Get(ctx, EpochKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(raw).To(Equal(jsonInt(a.reg.CurrentEpoch())))
		})

		It("never restarts again while the set is stable", func() {
			for i := 0; i < 20; i++ {
				clock.Advance(DefaultHeartbeatInterval)
				a.reg.Heartbeat(ctx)
				b.reg.Heartbeat(ctx)
				a.drain()
				b.drain()
				Expect(a.reg.Elect(ctx)).To(BeFalse())
				Expect(Leader(a.reg.ListLiveWindows())).To(Equal("a"))
			}
			Expect(a.restarts).To(HaveLen(1))
		})

		It("forgets b after the staleness threshold when b vanishes", func() {
			Expect(b.ep.Close()).To(Succeed())

			clock.Advance(DefaultStaleAfter / 2)
			a.reg.Heartbeat(ctx)
			Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a", "b"}))

			clock.Advance(DefaultStaleAfter)
			a.reg.Heartbeat(ctx)
			Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a"}))

			_, ok, err := store.Get(ctx, WindowKey("b"))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse(), "stale entry should be collected from the medium")
		})

		It("drops b immediately when b leaves", func() {
			b.reg.Leave(ctx)
			a.drain()
			Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a"}))

			_, ok, _ := store.Get(ctx, WindowKey("b"))
			Expect(ok).To(BeFalse())
		})

		It("keeps a pending join until the restart cooldown elapses", func() {
			c := open("c", Rect{0, 600, 800, 600})
			c.reg.Heartbeat(ctx)
			a.drain()

			a.reg.Heartbeat(ctx)
			Expect(a.restarts).To(HaveLen(1), "join inside the cooldown must wait")

			for i := 0; i < 10; i++ {
				clock.Advance(DefaultHeartbeatInterval)
				b.reg.Heartbeat(ctx)
				c.reg.Heartbeat(ctx)
				a.drain()
				a.reg.Heartbeat(ctx)
			}
			Expect(a.restarts).To(HaveLen(2))
		})
	})

	It("reads entries from the legacy list layout and collects stale ones", func() {
		now := clock.Now().UnixMilli()
		list := []WindowInfo{
			{ID: "old", X: 0, Y: 0, Width: 100, Height: 100, TS: now - 10_000},
			{ID: "peer", X: 100, Y: 0, Width: 100, Height: 100, TS: now},
		}
		data, _ := json.Marshal(list)
		Expect(store.Set(ctx, WindowsKey, string(data))).To(Succeed())

		a := open("a", Rect{0, 0, 100, 100})
		a.reg.Reconcile(ctx)
		Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a", "peer"}))

		raw, ok, _ := store.Get(ctx, WindowsKey)
		Expect(ok).To(BeTrue())
		var kept []WindowInfo
		Expect(json.Unmarshal([]byte(raw), &kept)).To(Succeed())
		Expect(IDs(kept)).To(Equal([]string{"peer"}))
	})

	It("drops malformed entries instead of failing", func() {
		Expect(store.Set(ctx, WindowKey("x"), "{not json")).To(Succeed())
		Expect(store.Set(ctx, WindowKey("y"), `{"id":"y","width":0,"height":0,"ts":1}`)).To(Succeed())
		Expect(store.Set(ctx, WindowsKey, "[garbage")).To(Succeed())

		a := open("a", Rect{0, 0, 100, 100})
		a.reg.Reconcile(ctx)
		a.reg.Handle([]byte("nonsense"))

		Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a"}))
		left, err := store.Scan(ctx, KeyPrefix)
		Expect(err).NotTo(HaveOccurred())
		Expect(left).To(BeEmpty())
	})

	It("degrades to only self when the medium cannot be read", func() {
		a := open("a", Rect{0, 0, 100, 100})
		b := open("b", Rect{100, 0, 100, 100})
		b.reg.Heartbeat(ctx)
		a.reg.Reconcile(ctx)
		Expect(a.reg.ListLiveWindows()).To(HaveLen(2))

		store.FailWith(errors.New("quota exceeded"))
		a.reg.Reconcile(ctx)
		Expect(IDs(a.reg.ListLiveWindows())).To(Equal([]string{"a"}))
	})

	It("ignores older restart epochs", func() {
		a := open("a", Rect{0, 0, 100, 100})
		current := a.reg.CurrentEpoch()
		a.reg.Handle(mustEncode(RestartMessage(current - 5)))
		Expect(a.reg.CurrentEpoch()).To(Equal(current))
		a.reg.Handle(mustEncode(RestartMessage(current + 5)))
		Expect(a.reg.CurrentEpoch()).To(Equal(current + 5))
		Expect(a.restarts).To(Equal([]int64{current + 5}))
	})

	It("adopts a newer epoch found in the medium", func() {
		a := open("a", Rect{0, 0, 100, 100})
		next := a.reg.CurrentEpoch() + 1000
		Expect(store.Set(ctx, EpochKey, jsonInt(next))).To(Succeed())
		a.reg.Reconcile(ctx)
		Expect(a.reg.CurrentEpoch()).To(Equal(next))
	})

	It("rate-limits restarts requested after a desync", func() {
		a := open("a", Rect{0, 0, 100, 100})
		clock.Advance(time.Second)
		first := a.reg.RequestRestart(ctx)
		Expect(first).To(Equal(clock.Now().UnixMilli()))

		clock.Advance(100 * time.Millisecond)
		Expect(a.reg.RequestRestart(ctx)).To(Equal(first))

		clock.Advance(DefaultRestartCooldown)
		Expect(a.reg.RequestRestart(ctx)).To(BeNumerically(">", first))
	})
})

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func mustEncode(m Message) []byte {
	data, err := m.Encode()
	Expect(err).NotTo(HaveOccurred())
	return data
}
