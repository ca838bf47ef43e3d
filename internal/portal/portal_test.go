package portal

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"path/filepath"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/neonportal/internal/config"
	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/medium/sqlite"
	"github.com/san-kum/neonportal/internal/presence"
	"github.com/san-kum/neonportal/internal/viz"
)

var _ = Describe("Portal", func() {
	var (
		ctx     context.Context
		clock   *presence.ManualClock
		mem     *Memory
		quiet   *log.Logger
		mounted []*Portal
	)

	options := func(id string, rect presence.Rect) Options {
		opts := DefaultOptions()
		opts.ID = id
		opts.Rect = rect
		opts.Params.Count = 200
		opts.Medium = mem
		opts.ManualSync = true
		opts.Clock = clock
		opts.Logger = quiet
		return opts
	}

	mount := func(opts Options) *Portal {
		p, err := New(opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Mount(ctx)).To(Succeed())
		mounted = append(mounted, p)
		return p
	}

	frame := func(p *Portal) *viz.Frame {
		f, err := p.Frame(clock.Now())
		Expect(err).NotTo(HaveOccurred())
		return f
	}

	ids := func(p *Portal) []string {
		live, err := p.LiveWindows()
		Expect(err).NotTo(HaveOccurred())
		return presence.IDs(live)
	}

	BeforeEach(func() {
		ctx = context.Background()
		clock = presence.NewManualClock(time.UnixMilli(1_700_000_000_000))
		mem = NewMemory()
		quiet = log.New(io.Discard, "", 0)
		mounted = nil
	})

	AfterEach(func() {
		for _, p := range mounted {
			Expect(p.Unmount()).To(Succeed())
		}
		Expect(mem.Hub.Size()).To(BeZero())
	})

	It("rejects an empty rect", func() {
		_, err := New(options("a", presence.Rect{}))
		Expect(errors.Is(err, dynamo.ErrInvalidRect)).To(BeTrue())
	})

	Describe("lifecycle", func() {
		It("renders a single core without a medium", func() {
			opts := options("solo", presence.Rect{Width: 800, Height: 600})
			opts.Medium = nil
			p := mount(opts)

			Expect(p.Multi()).To(BeFalse())
			f := frame(p)
			Expect(f.Cores).To(HaveLen(1))
			Expect(f.Status.Windows).To(Equal(1))
			Expect(f.Status.Leader).To(BeTrue())
			Expect(f.Badge).To(BeTrue())
			Expect(f.Width).To(Equal(800.0))
		})

		It("refuses a second mount", func() {
			p := mount(options("a", presence.Rect{Width: 800, Height: 600}))
			Expect(errors.Is(p.Mount(ctx), dynamo.ErrAlreadyMounted)).To(BeTrue())
		})

		It("stops rendering after unmount and tolerates repeats", func() {
			p, err := New(options("a", presence.Rect{Width: 800, Height: 600}))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mount(ctx)).To(Succeed())

			Expect(p.Unmount()).To(Succeed())
			Expect(p.Unmount()).To(Succeed())

			_, err = p.Frame(clock.Now())
			Expect(errors.Is(err, dynamo.ErrUnmounted)).To(BeTrue())
			Expect(errors.Is(p.Sync(ctx), dynamo.ErrUnmounted)).To(BeTrue())
			_, err = p.Positions()
			Expect(errors.Is(err, dynamo.ErrUnmounted)).To(BeTrue())
		})

		It("leaks no bus endpoints across mount cycles", func() {
			p, err := New(options("a", presence.Rect{Width: 800, Height: 600}))
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 3; i++ {
				Expect(p.Mount(ctx)).To(Succeed())
				Expect(mem.Hub.Size()).To(Equal(1))
				frame(p)
				Expect(p.Unmount()).To(Succeed())
				Expect(mem.Hub.Size()).To(BeZero())
			}
		})

		It("removes its entry from the medium on unmount", func() {
			p := mount(options("a", presence.Rect{Width: 800, Height: 600}))
			Expect(p.Sync(ctx)).To(Succeed())
			_, ok, _ := mem.Store.Get(ctx, presence.WindowKey("a"))
			Expect(ok).To(BeTrue())

			Expect(p.Unmount()).To(Succeed())
			_, ok, _ = mem.Store.Get(ctx, presence.WindowKey("a"))
			Expect(ok).To(BeFalse())
		})

		It("restarts from the seeded state after a long stall", func() {
			opts := options("a", presence.Rect{Width: 800, Height: 600})
			opts.Seed = 42
			p := mount(opts)
			opts.ID = "reference"
			opts.Medium = nil
			fresh := mount(opts)
			initial, err := fresh.Positions()
			Expect(err).NotTo(HaveOccurred())

			frame(p)
			clock.Advance(30 * time.Second)
			frame(p)

			_, epoch, step, err := p.State()
			Expect(err).NotTo(HaveOccurred())
			Expect(epoch).To(Equal(clock.Now().UnixMilli()))
			Expect(step).To(BeZero())

			pos, err := p.Positions()
			Expect(err).NotTo(HaveOccurred())
			Expect(pos).To(Equal(initial))

			raw, ok, _ := mem.Store.Get(ctx, presence.EpochKey)
			Expect(ok).To(BeTrue())
			Expect(raw).To(Equal(strconv.FormatInt(epoch, 10)))
		})

		It("falls back to a single window when the medium cannot open", func() {
			opts := options("a", presence.Rect{Width: 800, Height: 600})
			opts.Medium = SQLite{}
			p := mount(opts)

			Expect(p.Multi()).To(BeFalse())
			Expect(frame(p).Cores).To(HaveLen(1))
		})

		It("falls back to a single window when the medium fails reads", func() {
			mem.Store.FailWith(errors.New("quota exceeded"))
			p := mount(options("a", presence.Rect{Width: 800, Height: 600}))

			Expect(p.Multi()).To(BeFalse())
			Expect(mem.Hub.Size()).To(BeZero())
			Expect(frame(p).Status.Windows).To(Equal(1))
			mem.Store.FailWith(nil)
		})

		It("stays single-window when not fullscreen", func() {
			opts := options("a", presence.Rect{Width: 400, Height: 300})
			opts.Fullscreen = false
			p := mount(opts)

			Expect(p.Multi()).To(BeFalse())
			Expect(mem.Hub.Size()).To(BeZero())
			f := frame(p)
			Expect(f.Width).To(Equal(400.0))
			Expect(f.Status.Multi).To(BeFalse())
		})

		It("streams frames to a sink until it fails", func() {
			opts := options("a", presence.Rect{Width: 320, Height: 240})
			opts.Clock = presence.SystemClock{}
			p := mount(opts)

			stop := errors.New("enough")
			n := 0
			err := p.Run(ctx, 120, func(f *viz.Frame) error {
				n++
				if n == 3 {
					return stop
				}
				return nil
			})
			Expect(err).To(MatchError(stop))
			Expect(n).To(Equal(3))
		})
	})

	Describe("resize", func() {
		It("rejects an empty rect", func() {
			p := mount(options("a", presence.Rect{Width: 800, Height: 600}))
			Expect(errors.Is(p.Resize(presence.Rect{Width: -1, Height: 5}), dynamo.ErrInvalidRect)).To(BeTrue())
			Expect(p.Rect().Width).To(Equal(800.0))
		})

		It("propagates the new rect to peers", func() {
			a := mount(options("a", presence.Rect{Width: 800, Height: 600}))
			b := mount(options("b", presence.Rect{X: 800, Width: 800, Height: 600}))
			Expect(a.Sync(ctx)).To(Succeed())
			Expect(b.Sync(ctx)).To(Succeed())

			Expect(b.Resize(presence.Rect{X: 900, Y: 100, Width: 640, Height: 480})).To(Succeed())
			clock.Advance(presence.DefaultHeartbeatInterval)
			Expect(b.Sync(ctx)).To(Succeed())
			Expect(a.Sync(ctx)).To(Succeed())

			live, err := a.LiveWindows()
			Expect(err).NotTo(HaveOccurred())
			Expect(live).To(HaveLen(2))
			Expect(live[1].Rect()).To(Equal(presence.Rect{X: 900, Y: 100, Width: 640, Height: 480}))
		})

		It("keeps a rect set while unmounted for the next mount", func() {
			opts := options("a", presence.Rect{Width: 800, Height: 600})
			opts.Medium = nil
			p, err := New(opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Resize(presence.Rect{Width: 200, Height: 100})).To(Succeed())

			Expect(p.Mount(ctx)).To(Succeed())
			mounted = append(mounted, p)
			Expect(frame(p).Width).To(Equal(200.0))
		})
	})

	Describe("two windows a and b", func() {
		var a, b *Portal

		BeforeEach(func() {
			a = mount(options("a", presence.Rect{X: 0, Y: 0, Width: 800, Height: 600}))
			Expect(a.Sync(ctx)).To(Succeed())

			clock.Advance(50 * time.Millisecond)
			b = mount(options("b", presence.Rect{X: 800, Y: 0, Width: 800, Height: 600}))
			Expect(b.Sync(ctx)).To(Succeed())

			clock.Advance(presence.DefaultHeartbeatInterval)
			Expect(a.Sync(ctx)).To(Succeed())
			Expect(b.Sync(ctx)).To(Succeed())
		})

		It("share a seed and converge on {a, b}", func() {
			Expect(ids(a)).To(Equal([]string{"a", "b"}))
			Expect(ids(b)).To(Equal([]string{"a", "b"}))

			seedA, _, _, _ := a.State()
			seedB, _, _, _ := b.State()
			Expect(seedA).To(Equal(seedB))
		})

		It("place each window's core at its own center", func() {
			fa, fb := frame(a), frame(b)
			Expect(fa.Cores).To(HaveLen(2))
			Expect(fb.Cores).To(HaveLen(2))
			Expect(fa.Status.Multi).To(BeTrue())
			Expect(fa.Status.Leader).To(BeTrue())
			Expect(fb.Status.Leader).To(BeFalse())

			Expect(fa.Cores[0].X).To(BeNumerically("~", 400, 1e-6))
			Expect(fa.Cores[0].Y).To(BeNumerically("~", 300, 1e-6))
			Expect(fb.Cores[1].X).To(BeNumerically("~", 400, 1e-6))
			Expect(fb.Cores[1].Y).To(BeNumerically("~", 300, 1e-6))

			// b's core sits one window width to the right of a's view.
			Expect(fa.Cores[1].X).To(BeNumerically("~", 1200, 1e-6))
		})

		It("restart together when b joins and replay one trajectory", func() {
			frame(a)
			frame(b)
			_, epochA, _, _ := a.State()
			_, epochB, _, _ := b.State()
			Expect(epochA).To(Equal(epochB))
			Expect(epochA).To(Equal(clock.Now().UnixMilli()))

			clock.Advance(500 * time.Millisecond)
			frame(a)
			frame(b)

			_, _, step, _ := a.State()
			Expect(step).To(Equal(int64(30)))
			pa, _ := a.Positions()
			pb, _ := b.Positions()
			for i := range pa {
				Expect(math.Float64bits(pa[i])).To(Equal(math.Float64bits(pb[i])))
			}
		})

		It("shrink back to {a} once b goes silent", func() {
			clock.Advance(presence.DefaultStaleAfter + presence.DefaultHeartbeatInterval)
			Expect(a.Sync(ctx)).To(Succeed())

			Expect(ids(a)).To(Equal([]string{"a"}))
			f := frame(a)
			Expect(f.Cores).To(HaveLen(1))
			Expect(f.Status.Windows).To(Equal(1))
		})

		It("drop b as soon as it unmounts", func() {
			Expect(b.Unmount()).To(Succeed())
			Expect(a.Sync(ctx)).To(Succeed())
			Expect(ids(a)).To(Equal([]string{"a"}))
		})

		It("leave the others when reduced motion turns on and rejoin after", func() {
			b.SetReducedMotion(true)
			Expect(b.ReducedMotion()).To(BeTrue())
			Expect(b.Multi()).To(BeFalse())

			Expect(a.Sync(ctx)).To(Succeed())
			Expect(ids(a)).To(Equal([]string{"a"}))

			f := frame(b)
			Expect(f.Status.Reduced).To(BeTrue())
			Expect(f.Cores).To(HaveLen(1))

			b.SetReducedMotion(false)
			Expect(b.Multi()).To(BeTrue())
			clock.Advance(presence.DefaultHeartbeatInterval)
			Expect(b.Sync(ctx)).To(Succeed())
			Expect(a.Sync(ctx)).To(Succeed())
			Expect(ids(a)).To(Equal([]string{"a", "b"}))
		})
	})

	It("restarts every window once when a late window joins", func() {
		a := mount(options("a", presence.Rect{Width: 800, Height: 600}))
		frame(a)
		Expect(a.Sync(ctx)).To(Succeed())
		for i := 0; i < 40; i++ {
			clock.Advance(presence.DefaultHeartbeatInterval)
			Expect(a.Sync(ctx)).To(Succeed())
			frame(a)
		}
		_, stored, _, _ := a.State()

		// b mounts on an epoch ten seconds old. Its first frame catches up
		// locally without touching the shared epoch.
		b := mount(options("b", presence.Rect{X: 800, Width: 800, Height: 600}))
		frame(b)
		_, epochB, stepB, _ := b.State()
		Expect(epochB).To(Equal(clock.Now().UnixMilli()))
		Expect(stepB).To(BeZero())
		raw, _, _ := mem.Store.Get(ctx, presence.EpochKey)
		Expect(raw).To(Equal(strconv.FormatInt(stored, 10)))

		seen := []int64{stored}
		for i := 1; i <= 80; i++ {
			clock.Advance(50 * time.Millisecond)
			if i%5 == 0 {
				Expect(b.Sync(ctx)).To(Succeed())
				Expect(a.Sync(ctx)).To(Succeed())
			}
			frame(a)
			frame(b)
			if _, epoch, _, _ := a.State(); epoch != seen[len(seen)-1] {
				seen = append(seen, epoch)
			}
		}

		Expect(seen).To(HaveLen(2))
		_, epochA, stepA, _ := a.State()
		_, epochB, stepB, _ = b.State()
		Expect(epochB).To(Equal(epochA))
		Expect(stepB).To(Equal(stepA))
	})

	It("rejects a core cap beyond the drawable glow slots", func() {
		opts := options("a", presence.Rect{Width: 800, Height: 600})
		opts.Layout.MaxCores = viz.MaxCores + 2
		_, err := New(opts)
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})

	It("draws every simulated core when more windows than slots are live", func() {
		var portals []*Portal
		for i := 0; i < viz.MaxCores+2; i++ {
			id := string(rune('a' + i))
			portals = append(portals, mount(options(id, presence.Rect{X: float64(i) * 800, Width: 800, Height: 600})))
		}
		for round := 0; round < 2; round++ {
			for _, p := range portals {
				Expect(p.Sync(ctx)).To(Succeed())
			}
		}

		live, err := portals[0].LiveWindows()
		Expect(err).NotTo(HaveOccurred())
		Expect(live).To(HaveLen(viz.MaxCores + 2))
		f := frame(portals[0])
		Expect(f.Status.Windows).To(Equal(viz.MaxCores + 2))
		Expect(f.Cores).To(HaveLen(viz.MaxCores))
	})

	It("synchronizes through a SQLite file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "portal.db")
		medium := SQLite{Path: path, BusOptions: []sqlite.BusOption{sqlite.WithLogger(quiet)}}

		oa := options("a", presence.Rect{Width: 800, Height: 600})
		oa.Medium = medium
		ob := options("b", presence.Rect{X: 800, Width: 800, Height: 600})
		ob.Medium = medium

		a := mount(oa)
		b := mount(ob)
		Expect(a.Sync(ctx)).To(Succeed())
		Expect(b.Sync(ctx)).To(Succeed())
		Expect(a.Sync(ctx)).To(Succeed())

		Expect(ids(a)).To(Equal([]string{"a", "b"}))
		Expect(ids(b)).To(Equal([]string{"a", "b"}))
		Expect(a.Multi()).To(BeTrue())
	})

	It("builds options from a config", func() {
		cfg := config.DefaultConfig()
		cfg.WindowID = "w1"
		cfg.Preset = "galaxy"
		cfg.Density = 0.5
		cfg.DB = ""

		opts, err := FromConfig(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(opts.ID).To(Equal("w1"))
		Expect(opts.Medium).To(BeNil())
		preset, _ := config.GetPreset("galaxy")
		Expect(opts.Params.Count).To(Equal(preset.Count / 2))

		cfg.DB = "shared.db"
		opts, err = FromConfig(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(opts.Medium).To(Equal(SQLite{Path: "shared.db"}))
	})
})
