package presence

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/san-kum/neonportal/internal/medium"
)

func TestComputeBounds(t *testing.T) {
	tests := []struct {
		name    string
		windows []WindowInfo
		want    Bounds
	}{
		{"empty", nil, Bounds{}},
		{"single", []WindowInfo{{ID: "a", X: 10, Y: 20, Width: 300, Height: 200}}, Bounds{10, 20, 300, 200}},
		{"side by side", []WindowInfo{
			{ID: "a", X: 0, Y: 0, Width: 800, Height: 600},
			{ID: "b", X: 800, Y: 0, Width: 800, Height: 600},
		}, Bounds{0, 0, 1600, 600}},
		{"overlapping and negative", []WindowInfo{
			{ID: "a", X: -100, Y: 50, Width: 400, Height: 300},
			{ID: "b", X: 200, Y: -50, Width: 100, Height: 100},
		}, Bounds{-100, -50, 400, 400}},
		{"ignores invalid", []WindowInfo{
			{ID: "a", X: 0, Y: 0, Width: 100, Height: 100},
			{ID: "z", X: 5000, Y: 5000, Width: 0, Height: 0},
		}, Bounds{0, 0, 100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeBounds(tt.windows); got != tt.want {
				t.Errorf("ComputeBounds() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBoundsOffsetAndCenter(t *testing.T) {
	g := NewWithT(t)
	b := Bounds{OriginX: -100, OriginY: 50, Width: 1000, Height: 500}
	dx, dy := b.Offset(WindowInfo{X: 300, Y: 150})
	g.Expect(dx).To(Equal(400.0))
	g.Expect(dy).To(Equal(100.0))
	cx, cy := b.Center()
	g.Expect(cx).To(Equal(400.0))
	g.Expect(cy).To(Equal(300.0))
	g.Expect(b.Empty()).To(BeFalse())
	g.Expect(Bounds{}.Empty()).To(BeTrue())
}

func TestRectValid(t *testing.T) {
	tests := []struct {
		rect  Rect
		valid bool
	}{
		{Rect{0, 0, 1, 1}, true},
		{Rect{-5, -5, 10, 10}, true},
		{Rect{0, 0, 0, 10}, false},
		{Rect{0, 0, 10, -1}, false},
		{Rect{math.NaN(), 0, 10, 10}, false},
		{Rect{0, 0, math.Inf(1), 10}, false},
	}
	for _, tt := range tests {
		if got := tt.rect.Valid(); got != tt.valid {
			t.Errorf("%+v.Valid() = %v, want %v", tt.rect, got, tt.valid)
		}
	}
}

func TestLeaderIsSmallestID(t *testing.T) {
	g := NewWithT(t)
	windows := []WindowInfo{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	for i := 0; i < 5; i++ {
		g.Expect(Leader(windows)).To(Equal("a"))
	}
	g.Expect(Leader(nil)).To(BeEmpty())
}

func TestMessageCodec(t *testing.T) {
	g := NewWithT(t)

	data, err := InfoMessage(WindowInfo{ID: "a", Width: 1, Height: 2, TS: 3}).Encode()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(MatchJSON(`{"windowInfo":{"id":"a","x":0,"y":0,"width":1,"height":2,"ts":3}}`))

	data, err = RestartMessage(99).Encode()
	g.Expect(err).NotTo(HaveOccurred())
	msg, err := DecodeMessage(data)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(msg.RestartEpoch).To(Equal(int64(99)))
	g.Expect(msg.WindowInfo).To(BeNil())

	_, err = Message{}.Encode()
	g.Expect(err).To(MatchError(ErrMalformedMessage))

	for _, raw := range []string{`{}`, `not json`, `{"windowInfo":{"id":"a"},"restartEpoch":4}`} {
		_, err := DecodeMessage([]byte(raw))
		g.Expect(errors.Is(err, ErrMalformedMessage)).To(BeTrue(), raw)
	}
}

func TestLoadOrInitSeed(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	store := medium.NewStore()

	calls := 0
	next := func() (uint32, error) { calls++; return 1234, nil }

	seed, err := LoadOrInitSeed(ctx, store, next)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(seed).To(Equal(uint32(1234)))

	seed, err = LoadOrInitSeed(ctx, store, func() (uint32, error) { return 1, nil })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(seed).To(Equal(uint32(1234)), "stored seed wins")
	g.Expect(calls).To(Equal(1))

	g.Expect(store.Set(ctx, SeedKey, "garbage")).To(Succeed())
	seed, err = LoadOrInitSeed(ctx, store, next)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(seed).To(Equal(uint32(1234)))
	g.Expect(calls).To(Equal(2))

	seed, err = LoadOrInitSeed(ctx, nil, func() (uint32, error) { return 7, nil })
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(seed).To(Equal(uint32(7)))
}

func TestLoadOrInitEpoch(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	store := medium.NewStore()
	now := time.UnixMilli(1_700_000_000_000)

	epoch, err := LoadOrInitEpoch(ctx, store, now)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(epoch).To(Equal(now.UnixMilli()))

	epoch, err = LoadOrInitEpoch(ctx, store, now.Add(time.Hour))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(epoch).To(Equal(now.UnixMilli()))

	store.FailWith(errors.New("denied"))
	_, err = LoadOrInitEpoch(ctx, store, now)
	g.Expect(err).To(HaveOccurred())
}

func TestReadLiveWindows(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	store := medium.NewStore()
	now := time.UnixMilli(1_700_000_000_000)

	put := func(w WindowInfo) {
		data, _ := json.Marshal(w)
		g.Expect(store.Set(ctx, WindowKey(w.ID), string(data))).To(Succeed())
	}
	put(WindowInfo{ID: "b", X: 800, Width: 800, Height: 600, TS: now.UnixMilli()})
	put(WindowInfo{ID: "c", Width: 10, Height: 10, TS: now.Add(-time.Minute).UnixMilli()})
	legacy, _ := json.Marshal([]WindowInfo{
		{ID: "a", Width: 800, Height: 600, TS: now.UnixMilli()},
		{ID: "b", Width: 1, Height: 1, TS: now.Add(-time.Second).UnixMilli()},
	})
	g.Expect(store.Set(ctx, WindowsKey, string(legacy))).To(Succeed())
	g.Expect(store.Set(ctx, WindowKey("d"), "{broken")).To(Succeed())

	live, err := ReadLiveWindows(ctx, store, now, DefaultStaleAfter)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(IDs(live)).To(Equal([]string{"a", "b"}))
	g.Expect(live[1].X).To(Equal(800.0), "newest entry per id wins")

	_, ok, _ := store.Get(ctx, WindowKey("c"))
	g.Expect(ok).To(BeTrue(), "reading leaves the medium untouched")
}
