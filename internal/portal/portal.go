package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/field"
	"github.com/san-kum/neonportal/internal/presence"
	"github.com/san-kum/neonportal/internal/rng"
	"github.com/san-kum/neonportal/internal/sim"
	"github.com/san-kum/neonportal/internal/viz"
)

const (
	ioTimeout  = time.Second
	maxFrameDt = 0.1 // seconds of camera easing per frame
)

// Sink receives each rendered frame. The frame is reused by the next one.
type Sink func(*viz.Frame) error

// Portal is one window of the experience. The host drives it by calling
// Frame once per display refresh; in multi-window mode a heartbeat
// goroutine keeps the presence registry current in the background.
//
// The frame path owns the field and the scene. The heartbeat goroutine
// touches only the registry and the pending restart slot.
type Portal struct {
	opts   Options
	logger *log.Logger
	clock  presence.Clock

	pending atomic.Int64 // restart epoch queued by the registry, 0 if none

	mu        sync.Mutex
	mounted   bool
	reduced   bool
	rect      presence.Rect
	conn      *Conn
	registry  *presence.Registry
	sim       *sim.Simulator
	scene     *viz.Scene
	lastFrame time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) (*Portal, error) {
	if opts.Clock == nil {
		opts.Clock = presence.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Layout.PixelsPerUnit <= 0 {
		opts.Layout = sim.DefaultLayout()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Portal{
		opts:    opts,
		logger:  opts.Logger,
		clock:   opts.Clock,
		reduced: opts.ReducedMotion,
		rect:    opts.Rect,
	}, nil
}

func (p *Portal) ID() string { return p.opts.ID }

// Mount reads or initializes the shared seed and epoch, seeds the field and
// the scene and, in multi-window mode, starts the heartbeat. A medium that
// cannot be opened leaves the portal in single-window mode.
func (p *Portal) Mount(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mounted {
		return dynamo.ErrAlreadyMounted
	}

	conn := p.connect(ctx)
	var store presence.Store
	if conn != nil {
		store = conn.Store
	}

	seed, epoch, err := p.bootstrap(ctx, store)
	if err != nil && store != nil {
		p.logger.Printf("portal: shared state unreadable, single-window mode: %v", err)
		p.closeConn(conn)
		conn, store = nil, nil
		seed, epoch, err = p.bootstrap(ctx, nil)
	}
	if err != nil {
		return err
	}
	if !p.opts.Fullscreen {
		// Seed and epoch are still shared, but a contained portal never
		// joins the registry.
		p.closeConn(conn)
		conn = nil
	}

	f, err := field.New(seed, p.opts.params(p.reduced))
	if err != nil {
		return err
	}

	var reg *presence.Registry
	if conn != nil {
		reg, err = presence.New(p.opts.ID, p.rect, epoch, conn.Store, conn.Bus, p.opts.Presence,
			presence.WithClock(p.clock),
			presence.WithLogger(p.logger),
			presence.WithRestartHook(p.queueRestart),
		)
		if err != nil {
			p.closeConn(conn)
			return err
		}
	}

	p.conn = conn
	p.registry = reg
	p.sim = sim.New(f, sim.NewClock(epoch, p.opts.MaxCatchUp))
	p.scene = viz.NewScene(seed, viz.NewViewCamera(p.opts.Layout.PixelsPerUnit))
	p.pending.Store(0)
	p.lastFrame = time.Time{}
	p.mounted = true

	if p.syncing() {
		p.startHeartbeat()
	}
	return nil
}

func (p *Portal) connect(ctx context.Context) *Conn {
	if p.opts.Medium == nil {
		return nil
	}
	conn, err := p.opts.Medium.Open(ctx, p.opts.ID)
	if err != nil {
		p.logger.Printf("portal: medium unavailable, single-window mode: %v", err)
		return nil
	}
	return conn
}

func (p *Portal) bootstrap(ctx context.Context, store presence.Store) (uint32, int64, error) {
	seed := p.opts.Seed
	if seed == 0 {
		var err error
		if seed, err = presence.LoadOrInitSeed(ctx, store, rng.NewSeed); err != nil {
			return 0, 0, err
		}
	}
	epoch, err := presence.LoadOrInitEpoch(ctx, store, p.clock.Now())
	if err != nil {
		return 0, 0, err
	}
	return seed, epoch, nil
}

func (p *Portal) closeConn(conn *Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		p.logger.Printf("portal: close medium: %v", err)
	}
}

// Unmount stops the heartbeat and waits for it, removes this window from
// the registry, closes the medium and drops the render buffers. It is safe
// to call more than once.
func (p *Portal) Unmount() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return nil
	}
	p.mounted = false
	p.stopHeartbeat()

	if p.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		p.registry.Leave(ctx)
		cancel()
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.scene.Release()

	p.conn = nil
	p.registry = nil
	p.sim = nil
	p.scene = nil
	p.pending.Store(0)
	return err
}

func (p *Portal) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

// syncing reports whether the portal takes part in multi-window mode.
// Callers hold mu.
func (p *Portal) syncing() bool {
	return p.registry != nil && p.opts.Fullscreen && !p.reduced
}

// Callers hold mu.
func (p *Portal) startHeartbeat() {
	if p.opts.ManualSync || p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	reg := p.registry
	go func() {
		defer close(done)
		if err := reg.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Printf("portal: heartbeat stopped: %v", err)
		}
	}()
	p.cancel, p.done = cancel, done
}

// Callers hold mu. The heartbeat goroutine never takes mu, so waiting
// here cannot deadlock.
func (p *Portal) stopHeartbeat() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
}

func (p *Portal) queueRestart(epoch int64) {
	p.pending.Store(epoch)
}

// Sync runs one presence round by hand: it applies every broadcast
// already delivered, then announces, reconciles and elects. Hosts that set
// ManualSync call it on their own schedule.
func (p *Portal) Sync(ctx context.Context) error {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return dynamo.ErrUnmounted
	}
	reg, conn, active := p.registry, p.conn, p.syncing()
	p.mu.Unlock()
	if reg == nil || !active {
		return nil
	}

	if conn.Bus != nil {
		msgs := conn.Bus.Messages()
	drain:
		for {
			select {
			case payload, ok := <-msgs:
				if !ok {
					break drain
				}
				reg.Handle(payload)
			default:
				break drain
			}
		}
	}
	reg.Heartbeat(ctx)
	return nil
}

// Frame advances the simulation to now and renders this window's view of
// it. Desynchronization is repaired here by restarting on a fresh epoch;
// it never reaches the caller.
func (p *Portal) Frame(now time.Time) (*viz.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return nil, dynamo.ErrUnmounted
	}

	if epoch := p.pending.Swap(0); epoch != 0 && epoch != p.sim.Clock().Epoch() {
		p.sim.Restart(epoch)
	}

	multi := p.syncing()
	live := []presence.WindowInfo{presence.NewWindowInfo(p.opts.ID, p.rect)}
	if multi {
		live = p.registry.ListLiveWindows()
	}
	cores := p.opts.Layout.Cores(live, multi)

	nowMs := now.UnixMilli()
	if _, err := p.sim.Advance(nowMs, cores); err != nil {
		p.recover(nowMs, cores, multi && !p.lastFrame.IsZero(), err)
	}

	cam := p.scene.Camera()
	if multi {
		bounds := presence.ComputeBounds(live)
		ox, oy := bounds.Offset(presence.NewWindowInfo(p.opts.ID, p.rect))
		cam.SetOffset(viz.View{
			FullWidth:  bounds.Width,
			FullHeight: bounds.Height,
			OffsetX:    ox,
			OffsetY:    oy,
			Width:      p.rect.Width,
			Height:     p.rect.Height,
		})
	} else {
		cam.SetSingle(p.rect.Width, p.rect.Height)
	}
	p.scene.SetCores(cores)

	var dt float64
	if !p.lastFrame.IsZero() {
		dt = now.Sub(p.lastFrame).Seconds()
		if dt < 0 {
			dt = 0
		} else if dt > maxFrameDt {
			dt = maxFrameDt
		}
	}
	p.lastFrame = now

	f := p.sim.Field()
	frame := p.scene.Render(f.Positions(), f.Colors(), dt)
	frame.Badge = p.opts.ShowBadge
	frame.Status = viz.Status{
		WindowID: p.opts.ID,
		Preset:   p.opts.Preset,
		Windows:  len(live),
		Leader:   presence.Leader(live) == p.opts.ID,
		Multi:    multi,
		Reduced:  p.reduced,
		Step:     p.sim.Clock().Step(),
		EpochAge: time.Duration(nowMs-p.sim.Clock().Epoch()) * time.Millisecond,
	}
	return frame, nil
}

// recover restarts the field on a fresh epoch. A window that was already
// running negotiates the epoch through the registry so peers restart with
// it. A window on its first frame, typically behind an old stored epoch,
// restarts locally and waits for the leader's join restart.
func (p *Portal) recover(nowMs int64, cores []dynamo.Vec3, shared bool, cause error) {
	if !errors.Is(cause, dynamo.ErrDesync) {
		p.logger.Printf("portal: %v, restarting", cause)
	}

	epoch := nowMs
	if shared {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		epoch = p.registry.RequestRestart(ctx)
		cancel()
	}
	p.sim.Restart(epoch)
	if _, err := p.sim.Advance(nowMs, cores); err != nil {
		p.sim.Restart(nowMs)
	}
}

// Resize records the window's new screen rectangle. An unmounted portal
// keeps it for the next Mount.
func (p *Portal) Resize(rect presence.Rect) error {
	if !rect.Valid() {
		return fmt.Errorf("resize %vx%v: %w", rect.Width, rect.Height, dynamo.ErrInvalidRect)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rect = rect
	if p.registry != nil {
		return p.registry.SetRect(rect)
	}
	return nil
}

func (p *Portal) Rect() presence.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rect
}

// SetReducedMotion calms the force model and drops out of multi-window
// mode. Turning it off again restores full motion and, in fullscreen
// mode, rejoins the other windows.
func (p *Portal) SetReducedMotion(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reduced == on {
		return
	}
	p.reduced = on
	if !p.mounted {
		return
	}

	if err := p.sim.Field().SetParams(p.opts.params(on)); err != nil {
		p.logger.Printf("portal: apply motion preference: %v", err)
	}
	if p.registry == nil {
		return
	}
	if on {
		p.stopHeartbeat()
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		p.registry.Leave(ctx)
		cancel()
		return
	}
	if p.syncing() {
		p.registry.Rejoin()
		p.startHeartbeat()
	}
}

func (p *Portal) ReducedMotion() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reduced
}

// Multi reports whether the portal is currently synchronized with peers.
func (p *Portal) Multi() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted && p.syncing()
}

// LiveWindows returns the windows this portal currently renders for.
func (p *Portal) LiveWindows() ([]presence.WindowInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return nil, dynamo.ErrUnmounted
	}
	if !p.syncing() {
		return []presence.WindowInfo{presence.NewWindowInfo(p.opts.ID, p.rect)}, nil
	}
	return p.registry.ListLiveWindows(), nil
}

// State reports the shared seed, the current epoch and the local step.
func (p *Portal) State() (seed uint32, epoch, step int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return 0, 0, 0, dynamo.ErrUnmounted
	}
	f, c := p.sim.Field(), p.sim.Clock()
	return f.Seed(), c.Epoch(), c.Step(), nil
}

// Positions copies the particle positions (x, y, z per particle).
func (p *Portal) Positions() ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return nil, dynamo.ErrUnmounted
	}
	pos := p.sim.Field().Positions()
	out := make([]float64, len(pos))
	copy(out, pos)
	return out, nil
}

// Run renders at fps until ctx is done, the sink fails or the portal is
// unmounted.
func (p *Portal) Run(ctx context.Context, fps int, sink Sink) error {
	if fps <= 0 {
		fps = field.StepsPerSecond
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame, err := p.Frame(p.clock.Now())
			if errors.Is(err, dynamo.ErrUnmounted) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := sink(frame); err != nil {
				return err
			}
		}
	}
}
