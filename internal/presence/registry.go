package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/san-kum/neonportal/internal/dynamo"
)

const (
	DefaultHeartbeatInterval = 250 * time.Millisecond
	DefaultStaleAfter        = 1500 * time.Millisecond
	DefaultRestartCooldown   = 2 * time.Second
)

type Config struct {
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	RestartCooldown   time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: DefaultHeartbeatInterval,
		StaleAfter:        DefaultStaleAfter,
		RestartCooldown:   DefaultRestartCooldown,
	}
}

type Option func(*Registry)

func WithClock(c Clock) Option { return func(r *Registry) { r.clock = c } }

func WithLogger(l *log.Logger) Option { return func(r *Registry) { r.logger = l } }

// WithRestartHook registers fn to run whenever the shared epoch changes.
// fn runs on the goroutine that observed the change and must not block.
func WithRestartHook(fn func(epoch int64)) Option {
	return func(r *Registry) { r.onRestart = fn }
}

// Registry is one window's view of every live window of the experience.
//
// It follows an anti-entropy pattern: each heartbeat republishes the full
// self entry and re-reads the medium, and merges keep the newest timestamp
// per id. Broadcast messages only shorten the time to convergence.
type Registry struct {
	cfg       Config
	store     Store
	bus       Bus
	clock     Clock
	logger    *log.Logger
	onRestart func(int64)

	mu          sync.Mutex
	self        WindowInfo
	peers       map[string]WindowInfo
	epoch       int64
	lastCount   int
	lastRestart time.Time
	left        bool
}

// New builds a registry for the window id at rect. store and bus may be nil,
// in which case the registry only ever knows about itself through that path.
func New(id string, rect Rect, epoch int64, store Store, bus Bus, cfg Config, opts ...Option) (*Registry, error) {
	if id == "" {
		return nil, fmt.Errorf("window id is required")
	}
	if !rect.Valid() {
		return nil, fmt.Errorf("window %s: %w", id, dynamo.ErrInvalidRect)
	}
	if cfg.HeartbeatInterval <= 0 || cfg.StaleAfter <= cfg.HeartbeatInterval {
		return nil, fmt.Errorf("stale threshold must exceed heartbeat interval: %w", dynamo.ErrParameterBounds)
	}

	r := &Registry{
		cfg:       cfg,
		store:     store,
		bus:       bus,
		clock:     SystemClock{},
		logger:    log.Default(),
		self:      NewWindowInfo(id, rect),
		peers:     make(map[string]WindowInfo),
		epoch:     epoch,
		lastCount: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.self.TS = r.clock.Now().UnixMilli()
	return r, nil
}

func (r *Registry) Config() Config { return r.cfg }

func (r *Registry) Self() WindowInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self
}

// SetRect records that this window moved or resized. The change reaches
// peers with the next Announce.
func (r *Registry) SetRect(rect Rect) error {
	if !rect.Valid() {
		return dynamo.ErrInvalidRect
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ts := r.self.ID, r.self.TS
	r.self = NewWindowInfo(id, rect)
	r.self.TS = ts
	return nil
}

func (r *Registry) CurrentEpoch() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// ListLiveWindows returns self plus every peer refreshed within the
// staleness threshold, sorted by id.
func (r *Registry) ListLiveWindows() []WindowInfo {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	live := make([]WindowInfo, 0, len(r.peers)+1)
	live = append(live, r.self)
	for _, w := range r.peers {
		if w.Age(now) <= r.cfg.StaleAfter {
			live = append(live, w)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live
}

// ComputeBounds returns the shared virtual space of the current live set.
func (r *Registry) ComputeBounds() Bounds {
	return ComputeBounds(r.ListLiveWindows())
}

// Heartbeat runs one full presence round: announce, reconcile, elect.
func (r *Registry) Heartbeat(ctx context.Context) {
	r.Announce(ctx)
	r.Reconcile(ctx)
	r.Elect(ctx)
}

// Announce refreshes the self entry in the medium and broadcasts it.
func (r *Registry) Announce(ctx context.Context) {
	r.mu.Lock()
	if r.left {
		r.mu.Unlock()
		return
	}
	r.self.TS = r.clock.Now().UnixMilli()
	self := r.self
	r.mu.Unlock()

	if r.store != nil {
		data, err := json.Marshal(self)
		if err == nil {
			err = r.store.Set(ctx, WindowKey(self.ID), string(data))
		}
		if err != nil {
			r.logger.Printf("presence: write self entry: %v", err)
		}
	}
	r.publish(ctx, InfoMessage(self))
}

// Reconcile re-reads the medium, merges peers by timestamp, prunes stale
// entries locally and garbage-collects abandoned entries in the medium.
func (r *Registry) Reconcile(ctx context.Context) {
	if r.store != nil {
		snap, err := readSnapshot(ctx, r.store)
		if err != nil {
			r.logger.Printf("presence: read medium: %v", err)
			r.mu.Lock()
			clear(r.peers)
			r.mu.Unlock()
			return
		}
		for _, w := range snap.entries {
			r.merge(w)
		}
		r.collect(ctx, snap)
		r.syncEpoch(ctx)
	}
	r.prune()
}

func (r *Registry) merge(w WindowInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.ID == r.self.ID {
		return
	}
	if cur, ok := r.peers[w.ID]; ok && cur.TS >= w.TS {
		return
	}
	r.peers[w.ID] = w
}

func (r *Registry) prune() {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.peers {
		if w.Age(now) > r.cfg.StaleAfter {
			delete(r.peers, id)
		}
	}
}

// collect removes stale or malformed entries from the medium.
func (r *Registry) collect(ctx context.Context, snap *snapshot) {
	now := r.clock.Now()
	selfID := r.Self().ID

	garbage := append([]string(nil), snap.malformed...)
	for key, w := range snap.keys {
		if w.ID != selfID && w.Age(now) > r.cfg.StaleAfter {
			garbage = append(garbage, key)
		}
	}
	for _, key := range garbage {
		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.Printf("presence: delete %s: %v", key, err)
		}
	}

	if !snap.legacyPresent {
		return
	}
	kept := make([]WindowInfo, 0, len(snap.legacy))
	for _, w := range snap.legacy {
		if w.Age(now) <= r.cfg.StaleAfter {
			kept = append(kept, w)
		}
	}
	if !snap.legacyCorrupt && len(kept) == len(snap.legacy) {
		return
	}
	var err error
	if len(kept) == 0 {
		err = r.store.Delete(ctx, WindowsKey)
	} else {
		var data []byte
		if data, err = json.Marshal(kept); err == nil {
			err = r.store.Set(ctx, WindowsKey, string(data))
		}
	}
	if err != nil {
		r.logger.Printf("presence: rewrite window list: %v", err)
	}
}

// syncEpoch adopts a newer epoch found in the medium, repairing missed
// restart broadcasts.
func (r *Registry) syncEpoch(ctx context.Context) {
	raw, ok, err := r.store.Get(ctx, EpochKey)
	if err != nil || !ok {
		return
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	r.adoptEpoch(epoch)
}

// Handle applies one broadcast payload. Malformed payloads are dropped.
func (r *Registry) Handle(payload []byte) {
	msg, err := DecodeMessage(payload)
	if err != nil {
		r.logger.Printf("presence: drop message: %v", err)
		return
	}
	if msg.RestartEpoch != 0 {
		r.adoptEpoch(msg.RestartEpoch)
		return
	}

	w := *msg.WindowInfo
	if w.Valid() {
		r.merge(w)
		return
	}
	if w.ID == "" {
		return
	}
	r.mu.Lock()
	if w.ID != r.self.ID {
		delete(r.peers, w.ID)
	}
	r.mu.Unlock()
}

func (r *Registry) adoptEpoch(epoch int64) bool {
	r.mu.Lock()
	if epoch <= r.epoch {
		r.mu.Unlock()
		return false
	}
	r.epoch = epoch
	r.lastRestart = r.clock.Now()
	hook := r.onRestart
	r.mu.Unlock()

	if hook != nil {
		hook(epoch)
	}
	return true
}

// Elect checks whether a window joined since the last election and, if this
// window holds the smallest id, starts a new shared epoch. Restarts are
// rate-limited by RestartCooldown; a join seen during the cooldown stays
// pending until it elapses. It reports whether a restart was emitted.
func (r *Registry) Elect(ctx context.Context) bool {
	live := r.ListLiveWindows()
	count := len(live)
	now := r.clock.Now()

	r.mu.Lock()
	if r.left || count <= r.lastCount {
		r.lastCount = count
		r.mu.Unlock()
		return false
	}
	if Leader(live) != r.self.ID {
		r.lastCount = count
		r.mu.Unlock()
		return false
	}
	if !r.lastRestart.IsZero() && now.Sub(r.lastRestart) < r.cfg.RestartCooldown {
		r.mu.Unlock()
		return false
	}
	r.lastCount = count
	epoch := r.bumpEpochLocked(now)
	hook := r.onRestart
	r.mu.Unlock()

	r.broadcastEpoch(ctx, epoch)
	if hook != nil {
		hook(epoch)
	}
	return true
}

// RequestRestart is used after a local desynchronization. It starts a fresh
// shared epoch unless one was started within the cooldown, in which case the
// current epoch is adopted as is. The returned epoch is the one to use.
func (r *Registry) RequestRestart(ctx context.Context) int64 {
	now := r.clock.Now()

	r.mu.Lock()
	if !r.lastRestart.IsZero() && now.Sub(r.lastRestart) < r.cfg.RestartCooldown {
		epoch := r.epoch
		r.mu.Unlock()
		return epoch
	}
	epoch := r.bumpEpochLocked(now)
	r.mu.Unlock()

	r.broadcastEpoch(ctx, epoch)
	return epoch
}

func (r *Registry) bumpEpochLocked(now time.Time) int64 {
	epoch := now.UnixMilli()
	if epoch <= r.epoch {
		epoch = r.epoch + 1
	}
	r.epoch = epoch
	r.lastRestart = now
	return epoch
}

func (r *Registry) broadcastEpoch(ctx context.Context, epoch int64) {
	if r.store != nil {
		if err := r.store.Set(ctx, EpochKey, strconv.FormatInt(epoch, 10)); err != nil {
			r.logger.Printf("presence: write epoch: %v", err)
		}
	}
	r.publish(ctx, RestartMessage(epoch))
}

// Leave removes the self entry and tells peers immediately, so they need not
// wait for the staleness threshold. Later heartbeats are no-ops.
func (r *Registry) Leave(ctx context.Context) {
	r.mu.Lock()
	if r.left {
		r.mu.Unlock()
		return
	}
	r.left = true
	id := r.self.ID
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, WindowKey(id)); err != nil {
			r.logger.Printf("presence: delete self entry: %v", err)
		}
	}
	r.publish(ctx, InfoMessage(WindowInfo{ID: id, TS: r.clock.Now().UnixMilli()}))
}

// Rejoin reverses Leave so heartbeats announce the window again.
func (r *Registry) Rejoin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = false
}

func (r *Registry) publish(ctx context.Context, msg Message) {
	if r.bus == nil {
		return
	}
	data, err := msg.Encode()
	if err == nil {
		err = r.bus.Publish(ctx, data)
	}
	if err != nil {
		r.logger.Printf("presence: broadcast: %v", err)
	}
}

// Run drives heartbeats and incoming broadcasts until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	r.Heartbeat(ctx)

	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var msgs <-chan []byte
	if r.bus != nil {
		msgs = r.bus.Messages()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Heartbeat(ctx)
		case payload, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			r.Handle(payload)
		}
	}
}
