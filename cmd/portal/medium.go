package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/san-kum/neonportal/internal/export"
	"github.com/san-kum/neonportal/internal/medium/sqlite"
	"github.com/san-kum/neonportal/internal/portal"
	"github.com/san-kum/neonportal/internal/presence"
	"github.com/san-kum/neonportal/internal/sim"
	"github.com/san-kum/neonportal/internal/viz"
)

var (
	snapWindows int
	snapWindow  int
	snapAfter   time.Duration
	snapCols    int
	snapOut     string
)

func mediumCommands() []*cobra.Command {
	windowsCmd := &cobra.Command{
		Use:   "windows",
		Short: "list the live windows in the shared database",
		RunE:  listWindows,
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "start a fresh shared epoch for every window",
		RunE:  restartEpoch,
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "render one window of a simulated layout to SVG",
		RunE:  snapshot,
	}
	snapshotCmd.Flags().IntVar(&snapWindows, "windows", 2, "synthetic side-by-side windows")
	snapshotCmd.Flags().IntVar(&snapWindow, "window", 0, "window to render")
	snapshotCmd.Flags().DurationVar(&snapAfter, "after", 5*time.Second, "simulated time before the capture")
	snapshotCmd.Flags().IntVar(&snapCols, "cols", 0, "also draw through a braille canvas this many cells wide")
	snapshotCmd.Flags().StringVarP(&snapOut, "out", "o", "portal.svg", "output file")

	return []*cobra.Command{windowsCmd, restartCmd, snapshotCmd}
}

func openShared(cmd *cobra.Command) (*sqlite.DB, presence.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, presence.Config{}, err
	}
	db, err := sqlite.Open(cfg.DB)
	if err != nil {
		return nil, presence.Config{}, err
	}
	return db, cfg.PresenceConfig(), nil
}

func listWindows(cmd *cobra.Command, args []string) error {
	db, pcfg, err := openShared(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	now := time.Now()
	live, err := presence.ReadLiveWindows(ctx, db, now, pcfg.StaleAfter)
	if err != nil {
		return err
	}
	seedRaw, _, err := db.Get(ctx, presence.SeedKey)
	if err != nil {
		return err
	}
	epochRaw, _, err := db.Get(ctx, presence.EpochKey)
	if err != nil {
		return err
	}

	fmt.Printf("seed %s, epoch %s\n", orDash(seedRaw), orDash(epochRaw))
	if len(live) == 0 {
		fmt.Println("no live windows")
		return nil
	}

	leader := presence.Leader(live)
	bounds := presence.ComputeBounds(live)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tX\tY\tWIDTH\tHEIGHT\tAGE\tLEADER")
	for _, win := range live {
		mark := ""
		if win.ID == leader {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.0f\t%.0f\t%v\t%s\n",
			win.ID, win.X, win.Y, win.Width, win.Height, win.Age(now).Round(time.Millisecond), mark)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("bounds %.0fx%.0f at (%.0f, %.0f)\n", bounds.Width, bounds.Height, bounds.OriginX, bounds.OriginY)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func restartEpoch(cmd *cobra.Command, args []string) error {
	db, _, err := openShared(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	epoch := time.Now().UnixMilli()
	if raw, ok, err := db.Get(ctx, presence.EpochKey); err != nil {
		return err
	} else if ok {
		if cur, err := strconv.ParseInt(raw, 10, 64); err == nil && cur >= epoch {
			epoch = cur + 1
		}
	}
	if err := db.Set(ctx, presence.EpochKey, strconv.FormatInt(epoch, 10)); err != nil {
		return err
	}

	bus, err := db.NewBus("cli-" + uuid.NewString()[:8])
	if err != nil {
		return err
	}
	defer bus.Close()
	payload, err := presence.RestartMessage(epoch).Encode()
	if err != nil {
		return err
	}
	if err := bus.Publish(ctx, payload); err != nil {
		return err
	}

	fmt.Printf("restarted at epoch %d\n", epoch)
	return nil
}

// snapshot mounts a row of portals on an in-process medium, replays them
// on a manual clock and writes one window's final frame.
func snapshot(cmd *cobra.Command, args []string) error {
	if snapWindows < 1 || snapWindow < 0 || snapWindow >= snapWindows {
		return fmt.Errorf("window %d of %d: out of range", snapWindow, snapWindows)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	cfg.Fullscreen = true

	ctx := cmd.Context()
	clock := presence.NewManualClock(time.Now())
	mem := portal.NewMemory()
	quiet := log.New(io.Discard, "", 0)

	rects := sim.Arrange(snapWindows, float64(cfg.Width), float64(cfg.Height), 0)
	portals := make([]*portal.Portal, len(rects))
	for i, r := range rects {
		opts, err := portal.FromConfig(cfg)
		if err != nil {
			return err
		}
		opts.ID = r.ID
		opts.Rect = r.Rect()
		opts.Medium = mem
		opts.ManualSync = true
		opts.Clock = clock
		opts.Logger = quiet

		p, err := portal.New(opts)
		if err != nil {
			return err
		}
		if err := p.Mount(ctx); err != nil {
			return err
		}
		defer p.Unmount()
		portals[i] = p
	}

	syncAll := func(ctx context.Context) error {
		for _, p := range portals {
			if err := p.Sync(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	// Two rounds so every window has seen every other.
	if err := syncAll(ctx); err != nil {
		return err
	}
	if err := syncAll(ctx); err != nil {
		return err
	}

	const frameStep = 50 * time.Millisecond
	target := portals[snapWindow]
	var frame *viz.Frame
	for elapsed := time.Duration(0); ; elapsed += frameStep {
		if elapsed%cfg.PresenceConfig().HeartbeatInterval < frameStep {
			if err := syncAll(ctx); err != nil {
				return err
			}
		}
		if frame, err = target.Frame(clock.Now()); err != nil {
			return err
		}
		if elapsed >= snapAfter {
			break
		}
		clock.Advance(frameStep)
	}

	svg := export.FrameToSVG(frame)
	if snapCols > 0 {
		rows := int(float64(snapCols) * frame.Height / frame.Width / 2)
		if rows < 1 {
			rows = 1
		}
		canvas := viz.NewCanvas(snapCols, rows)
		canvas.DrawFrame(frame)
		svg = export.CanvasToSVG(canvas, 4)
	}
	if err := os.WriteFile(snapOut, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s: window %s of %d, step %d, %d particles in view\n",
		snapOut, target.ID(), snapWindows, frame.Status.Step, len(frame.Points))
	return nil
}
