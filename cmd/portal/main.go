package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/san-kum/neonportal/internal/config"
	"github.com/san-kum/neonportal/internal/gui"
	"github.com/san-kum/neonportal/internal/portal"
	"github.com/san-kum/neonportal/internal/viz"
)

var (
	configFile string
	dataDir    string
	dbPath     string
	logFile    string

	preset        string
	density       float64
	reducedMotion bool
	seed          uint32
	windowID      string
	width         int
	height        int
	posX          int
	posY          int
	noBadge       bool
	contained     bool

	// live / gui
	pick          bool
	guiFullscreen bool
	theme         string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "portal",
		Short:        "multi-window neon particle portal",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&dataDir, "data", ".neonportal", "run archive directory")
	pf.StringVar(&dbPath, "db", config.DefaultDB, "shared database for multi-window mode")
	pf.StringVar(&logFile, "log", "", "write logs to this file")
	pf.StringVar(&preset, "preset", config.DefaultPreset, "force model preset")
	pf.Float64Var(&density, "density", config.DefaultDensity, "particle count multiplier")
	pf.BoolVar(&reducedMotion, "reduced-motion", false, "calm motion, single window")
	pf.Uint32Var(&seed, "seed", 0, "particle seed (0 shares or picks one)")

	viewFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&windowID, "id", "", "window id (default random)")
		cmd.Flags().IntVar(&width, "width", config.DefaultWidth, "window width in screen pixels")
		cmd.Flags().IntVar(&height, "height", config.DefaultHeight, "window height in screen pixels")
		cmd.Flags().IntVar(&posX, "x", 0, "window left edge in screen pixels")
		cmd.Flags().IntVar(&posY, "y", 0, "window top edge in screen pixels")
		cmd.Flags().BoolVar(&noBadge, "no-badge", false, "hide the badge")
		cmd.Flags().BoolVar(&contained, "contained", false, "never join other windows")
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "open a terminal window of the portal",
		RunE:  runLive,
	}
	viewFlags(liveCmd)
	liveCmd.Flags().BoolVar(&pick, "pick", false, "choose a preset first")
	liveCmd.Flags().StringVar(&theme, "theme", "neon", "terminal theme")

	guiCmd := &cobra.Command{
		Use:   "gui",
		Short: "open an OS window of the portal",
		RunE:  runGUI,
	}
	viewFlags(guiCmd)
	guiCmd.Flags().BoolVar(&guiFullscreen, "fullscreen", false, "cover the whole screen")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list force model presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, name := range config.ListPresets() {
				p, _ := config.GetPreset(name)
				fmt.Printf("  %-10s %5d particles  orbit %.1f  figure-eight %.1f\n", name, p.Count, p.Orbit, p.Figure8)
			}
			return nil
		},
	}

	rootCmd.AddCommand(liveCmd, guiCmd, presetsCmd)
	rootCmd.AddCommand(runCommands()...)
	rootCmd.AddCommand(mediumCommands()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig layers the config file, PORTAL_* environment variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("preset") {
		cfg.Preset = preset
		cfg.Params = nil
	}
	if flags.Changed("density") {
		cfg.Density = density
	}
	if flags.Changed("reduced-motion") {
		cfg.ReducedMotion = reducedMotion
	}
	if flags.Changed("db") {
		cfg.DB = dbPath
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("id") {
		cfg.WindowID = windowID
	}
	if flags.Changed("width") {
		cfg.Width = width
	}
	if flags.Changed("height") {
		cfg.Height = height
	}
	if flags.Changed("no-badge") {
		cfg.ShowBadge = !noBadge
	}
	if flags.Changed("contained") {
		cfg.Fullscreen = !contained
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openLogger routes logs to --log when given, otherwise to fallback.
func openLogger(fallback io.Writer) (*log.Logger, func(), error) {
	if logFile == "" {
		return log.New(fallback, "", log.LstdFlags), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "", log.LstdFlags|log.Lmicroseconds), func() { f.Close() }, nil
}

// mountPortal builds and mounts the window described by cfg at the
// position given by --x/--y.
func mountPortal(ctx context.Context, cfg *config.Config, logger *log.Logger) (*portal.Portal, error) {
	opts, err := portal.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Rect.X, opts.Rect.Y = float64(posX), float64(posY)
	opts.Logger = logger

	p, err := portal.New(opts)
	if err != nil {
		return nil, err
	}
	if err := p.Mount(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	viz.SetTheme(theme)

	if pick {
		info := make(map[string]string)
		for _, name := range config.ListPresets() {
			p, _ := config.GetPreset(name)
			info[name] = fmt.Sprintf("%d particles", p.Count)
		}
		name, err := viz.PickPreset(config.ListPresets(), info)
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}
		cfg.Preset = name
		cfg.Params = nil
	}

	// The terminal belongs to the viewer, so logs go nowhere unless --log.
	logger, closeLog, err := openLogger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := mountPortal(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer p.Unmount()

	return viz.Run(p, p.Rect())
}

func runGUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := openLogger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	p, err := mountPortal(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer p.Unmount()

	return gui.Run(p, cfg.Width, cfg.Height, guiFullscreen)
}
