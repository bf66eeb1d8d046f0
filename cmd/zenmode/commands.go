package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/zenmode/internal/config"
	"github.com/eliteGoblin/zenmode/internal/control"
	"github.com/eliteGoblin/zenmode/internal/daemon"
	"github.com/eliteGoblin/zenmode/internal/domain"
	"github.com/eliteGoblin/zenmode/internal/infra"
	"github.com/eliteGoblin/zenmode/internal/state"
	"github.com/eliteGoblin/zenmode/internal/usecase"
)

const stopTimeout = 10 * time.Second

// newShared builds the shared state from the loaded settings.
func newShared() (*state.Shared, error) {
	schedule, err := settings.BuildSchedule()
	if err != nil {
		return nil, err
	}
	return state.New(schedule, settings.BuildBlocklist()), nil
}

// watchConfig pushes every valid config file change to apply. No-op without a file.
func watchConfig(logger *zap.Logger, apply func(domain.Schedule, domain.Blocklist)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	config.Watch(v, logger, func(s *config.Settings) {
		schedule, err := s.BuildSchedule()
		if err != nil {
			return
		}
		apply(schedule, s.BuildBlocklist())
	})
}

func runForeground(cmd *cobra.Command, args []string) error {
	logger := config.NewConsoleLogger(settings)
	defer func() { _ = logger.Sync() }()

	shared, err := newShared()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	clock := infra.RealClock{}
	enforcer := usecase.NewEnforcer(pm, clock, logger)
	loopConfig := daemon.LoopConfig{PollInterval: settings.PollInterval}

	ctrl := control.NewController(shared, func(sh *state.Shared) *daemon.Loop {
		return daemon.NewLoop(loopConfig, sh, enforcer, clock, logger)
	}, clock, logger)
	defer ctrl.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchConfig(logger, ctrl.Reload)

	if !paused {
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
	}

	console := control.NewConsole(ctrl, os.Stdin, os.Stdout)
	if err := console.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	execMode := infra.DetectExecMode()
	fmt.Printf("Execution mode: %s\n", execMode.Mode)
	if !execMode.IsRoot {
		fmt.Println("Running as user - only your own processes can be killed")
	}

	pm := infra.NewProcessManager()
	registry, err := infra.OpenRegistry(dataDir(), pm)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	alive, _ := registry.IsAlive()
	entry, _ := registry.GetAll()
	registry.Close()
	if alive && entry != nil {
		fmt.Printf("zenmode is already running (pid %d)\n", entry.PID)
		return nil
	}

	pid, err := daemon.StartDaemon(configPath(), flagEnv(cmd))
	if err != nil {
		return err
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	schedule, _ := settings.BuildSchedule()
	fmt.Println("\n=== zenmode Started ===")
	fmt.Printf("PID: %d\n", pid)
	if path := configPath(); path != "" {
		fmt.Printf("Config: %s (reloaded on change)\n", path)
	}
	fmt.Printf("Schedule: %s\n", schedule)
	printBlocklist(settings.BuildBlocklist())
	fmt.Println("=======================")
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dir := dataDir()
	if err := infra.EnsureDir(dir); err != nil {
		return err
	}
	logPath := infra.DetectExecMode().LogPath
	if settings.DataDir != "" {
		logPath = filepath.Join(dir, "zenmode.log")
	}

	// Set up logger (JSON, log file in the data dir or /var/log)
	logger := config.NewDaemonLogger(settings, logPath)
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	registry, err := infra.OpenRegistry(dir, pm)
	if err != nil {
		logger.Error("failed to open registry", zap.Error(err))
		return err
	}
	defer registry.Close()

	if alive, _ := registry.IsAlive(); alive {
		if entry, _ := registry.GetAll(); entry != nil && entry.PID != os.Getpid() {
			logger.Warn("another enforcer is already running", zap.Int("pid", entry.PID))
			return fmt.Errorf("enforcer already running (pid %d)", entry.PID)
		}
	}

	shared, err := newShared()
	if err != nil {
		return err
	}
	clock := infra.RealClock{}
	enforcer := usecase.NewEnforcer(pm, clock, logger)
	loop := daemon.NewLoop(daemon.LoopConfig{PollInterval: settings.PollInterval}, shared, enforcer, clock, logger)

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates := make(chan daemon.Update)
	watchConfig(logger, func(schedule domain.Schedule, blocklist domain.Blocklist) {
		select {
		case updates <- daemon.Update{Schedule: schedule, Blocklist: blocklist}:
		case <-ctx.Done():
		}
	})

	d := domain.Daemon{
		PID:        os.Getpid(),
		Role:       domain.RoleEnforcer,
		StartedAt:  time.Now(),
		AppVersion: Version,
		ConfigPath: configPath(),
	}
	service := daemon.NewService(daemon.DefaultServiceConfig(), loop, shared, registry, updates, d, logger)

	err = service.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("received shutdown signal")
		return nil
	}
	return err
}

func runStop(cmd *cobra.Command, args []string) error {
	pm := infra.NewProcessManager()
	registry, err := infra.OpenRegistry(dataDir(), pm)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer registry.Close()

	entry, err := registry.GetAll()
	if err != nil {
		return err
	}
	if entry == nil {
		fmt.Println("zenmode is not running")
		return nil
	}
	if !pm.IsRunning(entry.PID) {
		_ = registry.Clear()
		fmt.Println("zenmode is not running (cleared stale registry entry)")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := pm.Terminate(ctx, entry.PID); err != nil && !errors.Is(err, domain.ErrProcessGone) {
		return fmt.Errorf("failed to stop enforcer (pid %d): %w", entry.PID, err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for pm.IsRunning(entry.PID) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("enforcer (pid %d) did not exit within %s", entry.PID, stopTimeout)
		case <-ticker.C:
		}
	}

	fmt.Printf("Stopped zenmode (pid %d)\n", entry.PID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	pm := infra.NewProcessManager()
	registry, err := infra.OpenRegistry(dataDir(), pm)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer registry.Close()

	fmt.Println("\n=== zenmode Status ===")

	entry, err := registry.GetAll()
	alive, _ := registry.IsAlive()
	if err != nil || entry == nil || !alive {
		fmt.Println("Zen mode is currently INACTIVE.")
		fmt.Println("\nRun 'zenmode start' to enable blocking.")
		fmt.Println("======================")
		return nil
	}

	fmt.Println("Zen mode is currently ACTIVE.")
	fmt.Printf("PID: %d (mode: %s, version: %s)\n", entry.PID, entry.Mode, entry.AppVersion)
	if entry.ConfigPath != "" {
		fmt.Printf("Config: %s\n", entry.ConfigPath)
	}
	if entry.StartedAt > 0 {
		fmt.Printf("Up: %s\n", time.Since(time.Unix(entry.StartedAt, 0)).Round(time.Second))
	}
	if entry.LastHeartbeat > 0 {
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(time.Unix(entry.LastHeartbeat, 0)).Round(time.Second))
	}
	if entry.LastScanAt > 0 {
		fmt.Printf("Last scan: %s ago, killed %d\n",
			time.Since(time.Unix(entry.LastScanAt, 0)).Round(time.Second), entry.LastScanKilled)
	}
	fmt.Printf("Total killed: %d\n", entry.TotalKilled)
	fmt.Println("======================")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	at := time.Now()
	if checkAt != "" {
		parsed, err := time.Parse(time.RFC3339, checkAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = parsed
	}

	schedule, err := settings.BuildSchedule()
	if err != nil {
		return err
	}

	fmt.Printf("Schedule: %s\n", schedule)
	if w, ok := schedule.WindowFor(at.Weekday()); ok {
		fmt.Printf("Window for %s: %s-%s\n", at.Weekday(), w.Start, w.End)
	} else {
		fmt.Printf("No window on %s\n", at.Weekday())
	}
	if schedule.IsActive(at) {
		fmt.Printf("%s: ACTIVE (blocked applications are killed)\n", at.Format("Mon 2006-01-02 15:04"))
	} else {
		fmt.Printf("%s: INACTIVE\n", at.Format("Mon 2006-01-02 15:04"))
	}

	if len(args) > 0 {
		if id, ok := settings.BuildBlocklist().MatchArgs(args); ok {
			fmt.Printf("Command line matches blocked identifier %q\n", id)
		} else {
			fmt.Println("Command line matches no blocked identifier")
		}
	}
	return nil
}

func printBlocklist(b domain.Blocklist) {
	items := b.Items()
	if len(items) == 0 {
		fmt.Println("Blocked applications: (none)")
		return
	}
	fmt.Println("Blocked applications:")
	for _, id := range items {
		fmt.Printf("  - %s\n", id)
	}
}
