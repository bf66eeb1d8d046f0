// Package main is the CLI entry point for zenmode.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/zenmode/internal/config"
	"github.com/eliteGoblin/zenmode/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zenmode",
	Short: "Zen mode - kills distracting applications during scheduled focus hours",
	Long: `zenmode blocks applications on a weekly schedule. While the current
weekday and time fall inside a configured window, every running process whose
command line contains a blocked identifier as an exact argument is killed.

Run it in the foreground with an interactive console (zenmode run), or in the
background as a daemon (zenmode start / zenmode stop).`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run zen mode in the foreground with an interactive console",
	Long: `Starts enforcement immediately (unless --paused) and reads commands from
stdin. Type 'help' at the prompt for the list of commands.`,
	RunE: runForeground,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background enforcer",
	Long: `Spawns a detached enforcer daemon. Schedule and blocklist come from the
config file (reloaded on change) and from any flags given here.`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background enforcer",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background enforcer is running",
	RunE:  runStatus,
}

var checkCmd = &cobra.Command{
	Use:   "check [-- argv...]",
	Short: "Evaluate the schedule, and optionally match an argument vector",
	Long: `Reports whether the schedule is active now (or at --at). Any arguments
after -- are treated as a process command line and matched against the
blocklist.`,
	RunE: runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	// Version works even with a broken config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run:               runVersion,
}

// Hidden daemon command - used for self-exec by start
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	v        = config.NewViper()
	settings *config.Settings

	cfgFile    string
	paused     bool
	checkAt    string
	jsonOutput bool
)

// flagKeys maps setting keys to the persistent flags that override them.
var flagKeys = map[string]string{
	config.KeyLogLevel:     "log-level",
	config.KeyLogFile:      "log-file",
	config.KeyDataDir:      "data-dir",
	config.KeyPollInterval: "poll-interval",
	config.KeySchedule:     "schedule",
	config.KeyBlocklist:    "block",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.zenmode.yaml when present)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "log file (default: stderr in the foreground, data dir for the daemon)")
	pf.String("data-dir", "", "directory for the encrypted registry (default depends on exec mode)")
	pf.Duration("poll-interval", 5*time.Second, "pause between enforcement iterations")
	pf.StringSlice("schedule", nil, "block window as Day=HH:MM-HH:MM (repeatable)")
	pf.StringArray("block", nil, "application identifier to block (repeatable, taken verbatim)")

	for key, name := range flagKeys {
		_ = v.BindPFlag(key, pf.Lookup(name))
	}

	runCmd.Flags().BoolVar(&paused, "paused", false, "start with enforcement switched off")
	checkCmd.Flags().StringVar(&checkAt, "at", "", "evaluate at this RFC3339 time instead of now")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

func loadSettings(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		candidate := filepath.Join(infra.GetRealUserHome(), ".zenmode.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if err := config.ReadFile(v, path); err != nil {
		return err
	}

	s, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	settings = s
	return nil
}

// configPath returns the absolute path of the config file in use, if any.
func configPath() string {
	path := v.ConfigFileUsed()
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// dataDir resolves where the registry lives.
func dataDir() string {
	if settings.DataDir != "" {
		return infra.ExpandHome(settings.DataDir)
	}
	return infra.DetectExecMode().DataDir
}

// flagEnv turns the overriding flags given on this command line into
// ZENMODE_* variables so the spawned daemon resolves the same settings.
func flagEnv(cmd *cobra.Command) []string {
	var env []string
	for key, name := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		value := v.GetString(key)
		if key == config.KeySchedule || key == config.KeyBlocklist {
			value = config.EncodeList(v.GetStringSlice(key))
		}
		env = append(env, config.EnvPrefix+"_"+strings.ToUpper(key)+"="+value)
	}
	sort.Strings(env)
	return env
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("zenmode %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
