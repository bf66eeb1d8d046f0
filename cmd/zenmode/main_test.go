package main

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/zenmode/internal/config"
)

// resetFlags puts every bound persistent flag back to its default.
func resetFlags(t *testing.T) {
	t.Helper()
	for _, name := range flagKeys {
		f := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			require.NoError(t, sv.Replace(nil))
		} else {
			require.NoError(t, f.Value.Set(f.DefValue))
		}
		f.Changed = false
	}
}

func setEnv(t *testing.T, env []string) {
	t.Helper()
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		require.True(t, ok, kv)
		t.Setenv(key, value)
	}
}

func TestFlagEnv_OnlyChangedFlags(t *testing.T) {
	t.Cleanup(func() { resetFlags(t) })

	require.NoError(t, startCmd.ParseFlags([]string{"--log-level", "debug"}))

	assert.Equal(t, []string{"ZENMODE_LOG_LEVEL=debug"}, flagEnv(startCmd))
}

func TestFlagEnv_RoundTripsThroughDaemonConfig(t *testing.T) {
	t.Cleanup(func() { resetFlags(t) })

	require.NoError(t, startCmd.ParseFlags([]string{
		"--block", "/opt/My Game/game",
		"--block", "steam",
		"--block", "/opt/a,b/game",
		"--schedule", "Monday=09:00-17:00",
		"--schedule", "Friday=10:00-12:00",
		"--poll-interval", "2s",
	}))

	env := flagEnv(startCmd)
	require.Len(t, env, 3)
	setEnv(t, env)

	// The daemon resolves its settings from a fresh viper and the environment.
	s, err := config.Load(config.NewViper())
	require.NoError(t, err)

	assert.Equal(t, []string{"/opt/My Game/game", "/opt/a,b/game", "steam"}, s.BuildBlocklist().Items())
	schedule, err := s.BuildSchedule()
	require.NoError(t, err)
	assert.Equal(t, "Monday=09:00-17:00 Friday=10:00-12:00", schedule.String())
	assert.Equal(t, "2s", s.PollInterval.String())
}
