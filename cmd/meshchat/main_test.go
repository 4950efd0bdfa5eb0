package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/meshchat"
	"github.com/opd-ai/meshchat/auth"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshchat.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// resolveOptions runs the app's global flags through buildOptions.
func resolveOptions(t *testing.T, args ...string) (*meshchat.Options, error) {
	t.Helper()
	app := newApp()
	var (
		opts     *meshchat.Options
		buildErr error
	)
	app.Commands = nil
	app.Action = func(ctx *cli.Context) error {
		opts, buildErr = buildOptions(ctx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"meshchat"}, args...)))
	return opts, buildErr
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/var/lib/meshchat"
listen_addr = "0.0.0.0:7500"
peers = ["10.0.0.2:7400", "10.0.0.3:7400"]
announce_interval = "1m"
announce_delay = "250ms"
store = "leveldb"
log_level = "debug"
metrics_addr = "127.0.0.1:9100"
`)

	opts := meshchat.NewOptions()
	require.NoError(t, loadConfigFile(path, opts))

	assert.Equal(t, "/var/lib/meshchat", opts.DataDir)
	assert.Equal(t, "0.0.0.0:7500", opts.ListenAddr)
	assert.Equal(t, []string{"10.0.0.2:7400", "10.0.0.3:7400"}, opts.Peers)
	assert.Equal(t, time.Minute, opts.AnnounceInterval)
	assert.Equal(t, 250*time.Millisecond, opts.AnnounceDelay)
	assert.Equal(t, 15*time.Second, opts.RedialInterval, "unset keys keep their default")
	assert.Equal(t, meshchat.StoreLevelDB, opts.StoreBackend)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "127.0.0.1:9100", opts.MetricsAddr)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", `listen = ":7400"`, "unknown config keys"},
		{"bad duration", `announce_interval = "soon"`, "invalid announce_interval"},
		{"bad syntax", `data_dir = `, "failed to read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loadConfigFile(writeConfig(t, tt.content), meshchat.NewOptions())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildOptions_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr = "0.0.0.0:7500"
log_level = "debug"
`)

	opts, err := resolveOptions(t, "--config", path, "--listen", ":9000", "--peer", "a:1", "--peer", "b:2")
	require.NoError(t, err)
	assert.Equal(t, ":9000", opts.ListenAddr)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, []string{"a:1", "b:2"}, opts.Peers)
	assert.Equal(t, "meshchat-data", opts.DataDir)
}

func TestBuildOptions_Invalid(t *testing.T) {
	_, err := resolveOptions(t, "--store", "tape")
	assert.ErrorIs(t, err, meshchat.ErrInvalidOptions)
}

func TestRegisterAccount(t *testing.T) {
	opts := meshchat.NewOptions()
	opts.DataDir = t.TempDir()

	profile, err := registerAccount(opts, "alice", "Alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.DisplayName)

	_, err = registerAccount(opts, "alice", "Alice", "other")
	assert.ErrorIs(t, err, auth.ErrDuplicateAccount)

	creds, err := auth.Open(opts.CredentialsPath())
	require.NoError(t, err)
	_, err = creds.Authenticate("alice", "hunter2")
	assert.NoError(t, err)
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	})

	_, err := setupLogging("chatty", "")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "meshchat.log")
	closeLog, err := setupLogging("warn", path)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	logrus.Warn("disk almost full")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk almost full")
}
