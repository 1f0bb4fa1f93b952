package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/runtime"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, runtime.DefaultConfig(), cfg.Runtime())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "dyparser.toml", `
plugin_dir = "/opt/plugins"
default_plugin = "ini"
timeout = "5s"
max_sections = 128
enable_wasi = true

[log]
level = "debug"
development = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/plugins", cfg.PluginDir)
	assert.Equal(t, "ini", cfg.DefaultPlugin)
	assert.Equal(t, Duration(5*time.Second), cfg.Timeout)
	assert.Equal(t, 128, cfg.MaxSections)
	assert.True(t, cfg.EnableWASI)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 1024, cfg.MaxCallStack, "unset keys keep defaults")

	rc := cfg.Runtime()
	assert.Equal(t, 5*time.Second, rc.Timeout)
	assert.Equal(t, "/opt/plugins", rc.PluginDir)
	assert.True(t, rc.EnableWASI)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "dyparser.yml", `
default_plugin: toml
timeout: 1m30s
input_encoding: windows-1252
memory_limit_pages: 16
log:
  level: warn
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "toml", cfg.DefaultPlugin)
	assert.Equal(t, Duration(90*time.Second), cfg.Timeout)
	assert.Equal(t, "windows-1252", cfg.InputEncoding)
	assert.Equal(t, uint32(16), cfg.MemoryLimitPages)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Environment(t *testing.T) {
	path := writeFile(t, "dyparser.toml", `default_plugin = "ini"`)
	t.Setenv("DYPARSER_DEFAULT_PLUGIN", "yaml")
	t.Setenv("DYPARSER_TIMEOUT", "250ms")
	t.Setenv("DYPARSER_LOG_LEVEL", "error")
	t.Setenv("DYPARSER_ENABLE_WASI", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.DefaultPlugin)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Timeout)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.True(t, cfg.EnableWASI)
}

func TestLoad_EnvironmentOnly(t *testing.T) {
	t.Setenv("DYPARSER_MAX_SECTIONS", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MaxSections)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		kind errors.Kind
	}{
		{"unknown toml key", "c.toml", `bogus = 1`, errors.KindInvalidInput},
		{"unknown yaml key", "c.yaml", "bogus: 1\n", errors.KindInvalidInput},
		{"bad duration", "c.toml", `timeout = "soon"`, errors.KindInvalidInput},
		{"negative timeout", "c.toml", `timeout = "-1s"`, errors.KindInvalidInput},
		{"bad plugin name", "c.toml", `default_plugin = "../x"`, errors.KindInvalidInput},
		{"too many sections", "c.toml", `max_sections = 2000000`, errors.KindInvalidInput},
		{"bad encoding", "c.toml", `input_encoding = "klingon"`, errors.KindInvalidInput},
		{"bad level", "c.yaml", "log:\n  level: loud\n", errors.KindInvalidInput},
		{"unknown format", "c.ini", `x = 1`, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))

			var ee *errors.Error
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, errors.PhaseConfig, ee.Phase)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, errors.ErrNotFound)

	t.Setenv("DYPARSER_MAX_SECTIONS", "many")
	_, err = Load("")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2m")))
	assert.Equal(t, Duration(2*time.Minute), d)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2m0s", string(out))
	assert.Error(t, d.UnmarshalText([]byte("2 minutes")))
}

func TestLogConfig_Build(t *testing.T) {
	for _, lc := range []LogConfig{{Level: "info"}, {Level: "debug", Development: true}} {
		l, err := lc.Build()
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
	_, err := LogConfig{Level: "chatty"}.Build()
	assert.Error(t, err)
}
