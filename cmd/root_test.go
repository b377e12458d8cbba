// cmd/root_test.go
package cmd

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/measurediff/internal/config"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, &MockStoreProvider{}, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "measurediff version "+Version)
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, &MockStoreProvider{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "measurediff "+Version+"\n", out)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCommand()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"analyze", "capture", "history", "version"})
}

func TestGetConfigFromContext(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := getConfigFromContext(context.Background())
		assert.EqualError(t, err, "configuration not found in command context")
	})

	t.Run("nil context", func(t *testing.T) {
		//nolint:staticcheck // exercising the nil guard
		_, err := getConfigFromContext(nil)
		assert.Error(t, err)
	})

	t.Run("present", func(t *testing.T) {
		cfg := newTestConfig()
		ctx := context.WithValue(context.Background(), configKey, config.Interface(cfg))
		got, err := getConfigFromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, cfg, got)
	})
}

func TestInitializeConfig(t *testing.T) {
	t.Cleanup(func() { cfgFile = "" })

	t.Run("config file", func(t *testing.T) {
		cfgFile = createTempConfig(t, `
report:
  format: sarif
diagnostics:
  entry_spacing: 8
  column_height_source: measured
`)
		v := viper.New()
		config.SetDefaults(v)
		require.NoError(t, initializeConfig(v))

		cfg, err := config.NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "sarif", cfg.Report().Format)
		assert.Equal(t, 8.0, cfg.Diagnostics().EntrySpacing)
		assert.Equal(t, "measured", cfg.Diagnostics().ColumnHeightSource)
		// Untouched keys keep their defaults.
		assert.Equal(t, "stdout", cfg.Report().Output)
	})

	t.Run("environment overrides", func(t *testing.T) {
		cfgFile = ""
		t.Setenv("MEASUREDIFF_REPORT_FORMAT", "json")
		t.Setenv("MEASUREDIFF_DATABASE_URL", "postgres://localhost/measurediff")

		v := viper.New()
		config.SetDefaults(v)
		require.NoError(t, initializeConfig(v))

		cfg, err := config.NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Report().Format)
		assert.Equal(t, "postgres://localhost/measurediff", cfg.Database().URL)
	})

	t.Run("unreadable file", func(t *testing.T) {
		cfgFile = createTempConfig(t, "report: [unterminated")
		v := viper.New()
		err := initializeConfig(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestRootCmd_InvalidConfigFails(t *testing.T) {
	path := createTempConfig(t, "report:\n  format: xml\n")
	_, err := executeCommand(t, &MockStoreProvider{}, "--config", path, "analyze", "--snapshot", "testdata/clean.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
}
