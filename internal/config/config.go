// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "MEASUREDIFF"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Diagnostics() DiagnosticsConfig
	Snapshot() SnapshotConfig
	Database() DatabaseConfig
	Report() ReportConfig

	// Flag overrides
	SetReportFormat(string)
	SetReportOutput(string)
	SetBrowserHeadless(bool)
	SetColumnHeightSource(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	DiagnosticsCfg DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	SnapshotCfg    SnapshotConfig    `mapstructure:"snapshot" yaml:"snapshot"`
	DatabaseCfg    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	ReportCfg      ReportConfig      `mapstructure:"report" yaml:"report"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Diagnostics() DiagnosticsConfig { return c.DiagnosticsCfg }
func (c *Config) Snapshot() SnapshotConfig       { return c.SnapshotCfg }
func (c *Config) Database() DatabaseConfig       { return c.DatabaseCfg }
func (c *Config) Report() ReportConfig           { return c.ReportCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetReportFormat(f string)  { c.ReportCfg.Format = f }
func (c *Config) SetReportOutput(p string)  { c.ReportCfg.Output = p }
func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetColumnHeightSource(s string) {
	c.DiagnosticsCfg.ColumnHeightSource = s
}

type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	// Output is the console destination, "stderr" or "stdout". Reports go to
	// stdout, so logs default to stderr.
	Output     string      `mapstructure:"output" yaml:"output"`
	LogFile    string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int         `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool        `mapstructure:"compress" yaml:"compress"`
	Colors     ColorConfig `mapstructure:"colors" yaml:"colors"`
}

type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig drives live capture.
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// Args are extra Chrome switches, "name" or "name=value".
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SettleDelay is waited after both layers exist so fonts and late layout finish.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

type ViewportConfig struct {
	Width             int     `mapstructure:"width" yaml:"width"`
	Height            int     `mapstructure:"height" yaml:"height"`
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor" yaml:"device_scale_factor"`
}

// DiagnosticsConfig mirrors the diagnostic run options.
type DiagnosticsConfig struct {
	KeyAttribute       string            `mapstructure:"key_attribute" yaml:"key_attribute"`
	ColumnSelector     string            `mapstructure:"column_selector" yaml:"column_selector"`
	EntrySelector      string            `mapstructure:"entry_selector" yaml:"entry_selector"`
	HeaderSelector     string            `mapstructure:"header_selector" yaml:"header_selector"`
	ItemSelector       string            `mapstructure:"item_selector" yaml:"item_selector"`
	ListSelectors      map[string]string `mapstructure:"list_selectors" yaml:"list_selectors"`
	EntrySpacing       float64           `mapstructure:"entry_spacing" yaml:"entry_spacing"`
	OverrunEpsilon     float64           `mapstructure:"overrun_epsilon" yaml:"overrun_epsilon"`
	AccuracyTolerance  float64           `mapstructure:"accuracy_tolerance" yaml:"accuracy_tolerance"`
	ColumnHeightSource string            `mapstructure:"column_height_source" yaml:"column_height_source"`
}

// SnapshotConfig locates the layers inside a captured document.
type SnapshotConfig struct {
	MeasurementLayerXPath string `mapstructure:"measurement_layer_xpath" yaml:"measurement_layer_xpath"`
	VisibleLayerXPath     string `mapstructure:"visible_layer_xpath" yaml:"visible_layer_xpath"`
	RectAttribute         string `mapstructure:"rect_attribute" yaml:"rect_attribute"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
	// FailOnDiscrepancy makes analyze exit non-zero when the report is not clean.
	FailOnDiscrepancy bool `mapstructure:"fail_on_discrepancy" yaml:"fail_on_discrepancy"`
}

// NewDefaultConfig returns a configuration populated only from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "measurediff")
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 1024)
	v.SetDefault("browser.viewport.device_scale_factor", 1.0)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.settle_delay", "500ms")

	// -- Diagnostics --
	v.SetDefault("diagnostics.key_attribute", "data-measurement-key")
	v.SetDefault("diagnostics.column_selector", ".page-column")
	v.SetDefault("diagnostics.entry_selector", ".column-entry")
	v.SetDefault("diagnostics.header_selector", ".section-header")
	v.SetDefault("diagnostics.item_selector", "li, dt, dd, hr, .list-item")
	v.SetDefault("diagnostics.entry_spacing", 12.0)
	v.SetDefault("diagnostics.overrun_epsilon", 1.0)
	v.SetDefault("diagnostics.accuracy_tolerance", 5.0)
	v.SetDefault("diagnostics.column_height_source", "rendered")

	// -- Snapshot --
	v.SetDefault("snapshot.measurement_layer_xpath", `//*[@data-layer="measurement"]`)
	v.SetDefault("snapshot.visible_layer_xpath", `//*[@data-layer="visible"]`)
	v.SetDefault("snapshot.rect_attribute", "data-rect")

	// -- Database --
	v.SetDefault("database.connect_timeout", "10s")

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "stdout")
	v.SetDefault("report.fail_on_discrepancy", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The connection string usually carries a password, so it is read from the
	// environment even when AutomaticEnv is not enabled on v.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.DatabaseCfg.URL == "" {
		cfg.DatabaseCfg.URL = os.Getenv(EnvPrefix + "_DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.LoggerCfg.Validate(); err != nil {
		return fmt.Errorf("logger configuration invalid: %w", err)
	}
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.DiagnosticsCfg.Validate(); err != nil {
		return fmt.Errorf("diagnostics configuration invalid: %w", err)
	}
	if c.SnapshotCfg.MeasurementLayerXPath == "" || c.SnapshotCfg.VisibleLayerXPath == "" {
		return fmt.Errorf("snapshot.measurement_layer_xpath and snapshot.visible_layer_xpath are required")
	}
	switch strings.ToLower(c.ReportCfg.Format) {
	case "text", "json", "sarif":
	default:
		return fmt.Errorf("report.format must be one of text, json, sarif (got %q)", c.ReportCfg.Format)
	}
	return nil
}

// Validate checks the logger output settings.
func (l *LoggerConfig) Validate() error {
	switch l.Output {
	case "", "stderr", "stdout":
	default:
		return fmt.Errorf("output must be stderr or stdout (got %q)", l.Output)
	}
	if l.LogFile != "" && l.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive when log_file is set")
	}
	return nil
}

// Validate checks the browser capture settings.
func (b *BrowserConfig) Validate() error {
	if b.Viewport.Width <= 0 || b.Viewport.Height <= 0 {
		return fmt.Errorf("viewport width and height must be positive integers")
	}
	if b.Viewport.DeviceScaleFactor <= 0 {
		return fmt.Errorf("viewport.device_scale_factor must be greater than 0")
	}
	if b.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	if b.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	return nil
}

// Validate checks the thresholds and the column height source.
func (d *DiagnosticsConfig) Validate() error {
	if d.EntrySpacing < 0 {
		return fmt.Errorf("entry_spacing must not be negative")
	}
	if d.OverrunEpsilon < 0 {
		return fmt.Errorf("overrun_epsilon must not be negative")
	}
	if d.AccuracyTolerance < 0 {
		return fmt.Errorf("accuracy_tolerance must not be negative")
	}
	switch d.ColumnHeightSource {
	case "", "rendered", "measured":
	default:
		return fmt.Errorf("column_height_source must be rendered or measured (got %q)", d.ColumnHeightSource)
	}
	return nil
}
