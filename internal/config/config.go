// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/sipscan/internal/core"
	"firestige.xyz/sipscan/internal/log"
)

// Config is the top-level configuration, mapped from the `sipscan:` root key.
type Config struct {
	Input   InputConfig      `mapstructure:"input"`
	Output  OutputConfig     `mapstructure:"output"`
	Workers int              `mapstructure:"workers"` // 0 = auto (GOMAXPROCS)
	Log     log.LoggerConfig `mapstructure:"log"`
	Metrics MetricsConfig    `mapstructure:"metrics"`
}

// ─── Input ───

// InputConfig selects capture files and the SIP candidate filter.
type InputConfig struct {
	TracesDir    string `mapstructure:"traces_dir"`
	Pattern      string `mapstructure:"pattern"`       // glob relative to traces_dir
	BPFFilter    string `mapstructure:"bpf_filter"`    // optional tcpdump-style expression
	SIPPorts     []int  `mapstructure:"sip_ports"`     // transport ports treated as SIP
	PayloadSniff bool   `mapstructure:"payload_sniff"` // also accept SIP start lines on other ports
}

// ─── Output ───

// Supported report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// OutputConfig controls report rendering.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"` // text / json / yaml
	UTC    bool   `mapstructure:"utc"`    // render timestamps in UTC instead of local time
}

// ─── Metrics ───

// MetricsConfig controls the Prometheus textfile written after a batch.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // empty = disabled
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `sipscan: ...`.
type configRoot struct {
	Sipscan Config `mapstructure:"sipscan"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment overrides only. Env vars map through the key replacer,
// e.g. "sipscan.input.traces_dir" → SIPSCAN_INPUT_TRACES_DIR.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Sipscan

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration Load produces without a file or environment.
func Default() *Config {
	cfg := &Config{}
	applyStaticDefaults(cfg)
	return cfg
}

// setDefaults sets default values. All keys use the "sipscan." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("sipscan.input.traces_dir", d.Input.TracesDir)
	v.SetDefault("sipscan.input.pattern", d.Input.Pattern)
	v.SetDefault("sipscan.input.bpf_filter", d.Input.BPFFilter)
	v.SetDefault("sipscan.input.sip_ports", d.Input.SIPPorts)
	v.SetDefault("sipscan.input.payload_sniff", d.Input.PayloadSniff)

	v.SetDefault("sipscan.output.dir", d.Output.Dir)
	v.SetDefault("sipscan.output.format", d.Output.Format)
	v.SetDefault("sipscan.output.utc", d.Output.UTC)

	v.SetDefault("sipscan.workers", d.Workers)

	v.SetDefault("sipscan.log.level", d.Log.Level)
	v.SetDefault("sipscan.log.pattern", d.Log.Pattern)
	v.SetDefault("sipscan.log.time", d.Log.Time)
	v.SetDefault("sipscan.log.console", d.Log.Console)
	v.SetDefault("sipscan.log.file.enabled", d.Log.File.Enabled)
	v.SetDefault("sipscan.log.file.path", d.Log.File.Path)
	v.SetDefault("sipscan.log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("sipscan.log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("sipscan.log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("sipscan.log.file.compress", d.Log.File.Compress)

	v.SetDefault("sipscan.metrics.textfile", d.Metrics.Textfile)
}

func applyStaticDefaults(cfg *Config) {
	cfg.Input = InputConfig{
		TracesDir:    "traces",
		Pattern:      "*.pcap",
		SIPPorts:     []int{5060, 5061},
		PayloadSniff: true,
	}
	cfg.Output = OutputConfig{
		Dir:    "output",
		Format: FormatText,
	}
	cfg.Workers = 1
	cfg.Log = *log.DefaultConfig()
	cfg.Log.File = log.FileConfig{
		Path:       "sipscan.log",
		MaxSizeMB:  100,
		MaxAgeDays: 30,
		MaxBackups: 5,
		Compress:   true,
	}
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Input ──
	if cfg.Input.TracesDir == "" {
		return fmt.Errorf("%w: input.traces_dir is required", core.ErrConfigInvalid)
	}
	if cfg.Input.Pattern == "" {
		cfg.Input.Pattern = "*.pcap"
	}
	if _, err := filepath.Match(cfg.Input.Pattern, ""); err != nil {
		return fmt.Errorf("%w: invalid input.pattern %q: %v", core.ErrConfigInvalid, cfg.Input.Pattern, err)
	}
	if len(cfg.Input.SIPPorts) == 0 && !cfg.Input.PayloadSniff {
		return fmt.Errorf("%w: input.sip_ports is empty and input.payload_sniff is off, nothing would match", core.ErrConfigInvalid)
	}
	for _, p := range cfg.Input.SIPPorts {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%w: invalid SIP port %d", core.ErrConfigInvalid, p)
		}
	}

	// ── Output ──
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)
	switch cfg.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: invalid output format: %s (must be text/json/yaml)", core.ErrConfigInvalid, cfg.Output.Format)
	}
	if cfg.Output.Dir == "" {
		return fmt.Errorf("%w: output.dir is required", core.ErrConfigInvalid)
	}

	// ── Workers ──
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	return nil
}

// ParserOptions returns the option map handed to the SIP parser plugin.
func (in InputConfig) ParserOptions() map[string]any {
	return map[string]any{
		"ports":         in.SIPPorts,
		"payload_sniff": in.PayloadSniff,
	}
}
