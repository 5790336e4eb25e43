package log

// LoggerConfig configures the global logger.
type LoggerConfig struct {
	Level   string     `mapstructure:"level" yaml:"level"`     // trace / debug / info / warn / error
	Pattern string     `mapstructure:"pattern" yaml:"pattern"` // %time %level %field %msg %caller %func %goroutine
	Time    string     `mapstructure:"time" yaml:"time"`       // Go time layout for %time
	Console bool       `mapstructure:"console" yaml:"console"`
	File    FileConfig `mapstructure:"file" yaml:"file"`
}

// FileConfig configures the rotating file appender.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

const (
	DefaultPattern = "%time [%level] %field%msg%n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

// DefaultConfig returns an info-level console configuration.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:   "info",
		Pattern: DefaultPattern,
		Time:    DefaultTime,
		Console: true,
	}
}
