package cmd

import (
	"time"

	"github.com/spf13/pflag"

	"firestige.xyz/sipscan/internal/config"
	"firestige.xyz/sipscan/internal/log"
	"firestige.xyz/sipscan/internal/report"
	"firestige.xyz/sipscan/internal/task"
)

// overrides holds command-line values that take precedence over the config file.
type overrides struct {
	tracesDir   string
	outputDir   string
	pattern     string
	format      string
	workers     int
	bpf         string
	utc         bool
	metricsFile string
	logLevel    string
}

func (o *overrides) register(fs *pflag.FlagSet, withInput bool) {
	if withInput {
		fs.StringVarP(&o.tracesDir, "traces", "t", "", "directory holding the capture files")
		fs.StringVarP(&o.pattern, "pattern", "p", "", "glob selecting capture files in the traces directory")
	}
	fs.StringVarP(&o.outputDir, "output", "o", "", "report output directory")
	fs.StringVarP(&o.format, "format", "f", "", "report format: text, json or yaml")
	fs.IntVarP(&o.workers, "workers", "w", 0, "files processed concurrently (0 = one per CPU)")
	fs.StringVar(&o.bpf, "bpf", "", "BPF filter applied to every frame")
	fs.BoolVar(&o.utc, "utc", false, "render timestamps in UTC instead of local time")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
}

// apply copies every flag the user set onto cfg and re-validates it.
func (o *overrides) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	set := func(name string, fn func()) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			fn()
		}
	}
	set("traces", func() { cfg.Input.TracesDir = o.tracesDir })
	set("pattern", func() { cfg.Input.Pattern = o.pattern })
	set("output", func() { cfg.Output.Dir = o.outputDir })
	set("format", func() { cfg.Output.Format = o.format })
	set("workers", func() { cfg.Workers = o.workers })
	set("bpf", func() { cfg.Input.BPFFilter = o.bpf })
	set("utc", func() { cfg.Output.UTC = o.utc })
	set("metrics-file", func() { cfg.Metrics.Textfile = o.metricsFile })
	set("log-level", func() { cfg.Log.Level = o.logLevel })
	return cfg.ValidateAndApplyDefaults()
}

// loadConfig loads the config file, applies flag overrides and initialises logging.
func loadConfig(fs *pflag.FlagSet, o *overrides) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := o.apply(fs, cfg); err != nil {
		return nil, err
	}
	if err := log.Init(&cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// managerOptions maps the configuration onto batch options.
func managerOptions(cfg *config.Config, outputDir string) (task.Options, error) {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return task.Options{}, err
	}
	loc := time.Local
	if cfg.Output.UTC {
		loc = time.UTC
	}
	return task.Options{
		Workers:       cfg.Workers,
		ParserOptions: cfg.Input.ParserOptions(),
		BPFFilter:     cfg.Input.BPFFilter,
		Location:      loc,
		OutputDir:     outputDir,
		Format:        format,
	}, nil
}
