package pipeline

import (
	"time"

	"firestige.xyz/sipscan/internal/core"
	"firestige.xyz/sipscan/internal/core/decoder"
	"firestige.xyz/sipscan/internal/utils"
	"firestige.xyz/sipscan/pkg/plugin"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder for path.
func NewBuilder(path string) *Builder {
	return &Builder{config: Config{Path: path, Labels: core.Labels{}}}
}

// WithDecoder sets the packet decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithParser sets the SIP parser.
func (b *Builder) WithParser(p plugin.Parser) *Builder {
	b.config.Parser = p
	return b
}

// WithBPFFilter sets a tcpdump-style filter expression.
func (b *Builder) WithBPFFilter(expr string) *Builder {
	b.config.BPFFilter = expr
	return b
}

// WithMatcher sets a precompiled filter.
func (b *Builder) WithMatcher(m *utils.Matcher) *Builder {
	b.config.Matcher = m
	return b
}

// WithLocation sets the zone record timestamps are rendered in.
func (b *Builder) WithLocation(loc *time.Location) *Builder {
	b.config.Location = loc
	return b
}

// WithLabel attaches a label to every log line of the pipeline.
func (b *Builder) WithLabel(key, value string) *Builder {
	b.config.Labels[key] = value
	return b
}

// WithObserver sets the per-record callback.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.config.Observer = o
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
