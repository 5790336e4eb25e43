// Package pipeline drives one capture file through decoding, SIP parsing and
// classification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"firestige.xyz/sipscan/internal/analyzer"
	"firestige.xyz/sipscan/internal/core"
	"firestige.xyz/sipscan/internal/core/decoder"
	"firestige.xyz/sipscan/internal/log"
	"firestige.xyz/sipscan/internal/source/file"
	"firestige.xyz/sipscan/internal/utils"
	"firestige.xyz/sipscan/pkg/plugin"
)

const snapLen = 262144

// Observer is called once per record handed to the classifier.
type Observer func(rec core.PacketRecord, res analyzer.Result)

// Config contains pipeline configuration.
type Config struct {
	Path      string
	Decoder   decoder.Decoder // defaults to a StandardDecoder with IPv4 reassembly
	Parser    plugin.Parser
	BPFFilter string         // compiled against the file's link type once it is open
	Matcher   *utils.Matcher // precompiled filter, takes precedence over BPFFilter
	Location  *time.Location // record timestamps are converted to it; defaults to time.Local
	Labels    core.Labels    // attached to every log line
	Observer  Observer
}

// Result is the outcome of processing one file.
type Result struct {
	Summary  analyzer.Summary
	Findings []analyzer.Finding
	Stats    Stats
}

// Pipeline represents a single-threaded processing chain over one file.
type Pipeline struct {
	path     string
	decoder  decoder.Decoder
	parser   plugin.Parser
	filter   string
	matcher  *utils.Matcher
	location *time.Location
	observer Observer
	logger   log.Logger

	collector analyzer.Collector
	stats     Stats
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.NewStandardDecoder(decoder.Config{Defragment: true})
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	labels := core.Labels{core.LabelFile: cfg.Path}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &Pipeline{
		path:     cfg.Path,
		decoder:  cfg.Decoder,
		parser:   cfg.Parser,
		filter:   cfg.BPFFilter,
		matcher:  cfg.Matcher,
		location: cfg.Location,
		observer: cfg.Observer,
		logger:   log.GetLogger().WithFields(labels.Fields()),
	}
}

// Run reads the file to the end. Errors opening or reading the file wrap
// core.ErrStreamFailed; per-packet problems are counted and never abort the run.
// On error the partial result gathered so far is still returned.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if p.parser == nil {
		return Result{}, fmt.Errorf("pipeline for %s: no parser configured", p.path)
	}

	src, err := file.Open(p.path)
	if err != nil {
		return p.result(), err
	}
	defer src.Close()

	if p.matcher == nil && p.filter != "" {
		m, err := utils.CompileMatcher(src.LinkType(), p.filter, snapLen)
		if err != nil {
			return p.result(), fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
		}
		p.matcher = m
	}

	p.logger.Infof("processing SIP messages in %s", p.path)
	for {
		if err := ctx.Err(); err != nil {
			return p.result(), err
		}

		raw, err := src.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.result(), err
		}

		p.stats.Received++
		p.processPacket(raw)
	}

	res := p.result()
	p.logger.WithFields(map[string]interface{}{
		"total":    res.Summary.TotalRecords,
		"register": res.Summary.RegisterCount,
		"invite":   res.Summary.InviteCount,
	}).Infof("finished %s", p.path)
	return res, nil
}

// processPacket processes a single frame through the entire pipeline.
func (p *Pipeline) processPacket(raw core.RawPacket) {
	if !p.matcher.Match(raw.Data) {
		p.stats.Filtered++
		return
	}

	decoded, err := p.decoder.Decode(raw)
	if err != nil {
		if errors.Is(err, core.ErrFragmentPending) {
			p.stats.Fragments++
			return
		}
		p.stats.DecodeErrors++
		if p.logger.IsTraceEnabled() {
			p.logger.WithError(err).Tracef("frame %d not decoded", raw.Index)
		}
		return
	}

	if !p.parser.CanHandle(&decoded) {
		return
	}
	p.stats.Candidates++

	rec := core.PacketRecord{
		Timestamp: decoded.Timestamp.In(p.location),
		Index:     decoded.Index,
	}
	sip, err := p.parser.Handle(&decoded)
	switch {
	case errors.Is(err, core.ErrNotSIP):
		p.stats.NotSIP++
		return
	case err != nil:
		p.stats.ParseErrors++
		p.logger.WithError(err).Debugf("frame %d: SIP parser failed", raw.Index)
	default:
		rec.SIP = sip
	}

	p.stats.Records++
	p.logger.Debugf("processing packet %d", p.collector.Summary.TotalRecords+1)

	res := p.collector.Feed(rec)
	switch res.Outcome {
	case analyzer.OutcomeMatched:
		p.logger.WithField(core.LabelPacketIndex, strconv.Itoa(rec.Index)).
			Debugf("found %s message", res.Finding.Kind)
	case analyzer.OutcomeMalformed:
		p.logger.WithError(res.Err).Warnf("skipping packet %d", rec.Index)
	}
	if p.observer != nil {
		p.observer(rec, res)
	}
}

func (p *Pipeline) result() Result {
	return Result{
		Summary:  p.collector.Summary,
		Findings: p.collector.Findings,
		Stats:    p.stats,
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.stats
}
