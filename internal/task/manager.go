package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"firestige.xyz/sipscan/internal/analyzer"
	"firestige.xyz/sipscan/internal/log"
	"firestige.xyz/sipscan/internal/metrics"
	"firestige.xyz/sipscan/internal/pipeline"
	"firestige.xyz/sipscan/internal/report"
	_ "firestige.xyz/sipscan/plugins"
	"firestige.xyz/sipscan/plugins/parser/sip"
)

// Options configures a batch run.
type Options struct {
	Workers       int            // files processed concurrently, at least 1
	ParserName    string         // registry name, defaults to the SIP parser
	ParserOptions map[string]any // passed to the parser's Init
	BPFFilter     string
	Location      *time.Location
	OutputDir     string // reports are kept in memory only when empty
	Format        report.Format
	Now           func() time.Time // report analysis date, defaults to time.Now
}

// FileResult is the outcome of one file.
type FileResult struct {
	Path    string
	Output  string // report path, empty when not written
	Summary analyzer.Summary
	Stats   pipeline.Stats
	Report  report.Report
	Err     error
}

// BatchResult is the outcome of a batch, files in input order.
type BatchResult struct {
	RunID   string
	Files   []FileResult
	Summary analyzer.Summary // totals over the successful files
	Failed  int
}

// Err joins the errors of all failed files.
func (b BatchResult) Err() error {
	var errs []error
	for _, f := range b.Files {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
		}
	}
	return errors.Join(errs...)
}

// Manager runs batches of files.
type Manager struct {
	opts    Options
	runID   string
	metrics *metrics.Metrics
}

// NewManager creates a batch manager. m may be nil to disable metrics.
func NewManager(opts Options, m *metrics.Metrics) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ParserName == "" {
		opts.ParserName = sip.Name
	}
	if opts.Format == "" {
		opts.Format = report.FormatText
	}
	return &Manager{opts: opts, runID: uuid.NewString(), metrics: m}
}

// RunID identifies this manager's batch in logs.
func (m *Manager) RunID() string {
	return m.runID
}

func (m *Manager) now() time.Time {
	if m.opts.Now != nil {
		return m.opts.Now()
	}
	return time.Now()
}

// Run processes files on a bounded worker pool. A failing file is recorded
// in its FileResult and never stops the others.
func (m *Manager) Run(ctx context.Context, files []string) BatchResult {
	logger := log.GetLogger().WithField("run_id", m.runID)
	logger.Infof("starting batch of %d files with %d workers", len(files), m.opts.Workers)

	tasks := make([]*Task, len(files))
	for i, f := range files {
		tasks[i] = NewTask(f)
	}

	p := pool.New().WithMaxGoroutines(m.opts.Workers)
	for _, t := range tasks {
		p.Go(func() {
			t.run(ctx, m)
		})
	}
	p.Wait()

	batch := BatchResult{RunID: m.runID, Files: make([]FileResult, len(tasks))}
	for i, t := range tasks {
		res := t.Result()
		batch.Files[i] = res
		if res.Err != nil {
			batch.Failed++
			continue
		}
		batch.Summary.Add(res.Summary)
	}

	logger.WithFields(map[string]interface{}{
		"files":    len(files),
		"failed":   batch.Failed,
		"total":    batch.Summary.TotalRecords,
		"register": batch.Summary.RegisterCount,
		"invite":   batch.Summary.InviteCount,
	}).Info("batch finished")
	return batch
}
