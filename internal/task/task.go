// Package task runs batches of capture files through the pipeline.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/sipscan/internal/core"
	"firestige.xyz/sipscan/internal/log"
	"firestige.xyz/sipscan/internal/pipeline"
	"firestige.xyz/sipscan/internal/report"
	"firestige.xyz/sipscan/pkg/plugin"
)

// TaskState represents the state of a task in its lifecycle.
type TaskState string

const (
	// StateCreated indicates task instance created but not started.
	StateCreated TaskState = "created"
	// StateRunning indicates the file is being processed.
	StateRunning TaskState = "running"
	// StateDone indicates the file was processed and its report written.
	StateDone TaskState = "done"
	// StateFailed indicates the file could not be processed.
	StateFailed TaskState = "failed"
)

// Task processes one capture file.
type Task struct {
	Path string

	mu         sync.RWMutex
	state      TaskState
	startedAt  time.Time
	finishedAt time.Time
	result     FileResult
}

// NewTask creates a new task instance in Created state.
func NewTask(path string) *Task {
	return &Task{Path: path, state: StateCreated, result: FileResult{Path: path}}
}

// State returns the current task state.
func (t *Task) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Result returns the file result. It is final once the task left StateRunning.
func (t *Task) Result() FileResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// Duration returns how long the task ran.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.finishedAt.IsZero() {
		return 0
	}
	return t.finishedAt.Sub(t.startedAt)
}

func (t *Task) transition(to TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch to {
	case StateRunning:
		t.startedAt = time.Now()
	case StateDone, StateFailed:
		t.finishedAt = time.Now()
	}
	t.state = to
}

// run processes the file with its own parser, pipeline and classifier so a
// failure here never touches another file.
func (t *Task) run(ctx context.Context, m *Manager) {
	t.transition(StateRunning)
	logger := log.GetLogger().WithFields(core.Labels{
		core.LabelFile:  t.Path,
		core.LabelRunID: m.runID,
	}.Fields())
	logger.Infof("processing: %s", t.Path)

	res, err := t.process(ctx, m)

	t.mu.Lock()
	t.result = res
	t.result.Err = err
	t.mu.Unlock()

	if err != nil {
		t.transition(StateFailed)
		logger.WithError(err).Errorf("failed to process %s", t.Path)
	} else {
		t.transition(StateDone)
		if res.Output != "" {
			logger.Infof("results saved in '%s'", res.Output)
		}
	}

	if m.metrics != nil {
		m.metrics.ObserveFile(err, t.Duration())
		observeStats(m, res.Stats)
		if err == nil {
			m.metrics.ObserveSummary(res.Summary)
		}
	}
}

func (t *Task) process(ctx context.Context, m *Manager) (FileResult, error) {
	out := FileResult{Path: t.Path}

	parser, err := plugin.NewParser(m.opts.ParserName, m.opts.ParserOptions)
	if err != nil {
		return out, fmt.Errorf("parser %q: %w", m.opts.ParserName, err)
	}
	if err := parser.Start(ctx); err != nil {
		return out, fmt.Errorf("start parser: %w", err)
	}
	defer parser.Stop(context.Background())

	b := pipeline.NewBuilder(t.Path).
		WithParser(parser).
		WithBPFFilter(m.opts.BPFFilter).
		WithLocation(m.opts.Location).
		WithLabel(core.LabelRunID, m.runID)

	res, err := b.Build().Run(ctx)
	out.Summary = res.Summary
	out.Stats = res.Stats
	if err != nil {
		return out, err
	}

	out.Report = report.New(t.Path, m.now(), res.Summary, res.Findings)
	if m.opts.OutputDir != "" {
		path, err := report.WriteFile(m.opts.OutputDir, out.Report, m.opts.Format)
		if err != nil {
			return out, err
		}
		out.Output = path
	}
	return out, nil
}

func observeStats(m *Manager, s pipeline.Stats) {
	m.metrics.AddFrames("received", s.Received)
	m.metrics.AddFrames("filtered", s.Filtered)
	m.metrics.AddFrames("decode_error", s.DecodeErrors)
	m.metrics.AddFrames("fragment", s.Fragments)
	m.metrics.AddFrames("not_sip", s.NotSIP)
	m.metrics.AddFrames("parse_error", s.ParseErrors)
	m.metrics.AddFrames("record", s.Records)
}
