// Package metrics implements Prometheus metrics for one batch run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/sipscan/internal/analyzer"
)

// File status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the collectors of one batch. Each batch gets its own registry
// so repeated runs in one process never share counters.
type Metrics struct {
	registry *prometheus.Registry

	// RecordsTotal counts SIP records of successfully processed files
	RecordsTotal prometheus.Counter
	// MessagesTotal counts REGISTER and INVITE findings by kind
	MessagesTotal *prometheus.CounterVec
	// MalformedTotal counts records dropped as malformed
	MalformedTotal prometheus.Counter
	// FilesTotal counts processed capture files by status
	FilesTotal *prometheus.CounterVec
	// FramesTotal counts capture frames by pipeline stage
	FramesTotal *prometheus.CounterVec
	// FileDurationSeconds measures per-file processing time
	FileDurationSeconds prometheus.Histogram
}

// New creates and registers the batch collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sipscan_records_total",
			Help: "Total number of SIP records classified",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sipscan_messages_total",
			Help: "Total number of REGISTER and INVITE messages found",
		}, []string{"kind"}),
		MalformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sipscan_malformed_total",
			Help: "Total number of malformed SIP records skipped",
		}),
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sipscan_files_total",
			Help: "Total number of capture files processed",
		}, []string{"status"}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sipscan_frames_total",
			Help: "Total number of capture frames by pipeline stage",
		}, []string{"stage"}),
		FileDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sipscan_file_duration_seconds",
			Help:    "Time spent processing one capture file",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
		}),
	}

	m.registry.MustRegister(
		m.RecordsTotal,
		m.MessagesTotal,
		m.MalformedTotal,
		m.FilesTotal,
		m.FramesTotal,
		m.FileDurationSeconds,
	)
	// Pre-create label values so the textfile always lists them.
	m.MessagesTotal.WithLabelValues(string(analyzer.KindRegister))
	m.MessagesTotal.WithLabelValues(string(analyzer.KindInvite))
	m.FilesTotal.WithLabelValues(StatusOK)
	m.FilesTotal.WithLabelValues(StatusFailed)
	return m
}

// Registry exposes the batch registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSummary accounts the classified records of one completed file.
// Files that fail are left out so the counters agree with the batch totals.
// Safe for concurrent use.
func (m *Metrics) ObserveSummary(sum analyzer.Summary) {
	m.RecordsTotal.Add(float64(sum.TotalRecords))
	m.MessagesTotal.WithLabelValues(string(analyzer.KindRegister)).Add(float64(sum.RegisterCount))
	m.MessagesTotal.WithLabelValues(string(analyzer.KindInvite)).Add(float64(sum.InviteCount))
	m.MalformedTotal.Add(float64(sum.Malformed))
}

// ObserveFile accounts one finished capture file.
func (m *Metrics) ObserveFile(err error, elapsed time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.FilesTotal.WithLabelValues(status).Inc()
	m.FileDurationSeconds.Observe(elapsed.Seconds())
}

// AddFrames adds n frames to a pipeline stage.
func (m *Metrics) AddFrames(stage string, n uint64) {
	if n == 0 {
		return
	}
	m.FramesTotal.WithLabelValues(stage).Add(float64(n))
}

// WriteTextfile writes the registry in the text exposition format for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
