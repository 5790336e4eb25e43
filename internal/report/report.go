// Package report renders per-file analysis results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"firestige.xyz/sipscan/internal/analyzer"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DateLayout is the analysis date format of the report header.
const DateLayout = "2006-01-02 15:04:05"

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Extension returns the file extension reports of this format are written with.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".txt"
	}
}

// Report is the analysis of one capture file.
type Report struct {
	Input      string             `json:"input" yaml:"input"`
	AnalysedAt time.Time          `json:"analysed_at" yaml:"analysed_at"`
	Summary    analyzer.Summary   `json:"summary" yaml:"summary"`
	Findings   []analyzer.Finding `json:"findings" yaml:"findings"`
}

// New builds a report for the capture at path.
func New(path string, at time.Time, sum analyzer.Summary, findings []analyzer.Finding) Report {
	if findings == nil {
		findings = []analyzer.Finding{}
	}
	return Report{
		Input:      filepath.Base(path),
		AnalysedAt: at,
		Summary:    sum,
		Findings:   findings,
	}
}

// Render writes rep to w in the given format.
func Render(w io.Writer, rep Report, format Format) error {
	switch format {
	case FormatText, "":
		return renderText(w, rep)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown report format %q", format)
}

// OutputName maps a capture file name to its report file name.
func OutputName(input string, format Format) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + format.Extension()
}

// WriteFile renders rep into dir in one pass. The report is written to a
// temporary file next to the target and renamed into place, so a reader never
// sees a partial report. It returns the path written.
func WriteFile(dir string, rep Report, format Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	target := filepath.Join(dir, OutputName(rep.Input, format))

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Render(tmp, rep, format); err != nil {
		tmp.Close()
		return "", fmt.Errorf("render report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("install report: %w", err)
	}
	return target, nil
}
