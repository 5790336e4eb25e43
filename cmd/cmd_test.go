package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/sipscan/internal/config"
	"firestige.xyz/sipscan/internal/core"
	"firestige.xyz/sipscan/internal/testutil"
)

func writeTraces(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	testutil.WritePcap(t, filepath.Join(dir, "a.pcap"),
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, testutil.Register), Time: base},
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, testutil.OK), Time: testutil.At(base, 10)},
	)
	testutil.WritePcap(t, filepath.Join(dir, "b.pcap"),
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, testutil.Invite), Time: base},
	)
	return dir
}

func testConfig(t *testing.T, traces string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Input.TracesDir = traces
	cfg.Output.Dir = filepath.Join(t.TempDir(), "output")
	cfg.Output.UTC = true
	require.NoError(t, cfg.ValidateAndApplyDefaults())
	return cfg
}

func TestRunBatch(t *testing.T) {
	cfg := testConfig(t, writeTraces(t))
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "sipscan.prom")

	var buf bytes.Buffer
	require.NoError(t, runBatch(context.Background(), cfg, &buf))

	out := buf.String()
	assert.Contains(t, out, "Processing: a.pcap")
	assert.Contains(t, out, "Processing: b.pcap")
	assert.Contains(t, out, "Total packets processed: 2")
	assert.Contains(t, out, "REGISTER messages found: 1")
	assert.Contains(t, out, "INVITE messages found: 1")
	assert.Contains(t, out, "All files processed successfully!")

	report, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "a.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Message Type: REGISTER")
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "b.txt"))

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sipscan_records_total 3")
}

func TestRunBatchMissingTraces(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "nope"))

	var buf bytes.Buffer
	err := runBatch(context.Background(), cfg, &buf)
	assert.ErrorIs(t, err, core.ErrTracesDirNotFound)
}

func TestRunBatchNoFiles(t *testing.T) {
	cfg := testConfig(t, t.TempDir())

	var buf bytes.Buffer
	err := runBatch(context.Background(), cfg, &buf)
	assert.ErrorIs(t, err, core.ErrNoInputFiles)
}

func TestRunBatchFailedFile(t *testing.T) {
	dir := writeTraces(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pcap"), []byte("not a capture"), 0o644))
	cfg := testConfig(t, dir)

	var buf bytes.Buffer
	err := runBatch(context.Background(), cfg, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files failed")
	assert.Contains(t, buf.String(), "Failed:")
	assert.NotContains(t, buf.String(), "All files processed successfully!")
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "a.txt"))
}

func TestRunAnalyzeStdout(t *testing.T) {
	dir := writeTraces(t)
	cfg := testConfig(t, dir)

	var buf bytes.Buffer
	files := []string{filepath.Join(dir, "a.pcap"), filepath.Join(dir, "b.pcap")}
	require.NoError(t, runAnalyze(context.Background(), cfg, files, "", &buf))

	out := buf.String()
	assert.Contains(t, out, "Input File: a.pcap")
	assert.Contains(t, out, "Input File: b.pcap")
	assert.Contains(t, out, "Timestamp: 2024-03-01 10:00:00.000000")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a.pcap")), bytes.Index(buf.Bytes(), []byte("b.pcap")))
	assert.NoDirExists(t, cfg.Output.Dir)
}

func TestRunAnalyzeOutputDir(t *testing.T) {
	dir := writeTraces(t)
	cfg := testConfig(t, dir)
	cfg.Output.Format = config.FormatJSON

	var buf bytes.Buffer
	out := t.TempDir()
	require.NoError(t, runAnalyze(context.Background(), cfg, []string{filepath.Join(dir, "a.pcap")}, out, &buf))

	assert.Contains(t, buf.String(), "Results saved in")
	assert.FileExists(t, filepath.Join(out, "a.json"))
}

func TestOverridesApply(t *testing.T) {
	var o overrides
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.register(fs, true)
	require.NoError(t, fs.Parse([]string{"-t", "/data/traces", "-f", "yaml", "--utc", "-w", "3"}))

	cfg := config.Default()
	require.NoError(t, o.apply(fs, cfg))

	assert.Equal(t, "/data/traces", cfg.Input.TracesDir)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.True(t, cfg.Output.UTC)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "output", cfg.Output.Dir, "unset flags keep config values")
	assert.Equal(t, "*.pcap", cfg.Input.Pattern)
}

func TestOverridesApplyInvalid(t *testing.T) {
	var o overrides
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.register(fs, true)
	require.NoError(t, fs.Parse([]string{"-f", "xml"}))

	assert.Error(t, o.apply(fs, config.Default()))
}

func TestRunValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sipscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sipscan:\n  workers: 2\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, runValidate(path, &buf))
	assert.Contains(t, buf.String(), "VALID:")
	assert.Contains(t, buf.String(), "2 worker(s)")
}

func TestRunValidateInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sipscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sipscan:\n  output:\n    format: xml\n"), 0o644))

	var buf bytes.Buffer
	assert.Error(t, runValidate(path, &buf))
	assert.Contains(t, buf.String(), "INVALID:")
}
