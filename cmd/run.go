package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"firestige.xyz/sipscan/internal/config"
	"firestige.xyz/sipscan/internal/metrics"
	"firestige.xyz/sipscan/internal/task"
)

var runFlags overrides

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every capture file in the traces directory",
	Long: `Process every capture file matching the pattern in the traces directory and
write one report per file into the output directory.

Examples:
  sipscan run                                 # traces/*.pcap -> output/*.txt
  sipscan run -t /data/traces -o /data/out    # explicit directories
  sipscan run -c sipscan.yaml -f json -w 4    # JSON reports, 4 files at a time
  sipscan run --bpf "udp port 5060"           # only look at UDP 5060 frames`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags(), &runFlags)
		if err != nil {
			return err
		}
		return runBatch(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	runFlags.register(runCmd.Flags(), true)
}

// runBatch discovers the capture files and processes them. It fails when the
// traces directory is missing, nothing matches, or any file failed.
func runBatch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	files, err := task.Discover(cfg.Input.TracesDir, cfg.Input.Pattern)
	if err != nil {
		return err
	}

	opts, err := managerOptions(cfg, cfg.Output.Dir)
	if err != nil {
		return err
	}
	m := metrics.New()
	batch := task.NewManager(opts, m).Run(ctx, files)

	for _, f := range batch.Files {
		fmt.Fprintf(out, "\nProcessing: %s\n", filepath.Base(f.Path))
		if f.Err != nil {
			fmt.Fprintf(out, "Failed: %v\n", f.Err)
			continue
		}
		printSummary(out, f)
		fmt.Fprintf(out, "Results saved in '%s'\n", f.Output)
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}

	if err := batch.Err(); err != nil {
		return fmt.Errorf("%d of %d files failed: %w", batch.Failed, len(batch.Files), err)
	}
	fmt.Fprintln(out, "\nAll files processed successfully!")
	return nil
}

func printSummary(out io.Writer, f task.FileResult) {
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "Total packets processed: %d\n", f.Summary.TotalRecords)
	fmt.Fprintf(out, "REGISTER messages found: %d\n", f.Summary.RegisterCount)
	fmt.Fprintf(out, "INVITE messages found: %d\n", f.Summary.InviteCount)
}
