package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/sipscan/internal/config"
	"firestige.xyz/sipscan/internal/report"
	"firestige.xyz/sipscan/internal/task"
)

var analyzeFlags overrides

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Analyze specific capture files",
	Long: `Analyze the given capture files. Reports are printed to stdout unless an
output directory is given.

Examples:
  sipscan analyze call.pcap                   # text report on stdout
  sipscan analyze -f json a.pcap b.pcapng     # JSON reports on stdout
  sipscan analyze -o reports *.pcap           # write reports/<name>.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags(), &analyzeFlags)
		if err != nil {
			return err
		}
		outputDir := ""
		if cmd.Flags().Changed("output") {
			outputDir = cfg.Output.Dir
		}
		return runAnalyze(cmd.Context(), cfg, args, outputDir, cmd.OutOrStdout())
	},
}

func init() {
	analyzeFlags.register(analyzeCmd.Flags(), false)
}

// runAnalyze processes files. With an empty outputDir the reports are
// rendered to out in argument order.
func runAnalyze(ctx context.Context, cfg *config.Config, files []string, outputDir string, out io.Writer) error {
	opts, err := managerOptions(cfg, outputDir)
	if err != nil {
		return err
	}
	batch := task.NewManager(opts, nil).Run(ctx, files)

	for i, f := range batch.Files {
		if f.Err != nil {
			continue
		}
		if outputDir != "" {
			fmt.Fprintf(out, "Results saved in '%s'\n", f.Output)
			continue
		}
		if i > 0 && opts.Format == report.FormatText {
			fmt.Fprintln(out)
		}
		if err := report.Render(out, f.Report, opts.Format); err != nil {
			return err
		}
	}

	if err := batch.Err(); err != nil {
		return fmt.Errorf("%d of %d files failed: %w", batch.Failed, len(batch.Files), err)
	}
	return nil
}
