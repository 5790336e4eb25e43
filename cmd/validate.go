package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/sipscan/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration (file, defaults and SIPSCAN_* environment)
without processing any capture.

Examples:
  sipscan validate -c sipscan.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.OutOrStdout())
	},
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "INVALID: %v\n", err)
		return err
	}

	fmt.Fprintf(out, "VALID: traces %s/%s -> %s (%s), %d worker(s), SIP ports %v\n",
		cfg.Input.TracesDir,
		cfg.Input.Pattern,
		cfg.Output.Dir,
		cfg.Output.Format,
		cfg.Workers,
		cfg.Input.SIPPorts,
	)
	return nil
}
