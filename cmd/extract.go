// File: cmd/extract.go
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/medipilot/internal/observability"
	"github.com/xkilldash9x/medipilot/internal/plan"
)

func newExtractCmd(a *app) *cobra.Command {
	var asJSON bool

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Read the lab values on screen without touching the EMR",
		Long: `extract perceives the screen once per attempt and asks the extraction
model for the lab values it shows. No input is sent to the desktop.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd, map[string]string{"replay-dir": "perception.replay_dir"}); err != nil {
				return err
			}
			// Extraction never dispatches input.
			a.v.Set("execution.driver", "dryrun")
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			components, err := a.factory.Create(ctx, a.cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			defer components.Shutdown()

			session := components.Pilot.NewSession(a.cfg.Task().Instruction)
			findings, err := components.Pilot.Extract(ctx, session)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(findings)
			}
			printFindings(out, findings)
			fmt.Fprintf(out, "\nTask context:\n%s\n", session.TaskContext)
			return nil
		},
	}

	extractCmd.Flags().BoolVar(&asJSON, "json", false, "Print the findings as JSON.")
	extractCmd.Flags().String("replay-dir", "", "Read frames from this directory instead of the screen. (Overrides config/env)")
	return extractCmd
}

func printFindings(w io.Writer, findings []plan.Finding) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE\tUNIT\tCONFIDENCE")
	for _, f := range findings {
		conf := "-"
		if f.Confidence > 0 {
			conf = fmt.Sprintf("%.2f", f.Confidence)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Metric, f.Value, f.Unit, conf)
	}
	_ = tw.Flush()
}
