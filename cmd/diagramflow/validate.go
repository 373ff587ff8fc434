package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/diagramflow"
	"github.com/aretw0/diagramflow/internal/cli"
	"github.com/aretw0/diagramflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check diagram files against the structural rules",
	Long:  `Validates each Mermaid file (or Stdin with "-") without rendering it. Exits non-zero when any file is invalid.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		render := tui.NewRenderer(tui.IsTerminal(os.Stdout))

		failed := 0
		for _, path := range args {
			source, err := cli.ReadSource(path)
			if err != nil {
				return err
			}
			res := diagramflow.Validate(source)
			if !res.Valid {
				failed++
			}

			report := tui.ValidationReport(filepath.Base(path), source, res)
			if rendered, err := render(report); err == nil {
				report = rendered
			}
			fmt.Fprint(out, report)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d diagrams invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
