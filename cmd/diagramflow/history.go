package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aretw0/diagramflow/internal/cli"
	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Validate a diagram and save it to the configured store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := cli.ReadSource(args[0])
		if err != nil {
			return err
		}

		app, err := loadApp(cmd, cli.Deps{})
		if err != nil {
			return err
		}
		defer app.Close()

		app.Studio.OnChange(source)
		app.Studio.Flush()
		if s := app.Studio.Snapshot(); s.HasError() {
			return fmt.Errorf("%s: %s", args[0], s.ErrorMessage)
		}

		s, err := app.Studio.Save(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", s.RecordID)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved diagrams, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd, cli.Deps{})
		if err != nil {
			return err
		}
		defer app.Close()

		records, err := app.Studio.Records(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSAVED\tTHEME\tDIAGRAM")
		for _, r := range records {
			first, _, _ := strings.Cut(strings.TrimSpace(r.Source), "\n")
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Timestamp.Local().Format(time.DateTime), r.Theme, first)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(saveCmd, historyCmd)
}
