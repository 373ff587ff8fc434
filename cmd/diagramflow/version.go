package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/diagramflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of diagramflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "diagramflow version %s\n", strings.TrimSpace(diagramflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
