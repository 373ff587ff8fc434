package main

import (
	"os"
	"strings"

	"github.com/aretw0/diagramflow"
	"github.com/aretw0/diagramflow/internal/cli"
	"github.com/aretw0/diagramflow/internal/presentation/tui"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-render a diagram whenever the file changes",
	Long:  `Watches the file and feeds each change through the debounced renderer, printing the session status. With --export the diagram is exported after every successful render.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exportName, _ := cmd.Flags().GetString("export")
		var format domain.Format
		if exportName != "" {
			f, err := domain.ParseFormat(exportName)
			if err != nil {
				return err
			}
			format = f
		}

		hooks, rendered := cli.RenderNotifier()
		app, err := loadApp(cmd, cli.Deps{Hooks: hooks})
		if err != nil {
			return err
		}
		defer app.Close()

		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(diagramflow.Version))
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		return cli.RunWatch(sigCtx, app, rendered, cli.WatchOptions{
			Path:   args[0],
			Export: format,
			Out:    cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("export", "", "Export after each render: png or svg")
}
