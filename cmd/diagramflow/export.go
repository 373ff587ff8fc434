package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/diagramflow/internal/cli"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Render a diagram and export it as PNG or SVG",
	Long:  `Validates and renders the file (or Stdin with "-"), then exports it. With --out the payload is written to that path, otherwise a timestamped file is created in the export directory.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		themeName, _ := cmd.Flags().GetString("theme")

		format, err := domain.ParseFormat(formatName)
		if err != nil {
			return err
		}

		source, err := cli.ReadSource(args[0])
		if err != nil {
			return err
		}

		app, err := loadApp(cmd, cli.Deps{})
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		if themeName != "" {
			theme, err := domain.ParseTheme(themeName)
			if err != nil {
				return err
			}
			app.Studio.SetTheme(ctx, theme)
		}

		app.Studio.OnChange(source)
		app.Studio.Flush()
		if s := app.Studio.Snapshot(); s.HasError() {
			return fmt.Errorf("%s: %s", args[0], s.ErrorMessage)
		}

		var d domain.Download
		if outPath == "" {
			d, err = app.Studio.ExportAs(ctx, format)
		} else {
			d, err = app.Studio.ExportTo(ctx, format, ports.SinkFunc(func(_ context.Context, d domain.Download) error {
				if dir := filepath.Dir(outPath); dir != "." {
					if err := os.MkdirAll(dir, 0755); err != nil {
						return err
					}
				}
				return os.WriteFile(outPath, d.Payload, 0644)
			}))
			d.Name = outPath
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%d bytes)\n", d.Name, len(d.Payload))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", "svg", "Export format: png or svg")
	exportCmd.Flags().StringP("out", "o", "", "Write the export to this path")
	exportCmd.Flags().String("theme", "", "Render with this theme (light or dark)")
}
