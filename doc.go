/*
Package diagramflow is the core of an interactive diagram-authoring studio.

A user types Mermaid source; the studio validates it, renders it through an external
engine after a quiet period, and exports the result as a raster (PNG) or vector (SVG)
image. Saved documents and the theme preference live in a pluggable key-value store.

# Concept

A single session moves through a small state machine (idle, loaded, editing, rendering,
error, saved, exporting, theme-change). Each status determines whether rendering and
exporting are allowed. Renders are debounced and tagged with a request counter so a slow
render can never overwrite the result of a newer one. Exports run an ordered pipeline and
report progress from 0 to 100.

The package follows a Hexagonal Architecture: the rendering engine, the export encoder,
the store and the download sink are ports, with adapters under pkg/adapters.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/diagramflow"
		"github.com/aretw0/diagramflow/pkg/adapters/process"
		"github.com/aretw0/diagramflow/pkg/domain"
	)

	func main() {
		runner := process.NewRunner(process.WithRegistry(process.DefaultTools()))

		studio, err := diagramflow.New(
			diagramflow.WithRenderer(process.NewRenderer(runner, "")),
		)
		if err != nil {
			log.Fatal(err)
		}
		defer studio.Close()

		// Every keystroke goes through OnChange; rendering happens 500ms after the last one.
		studio.OnChange("graph TD\n  A[Start] --> B[End]")
		studio.Flush()

		// Vector export works out of the box; raster needs a rasterizer.
		ctx := context.Background()
		d, err := studio.ExportAs(ctx, domain.FormatVector)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("wrote", d.Name)
	}
*/
package diagramflow
