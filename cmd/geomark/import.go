package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stwalsh4118/geomark/internal/geojson"
	"github.com/stwalsh4118/geomark/internal/models"
	"github.com/stwalsh4118/geomark/internal/services"
)

// importOutput is the --json form of an import, readable by the export command.
type importOutput struct {
	Records models.Records `json:"records"`
	Skipped []geojson.Skip `json:"skipped"`
}

func newImportCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "import <file>",
		Aliases: []string{"i"},
		Short:   "Import a GeoJSON FeatureCollection",
		Long: `Import a GeoJSON FeatureCollection and report the records it contains.

Point, LineString, Polygon, and MultiPolygon features are imported. Each
MultiPolygon becomes one polygon record per part. Features that cannot be
imported are listed with their index and the reason.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			result, err := a.service.Import(cmd.Context(), services.Upload{
				Filename: filepath.Base(path),
				Data:     data,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(importOutput{Records: result.Records, Skipped: result.Skipped})
			}

			printImportSummary(out, filepath.Base(path), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")

	return cmd
}

func printImportSummary(w io.Writer, name string, result *geojson.ImportResult) {
	counts := result.Records.CountByKind()

	color.New(color.FgGreen).Fprintf(w, "✓ Imported %d records from %s\n", len(result.Records), name)
	fmt.Fprintf(w, "  points:   %d\n", counts[models.KindPoint])
	fmt.Fprintf(w, "  lines:    %d\n", counts[models.KindLineString])
	fmt.Fprintf(w, "  polygons: %d\n", counts[models.KindPolygon])

	if result.SkippedCount() == 0 {
		return
	}

	color.New(color.FgYellow).Fprintf(w, "⚠ Skipped %d features\n", result.SkippedCount())
	faint := color.New(color.Faint)
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "  %s %s\n", faint.Sprintf("[%d]", s.Index), s.Reason)
	}
}
