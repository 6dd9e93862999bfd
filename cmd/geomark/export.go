package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stwalsh4118/geomark/internal/geojson"
	"github.com/stwalsh4118/geomark/internal/models"
	"github.com/stwalsh4118/geomark/internal/services"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		points, lines, polygons bool
		output                  string
	)

	cmd := &cobra.Command{
		Use:     "export <records.json>",
		Aliases: []string{"e"},
		Short:   "Export geometry records as GeoJSON",
		Long: `Export geometry records as a GeoJSON FeatureCollection.

The input is a JSON array of records, or the output of "geomark import --json".
Use --points, --lines, and --polygons to choose categories; all are exported
when none is given.

Examples:
  geomark export records.json
  geomark export records.json --polygons -o parcels.geojson
  geomark export records.json -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			records, err := decodeRecords(data)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			req := exportRequest(records, points, lines, polygons)
			doc, err := a.service.Export(cmd.Context(), req)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return err
			}

			if err := os.WriteFile(output, doc, 0644); err != nil { //nolint:gosec // exported documents are meant to be shared
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().BoolVar(&points, "points", false, "export point records")
	cmd.Flags().BoolVar(&lines, "lines", false, "export line records")
	cmd.Flags().BoolVar(&polygons, "polygons", false, "export polygon records")
	cmd.Flags().StringVarP(&output, "output", "o", geojson.Filename, "output file, or - for stdout")

	return cmd
}

// decodeRecords accepts a bare array of records or an object with a
// "records" array.
func decodeRecords(data []byte) (models.Records, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records models.Records
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var wrapped struct {
		Records *models.Records `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Records == nil {
		return nil, fmt.Errorf("expected an array of records or an object with \"records\"")
	}
	return *wrapped.Records, nil
}

// exportRequest files each record under its category and selects the
// categories whose flags are set, or all of them when none are.
func exportRequest(records models.Records, points, lines, polygons bool) services.ExportRequest {
	var req services.ExportRequest
	req.Points, req.Lines, req.Polygons = records.Group()

	if !points && !lines && !polygons {
		req.Include = services.AllCategories
		return req
	}
	if points {
		req.Include = append(req.Include, services.CategoryPoints)
	}
	if lines {
		req.Include = append(req.Include, services.CategoryLines)
	}
	if polygons {
		req.Include = append(req.Include, services.CategoryPolygons)
	}
	return req
}
