package main

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stwalsh4118/geomark/internal/logger"
	"github.com/stwalsh4118/geomark/internal/services"
)

// app holds the dependencies shared by every subcommand.
type app struct {
	log     *logger.Logger
	service services.GeoJSONService
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	root := &cobra.Command{
		Use:   "geomark",
		Short: "Convert between GeoJSON and map geometry records",
		Long: `geomark imports GeoJSON FeatureCollections into geometry records and
exports records back to GeoJSON.

Examples:
  geomark import shapes.geojson
  geomark import shapes.geojson --json > records.json
  geomark export records.json --points --polygons -o geojson.json
  geomark export records.json -o -`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			console := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}
			a.log = logger.NewWithWriter(console, "cli", logLevel)
			a.service = services.NewGeoJSONService(a.log, nil)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")

	root.AddCommand(newImportCmd(a))
	root.AddCommand(newExportCmd(a))

	return root
}
