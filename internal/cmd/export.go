package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	orbjson "github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/zonat/internal/geojson"
	"github.com/MeKo-Tech/zonat/internal/pipeline"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export zones, mask and legend as GeoJSON/JSON files",
	Long: `Load the delivery area once and write the rendered layers to disk:

  zones.geojson   colored zone polygons in paint order
  mask.geojson    the inverse mask with one hole per zone ring
  layers.geojson  mask and zones combined
  legend.json     legend entries`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output-dir", "o", "./export", "Output directory")

	if err := viper.BindPFlag("export.output_dir", exportCmd.Flags().Lookup("output-dir")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	outputDir := viper.GetString("export.output_dir")

	_, res, err := loadMap(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load delivery area: %w", err)
	}

	files, err := exportFiles(res, outputDir)
	if err != nil {
		return err
	}

	logger.Info("Export complete",
		"output_dir", outputDir,
		"files", files,
		"summary", geojson.LayerSummary(res.Overlay, res.Mask),
	)
	return nil
}

// exportFiles writes the layers of res into dir and returns the written file
// names. The mask file is omitted for an empty delivery area.
func exportFiles(res *pipeline.Result, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	writeFC := func(name string, fc *orbjson.FeatureCollection) error {
		data, err := geojson.ToGeoJSONBytes(fc)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, name)
		return nil
	}

	if err := writeFC("zones.geojson", geojson.Zones(res.Overlay)); err != nil {
		return nil, err
	}
	if res.Mask != nil {
		if err := writeFC("mask.geojson", geojson.Mask(res.Mask)); err != nil {
			return nil, err
		}
	}
	if err := writeFC("layers.geojson", geojson.Combined(res.Overlay, res.Mask, nil)); err != nil {
		return nil, err
	}

	legend, err := json.MarshalIndent(res.Legend.Entries(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode legend: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "legend.json"), legend, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write legend.json: %w", err)
	}
	written = append(written, "legend.json")

	return written, nil
}
