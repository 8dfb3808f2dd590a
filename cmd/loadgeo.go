package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shoppulse/registry-cli/internal/boundary"
)

var loadGeoCmd = &cobra.Command{
	Use:   "load-geo",
	Short: "Load boundary layers and the SSIC lookup into dimensions",
	Long:  "Loads the subzone and planning-area boundary files (GeoJSON or shapefile) into their dimension tables and refreshes the industry-code lookup.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, closePool, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closePool()

		if cfg.Boundary.SubzonePath != "" {
			layer, err := loadLayer(cfg.Boundary.SubzonePath, "subzone", boundary.Keys{
				ID:     boundary.SubzoneIDKeys,
				Name:   boundary.SubzoneNameKeys,
				Parent: boundary.SubzoneParentKeys,
			})
			if err != nil {
				return err
			}
			n, err := s.LoadSubzones(ctx, layer)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d subzones\n", n)
		}

		if cfg.Boundary.PlanningAreaPath != "" {
			layer, err := loadLayer(cfg.Boundary.PlanningAreaPath, "planning_area", boundary.Keys{
				ID:   boundary.PlanningIDKeys,
				Name: boundary.PlanningNameKeys,
			})
			if err != nil {
				return err
			}
			n, err := s.LoadPlanningAreas(ctx, layer)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d planning areas\n", n)
		}

		if cfg.Boundary.SSICPath != "" {
			n, err := s.LoadSSIC(ctx, cfg.Boundary.SSICPath)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d SSIC codes\n", n)
		}

		return nil
	},
}

// loadLayer picks the reader by file extension.
func loadLayer(path, name string, keys boundary.Keys) (*boundary.Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return boundary.LoadGeoJSON(path, name, keys)
	case ".shp":
		return boundary.LoadShapefile(path, name, keys)
	default:
		return nil, eris.Errorf("unsupported boundary file %s", path)
	}
}

func init() { rootCmd.AddCommand(loadGeoCmd) }
