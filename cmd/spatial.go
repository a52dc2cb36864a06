package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kass/go-room-rank/pkg/models"
	"github.com/kass/go-room-rank/pkg/postgis"
	"github.com/kass/go-room-rank/pkg/ranking"
	"github.com/kass/go-room-rank/pkg/render"
	"github.com/kass/go-room-rank/pkg/rtree"
	"github.com/spf13/cobra"
)

// buildIndex loads a saved index snapshot, or indexes rooms from the input.
func (a *app) buildIndex(ctx context.Context, in inputFlags, snapshot string) (*rtree.RoomIndex, error) {
	index := rtree.NewRoomIndexWithPartitions(a.cfg.Index.Partitions)
	index.SetLogger(a.log.With("component", "index").Logger)

	start := time.Now()
	if snapshot != "" {
		if err := index.LoadFromFile(snapshot); err != nil {
			return nil, err
		}
		a.log.Debug("loaded index", "file", snapshot, "rooms", index.Count(), "elapsed", time.Since(start))
		return index, nil
	}

	rooms, err := a.loadRooms(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := index.IndexRooms(rooms); err != nil {
		return nil, err
	}
	a.log.Debug("built index", "rooms", index.Count(), "elapsed", time.Since(start))
	return index, nil
}

func (a *app) nearbyCmd() *cobra.Command {
	var (
		in       inputFlags
		center   locationFlags
		snapshot string
		radius   float64
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List rooms within a radius, nearest first",
		Example: `  roomrank nearby -i rooms.json --lat 21.0285 --lon 105.8542 --radius 2000
  roomrank nearby --source postgis --lat 21.0285 --lon 105.8542`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := center.requiredLocation(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("radius") {
				radius = a.cfg.Ranking.MaxDistanceMeters
			}

			var results []models.ScoredRoom
			if in.source == sourcePostGIS && snapshot == "" {
				results, err = a.queryStoreRadius(cmd.Context(), loc, radius)
			} else {
				var index *rtree.RoomIndex
				index, err = a.buildIndex(cmd.Context(), in, snapshot)
				if err == nil {
					results, err = index.QueryRadius(loc, radius)
				}
			}
			if err != nil {
				return err
			}

			now, weights := a.now(), a.cfg.Ranking.Weights
			for i := range results {
				results[i].Score = ranking.Score(results[i].Room, now, weights)
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			if asJSON {
				return render.JSON(a.out, results)
			}
			a.printer().Ranked(results, radius)
			return nil
		},
	}

	in.register(cmd)
	center.register(cmd, "Center")
	cmd.Flags().StringVar(&snapshot, "index", "", "Saved index file to query instead of --input")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 0, "Search radius in meters (default: ranking max distance)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n rooms (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) queryStoreRadius(ctx context.Context, center models.Location, radius float64) ([]models.ScoredRoom, error) {
	store, err := postgis.NewRoomStore(ctx, a.cfg.PostGIS)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.QueryRadius(ctx, center, radius)
}

// boxFlags hold a map viewport.
type boxFlags struct {
	minLat, minLon, maxLat, maxLon float64
}

func (f *boxFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.minLat, "min-lat", 0, "Viewport bottom latitude")
	cmd.Flags().Float64Var(&f.minLon, "min-lon", 0, "Viewport left longitude")
	cmd.Flags().Float64Var(&f.maxLat, "max-lat", 0, "Viewport top latitude")
	cmd.Flags().Float64Var(&f.maxLon, "max-lon", 0, "Viewport right longitude")
	for _, name := range []string{"min-lat", "min-lon", "max-lat", "max-lon"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (f *boxFlags) box() (models.BoundingBox, error) {
	box := models.BoundingBox{
		BottomLeft: models.Location{Lat: f.minLat, Lon: f.minLon},
		TopRight:   models.Location{Lat: f.maxLat, Lon: f.maxLon},
	}
	if !box.Valid() {
		return box, errors.New("invalid viewport: min corner must be below and left of max corner")
	}
	return box, nil
}

func (a *app) viewportCmd() *cobra.Command {
	var (
		in        inputFlags
		viewport  boxFlags
		snapshot  string
		clusters  bool
		precision uint
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "viewport",
		Short: "List rooms inside a map viewport, or their marker clusters",
		Example: `  roomrank viewport -i rooms.json --min-lat 20.95 --min-lon 105.75 --max-lat 21.10 --max-lon 105.90 --clusters`,
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := viewport.box()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("precision") {
				precision = a.cfg.Index.ClusterPrecision
			}

			if in.source == sourcePostGIS && snapshot == "" && !clusters {
				store, err := postgis.NewRoomStore(cmd.Context(), a.cfg.PostGIS)
				if err != nil {
					return err
				}
				defer store.Close()

				rooms, err := store.QueryBox(cmd.Context(), box)
				if err != nil {
					return err
				}
				return a.printRooms(rooms, asJSON)
			}

			index, err := a.buildIndex(cmd.Context(), in, snapshot)
			if err != nil {
				return err
			}

			if clusters {
				found, err := index.Clusters(box, precision)
				if err != nil {
					return err
				}
				if asJSON {
					return render.JSON(a.out, found)
				}
				a.printer().Clusters(found)
				return nil
			}

			rooms, err := index.QueryBox(box)
			if err != nil {
				return err
			}
			return a.printRooms(rooms, asJSON)
		},
	}

	in.register(cmd)
	viewport.register(cmd)
	cmd.Flags().StringVar(&snapshot, "index", "", "Saved index file to query instead of --input")
	cmd.Flags().BoolVar(&clusters, "clusters", false, "Group rooms into geohash marker clusters")
	cmd.Flags().UintVar(&precision, "precision", 0, "Geohash precision for clusters, 1-12 (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) printRooms(rooms []models.Room, asJSON bool) error {
	if asJSON {
		return render.JSON(a.out, rooms)
	}
	a.printer().Rooms(rooms)
	return nil
}

func (a *app) indexCmd() *cobra.Command {
	var (
		in     inputFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the map index from rooms and save it to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			index, err := a.buildIndex(cmd.Context(), in, "")
			if err != nil {
				return err
			}
			if err := index.SaveToFile(output); err != nil {
				return fmt.Errorf("failed to save index: %w", err)
			}

			p := a.printer()
			p.Title("Index saved")
			p.Stat("rooms", index.Count())
			p.Stat("file", output)
			p.Stat("elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "rooms_index.gob", "Index file path")
	return cmd
}
