package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kass/go-room-rank/pkg/models"
	"github.com/kass/go-room-rank/pkg/postgis"
	"github.com/spf13/cobra"
)

const (
	sourceFile    = "file"
	sourcePostGIS = "postgis"
)

// inputFlags select where rooms are read from.
type inputFlags struct {
	path   string
	source string
	strict bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "input", "i", "", "Rooms JSON file (- for stdin)")
	cmd.Flags().StringVar(&f.source, "source", sourceFile, "Room source: file or postgis")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Fail on invalid room records instead of skipping them")
}

// loadRooms reads rooms from the selected source. Invalid records are logged
// and skipped unless strict is set.
func (a *app) loadRooms(ctx context.Context, in inputFlags) ([]models.Room, error) {
	switch in.source {
	case sourcePostGIS:
		store, err := postgis.NewRoomStore(ctx, a.cfg.PostGIS)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		store.SetLogger(a.log.With("component", "postgis").Logger)
		return store.LoadRooms(ctx)

	case sourceFile, "":
		r, closeFn, err := openInput(in.path)
		if err != nil {
			return nil, err
		}
		defer closeFn()

		rooms, err := models.DecodeRooms(r)
		if err != nil {
			if in.strict || !errors.Is(err, models.ErrInvalidRoom) {
				return nil, err
			}
			a.log.Warn("skipped invalid rooms", "error", err)
		}
		a.log.Debug("loaded rooms", "count", len(rooms), "input", in.path)
		return rooms, nil

	default:
		return nil, fmt.Errorf("unknown source %q: use %s or %s", in.source, sourceFile, sourcePostGIS)
	}
}

func openInput(path string) (io.Reader, func() error, error) {
	switch path {
	case "":
		return nil, nil, errors.New("no input: use --input rooms.json or --input - for stdin")
	case "-":
		return os.Stdin, func() error { return nil }, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open rooms: %w", err)
	}
	return file, file.Close, nil
}

// filterFlags build FilterCriteria from the command line.
type filterFlags struct {
	criteriaPath string
	regions      []string
	amenities    []string
	furniture    []string
	minPrice     float64
	maxPrice     float64
	minArea      float64
	maxArea      float64
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.criteriaPath, "criteria", "", "Filter criteria JSON file")
	cmd.Flags().StringSliceVar(&f.regions, "region", nil, "District or province (repeatable, any may match)")
	cmd.Flags().StringSliceVar(&f.amenities, "amenity", nil, "Required amenity (repeatable)")
	cmd.Flags().StringSliceVar(&f.furniture, "furniture", nil, "Required furniture (repeatable)")
	cmd.Flags().Float64Var(&f.minPrice, "min-price", 0, "Minimum rent price")
	cmd.Flags().Float64Var(&f.maxPrice, "max-price", math.Inf(1), "Maximum rent price")
	cmd.Flags().Float64Var(&f.minArea, "min-area", 0, "Minimum area")
	cmd.Flags().Float64Var(&f.maxArea, "max-area", math.Inf(1), "Maximum area")
}

// criteria merges the criteria file, if any, with the flags. Flags win.
func (f *filterFlags) criteria(cmd *cobra.Command) (models.FilterCriteria, error) {
	var c models.FilterCriteria
	if f.criteriaPath != "" {
		data, err := os.ReadFile(f.criteriaPath)
		if err != nil {
			return c, fmt.Errorf("failed to read criteria: %w", err)
		}
		if err := json.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("failed to parse criteria %s: %w", f.criteriaPath, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("region") {
		c.Regions = f.regions
	}
	if flags.Changed("amenity") {
		c.Amenities = f.amenities
	}
	if flags.Changed("furniture") {
		c.Furniture = f.furniture
	}
	if flags.Changed("min-price") || flags.Changed("max-price") {
		c.PriceRange = &models.Range{Min: f.minPrice, Max: f.maxPrice}
	}
	if flags.Changed("min-area") || flags.Changed("max-area") {
		c.AreaRange = &models.Range{Min: f.minArea, Max: f.maxArea}
	}
	return c, nil
}

// locationFlags hold an optional point.
type locationFlags struct {
	lat, lon float64
}

func (f *locationFlags) register(cmd *cobra.Command, usage string) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, usage+" latitude")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, usage+" longitude")
}

// location returns nil when neither flag is set.
func (f *locationFlags) location(cmd *cobra.Command) (*models.Location, error) {
	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if !latSet && !lonSet {
		return nil, nil
	}
	if latSet != lonSet {
		return nil, errors.New("--lat and --lon must be given together")
	}
	if f.lat < -90 || f.lat > 90 || f.lon < -180 || f.lon > 180 {
		return nil, fmt.Errorf("location %.6f,%.6f is out of range", f.lat, f.lon)
	}
	return &models.Location{Lat: f.lat, Lon: f.lon}, nil
}

// requiredLocation is location for commands that need a point.
func (f *locationFlags) requiredLocation(cmd *cobra.Command) (models.Location, error) {
	loc, err := f.location(cmd)
	if err != nil {
		return models.Location{}, err
	}
	if loc == nil {
		return models.Location{}, errors.New("--lat and --lon are required")
	}
	return *loc, nil
}
