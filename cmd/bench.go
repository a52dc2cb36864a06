package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-room-rank/pkg/geo"
	"github.com/kass/go-room-rank/pkg/models"
	"github.com/kass/go-room-rank/pkg/ranking"
	"github.com/kass/go-room-rank/pkg/render"
	"github.com/kass/go-room-rank/pkg/rtree"
	"github.com/spf13/cobra"
)

// benchResult summarises one benchmark run.
type benchResult struct {
	QueryType     string        `json:"queryType"`
	TotalQueries  int           `json:"totalQueries"`
	Failed        int64         `json:"failed"`
	TotalDuration time.Duration `json:"totalDuration"`
	AvgDuration   time.Duration `json:"avgDuration"`
	MinDuration   time.Duration `json:"minDuration"`
	MaxDuration   time.Duration `json:"maxDuration"`
	QueriesPerSec float64       `json:"queriesPerSec"`
	TotalResults  int64         `json:"totalResults"`
	AvgResults    float64       `json:"avgResults"`
	Workers       int           `json:"workers"`
}

type benchOptions struct {
	queryType string
	queries   int
	workers   int
	seed      int64
	radius    float64
	boxMeters float64
	k         int
}

// query runs one benchmark query and returns the number of results.
type query func(r *rand.Rand) (int, error)

func (a *app) benchCmd() *cobra.Command {
	var (
		in       inputFlags
		snapshot string
		opts     benchOptions
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark map queries and ranking against an index",
		Long: `Run concurrent random queries centered inside the indexed rooms' extent.
Query types: box, radius, nearest, rank (radius search then ranking) and mixed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.queries <= 0 || opts.workers <= 0 {
				return fmt.Errorf("queries and workers must be positive")
			}

			index, err := a.buildIndex(cmd.Context(), in, snapshot)
			if err != nil {
				return err
			}
			rooms, err := index.Rooms()
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				return fmt.Errorf("no indexed rooms to benchmark against")
			}
			extent := roomExtent(rooms)

			queries := map[string]query{
				"box":     boxQuery(index, extent, opts.boxMeters),
				"radius":  radiusQuery(index, extent, opts.radius),
				"nearest": nearestQuery(index, extent, opts.k),
				"rank":    rankQuery(index, a.ranker(), extent, opts.radius),
			}

			var results []benchResult
			if opts.queryType == "mixed" {
				per := max(opts.queries/4, 1)
				for _, name := range []string{"box", "radius", "nearest", "rank"} {
					results = append(results, runBenchmark(name, queries[name], per, opts.workers, opts.seed))
				}
			} else {
				q, ok := queries[opts.queryType]
				if !ok {
					return fmt.Errorf("unknown query type %q", opts.queryType)
				}
				results = append(results, runBenchmark(opts.queryType, q, opts.queries, opts.workers, opts.seed))
			}

			if asJSON {
				return render.JSON(a.out, results)
			}
			p := a.printer()
			for _, res := range results {
				p.Title(fmt.Sprintf("Benchmark: %s", res.QueryType))
				p.Stat("queries", res.TotalQueries)
				p.Stat("failed", res.Failed)
				p.Stat("total duration", res.TotalDuration)
				p.Stat("average duration", res.AvgDuration)
				p.Stat("min / max", fmt.Sprintf("%v / %v", res.MinDuration, res.MaxDuration))
				p.Stat("queries per second", fmt.Sprintf("%.2f", res.QueriesPerSec))
				p.Stat("avg results per query", fmt.Sprintf("%.2f", res.AvgResults))
				p.Stat("workers", res.Workers)
			}
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&snapshot, "index", "", "Saved index file to benchmark instead of --input")
	cmd.Flags().StringVarP(&opts.queryType, "type", "t", "mixed", "Query type: box, radius, nearest, rank, mixed")
	cmd.Flags().IntVarP(&opts.queries, "queries", "q", 1000, "Number of queries to run")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed for query locations")
	cmd.Flags().Float64Var(&opts.radius, "radius", 6000, "Radius in meters for radius and rank queries")
	cmd.Flags().Float64Var(&opts.boxMeters, "box-size", 2000, "Half-width of box queries in meters")
	cmd.Flags().IntVarP(&opts.k, "neighbors", "k", 20, "Number of nearest neighbors")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// runBenchmark runs n queries on a pool of workers.
func runBenchmark(name string, q query, n, workers int, seed int64) benchResult {
	var (
		totalResults atomic.Int64
		failed       atomic.Int64
		minDuration  = time.Duration(1<<63 - 1)
		maxDuration  time.Duration
		sumDuration  time.Duration
		mu           sync.Mutex
	)

	start := time.Now()

	queryCh := make(chan int, n)
	for i := 0; i < n; i++ {
		queryCh <- i
	}
	close(queryCh)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(worker)))

			for range queryCh {
				queryStart := time.Now()
				count, err := q(r)
				queryDuration := time.Since(queryStart)

				if err != nil {
					failed.Add(1)
					continue
				}
				totalResults.Add(int64(count))

				mu.Lock()
				sumDuration += queryDuration
				minDuration = min(minDuration, queryDuration)
				maxDuration = max(maxDuration, queryDuration)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	totalDuration := time.Since(start)

	res := benchResult{
		QueryType:     name,
		TotalQueries:  n,
		Failed:        failed.Load(),
		TotalDuration: totalDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults.Load(),
		Workers:       workers,
	}
	if ok := int64(n) - res.Failed; ok > 0 {
		res.AvgDuration = sumDuration / time.Duration(ok)
		res.MinDuration = minDuration
		res.AvgResults = float64(res.TotalResults) / float64(ok)
	}
	if totalDuration > 0 {
		res.QueriesPerSec = float64(n) / totalDuration.Seconds()
	}
	return res
}

// roomExtent is the bounding box of the rooms' coordinates.
func roomExtent(rooms []models.Room) models.BoundingBox {
	box := models.BoundingBox{
		BottomLeft: models.Location{Lat: 90, Lon: 180},
		TopRight:   models.Location{Lat: -90, Lon: -180},
	}
	for _, r := range rooms {
		if r.Coordinates == nil {
			continue
		}
		box.BottomLeft.Lat = min(box.BottomLeft.Lat, r.Coordinates.Lat)
		box.BottomLeft.Lon = min(box.BottomLeft.Lon, r.Coordinates.Lon)
		box.TopRight.Lat = max(box.TopRight.Lat, r.Coordinates.Lat)
		box.TopRight.Lon = max(box.TopRight.Lon, r.Coordinates.Lon)
	}
	return box
}

func randomPoint(r *rand.Rand, box models.BoundingBox) models.Location {
	return models.Location{
		Lat: box.BottomLeft.Lat + r.Float64()*(box.TopRight.Lat-box.BottomLeft.Lat),
		Lon: box.BottomLeft.Lon + r.Float64()*(box.TopRight.Lon-box.BottomLeft.Lon),
	}
}

func boxQuery(index *rtree.RoomIndex, extent models.BoundingBox, halfWidth float64) query {
	return func(r *rand.Rand) (int, error) {
		center := randomPoint(r, extent)
		rooms, err := index.QueryBox(geo.BoundsAround(center, halfWidth))
		return len(rooms), err
	}
}

func radiusQuery(index *rtree.RoomIndex, extent models.BoundingBox, radius float64) query {
	return func(r *rand.Rand) (int, error) {
		rooms, err := index.QueryRadius(randomPoint(r, extent), radius)
		return len(rooms), err
	}
}

func nearestQuery(index *rtree.RoomIndex, extent models.BoundingBox, k int) query {
	return func(r *rand.Rand) (int, error) {
		return len(index.NearestNeighbors(randomPoint(r, extent), k)), nil
	}
}

// rankQuery mimics a map search: fetch the rooms around the user, then rank them.
func rankQuery(index *rtree.RoomIndex, ranker *ranking.Ranker, extent models.BoundingBox, radius float64) query {
	return func(r *rand.Rand) (int, error) {
		user := randomPoint(r, extent)
		found, err := index.QueryRadius(user, radius*2)
		if err != nil {
			return 0, err
		}
		rooms := make([]models.Room, len(found))
		for i, f := range found {
			rooms[i] = f.Room
		}
		return len(ranker.Rank(rooms, &user)), nil
	}
}
