// Package rtree implements an in-memory R-Tree index of rooms for map-based
// search, with longitude-band partitions queried in parallel.
package rtree

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/kass/go-room-rank/pkg/geo"
	"github.com/kass/go-room-rank/pkg/models"
)

const (
	tolerance   = 1e-7
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialRoom wraps a room to implement the rtreego.Spatial interface
type spatialRoom struct {
	room models.Room
	loc  models.Location
	rect rtreego.Rect
}

func (sr *spatialRoom) Bounds() rtreego.Rect {
	return sr.rect
}

// RoomIndex is a thread-safe R-Tree based index of room locations
type RoomIndex struct {
	partitions      []*rtreego.Rtree
	partitionBounds []models.BoundingBox
	mu              sync.RWMutex
	itemCount       atomic.Int64
	log             *slog.Logger
}

// NewRoomIndex creates a room index with one partition per CPU
func NewRoomIndex() *RoomIndex {
	return NewRoomIndexWithPartitions(runtime.NumCPU())
}

// NewRoomIndexWithPartitions creates a room index with the given number of
// longitude bands. A non-positive count means one per CPU.
func NewRoomIndexWithPartitions(numPartitions int) *RoomIndex {
	if numPartitions <= 0 {
		numPartitions = runtime.NumCPU()
	}

	partitions := make([]*rtreego.Rtree, numPartitions)
	partitionBounds := make([]models.BoundingBox, numPartitions)

	lonRange := 360.0 / float64(numPartitions)
	for i := 0; i < numPartitions; i++ {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)

		minLon := -180.0 + float64(i)*lonRange
		maxLon := minLon + lonRange
		if i == numPartitions-1 {
			maxLon = 180.0
		}

		partitionBounds[i] = models.BoundingBox{
			BottomLeft: models.Location{Lat: -90, Lon: minLon},
			TopRight:   models.Location{Lat: 90, Lon: maxLon},
		}
	}

	return &RoomIndex{
		partitions:      partitions,
		partitionBounds: partitionBounds,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger used for debug records.
func (g *RoomIndex) SetLogger(log *slog.Logger) {
	if log != nil {
		g.log = log
	}
}

// IndexRooms adds rooms to the index. Rooms without coordinates are skipped.
func (g *RoomIndex) IndexRooms(rooms []models.Room) error {
	if len(rooms) == 0 {
		return nil
	}

	numPartitions := len(g.partitions)
	partitioned := make([][]*spatialRoom, numPartitions)

	skipped := 0
	for _, room := range rooms {
		if room.Coordinates == nil {
			skipped++
			continue
		}

		loc := *room.Coordinates
		p := rtreego.Point{loc.Lat, loc.Lon}
		idx := g.partitionFor(loc.Lon)
		partitioned[idx] = append(partitioned[idx], &spatialRoom{
			room: room,
			loc:  loc,
			rect: p.ToRect(tolerance),
		})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var wg sync.WaitGroup
	var inserted atomic.Int64

	for i := 0; i < numPartitions; i++ {
		if len(partitioned[i]) == 0 {
			continue
		}

		wg.Add(1)
		go func(partitionIdx int, items []*spatialRoom) {
			defer wg.Done()

			for _, item := range items {
				g.partitions[partitionIdx].Insert(item)
			}
			inserted.Add(int64(len(items)))
		}(i, partitioned[i])
	}

	wg.Wait()
	g.itemCount.Add(inserted.Load())

	g.log.Debug("indexed rooms",
		"inserted", inserted.Load(),
		"skipped_without_coordinates", skipped,
		"total", g.itemCount.Load())
	return nil
}

// QueryBox returns the rooms inside a map viewport
func (g *RoomIndex) QueryBox(box models.BoundingBox) ([]models.Room, error) {
	items, err := g.searchBox(box)
	if err != nil {
		return nil, err
	}

	rooms := make([]models.Room, len(items))
	for i, item := range items {
		rooms[i] = item.room
	}
	return rooms, nil
}

// QueryRadius returns the rooms within meters of center, nearest first
func (g *RoomIndex) QueryRadius(center models.Location, meters float64) ([]models.ScoredRoom, error) {
	if meters < 0 {
		return nil, fmt.Errorf("invalid radius %.2f: must be non-negative", meters)
	}

	var results []models.ScoredRoom
	seen := make(map[*spatialRoom]struct{})
	for _, box := range geo.SearchBoxes(center, meters) {
		items, err := g.searchBox(box)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}

			dist := geo.Distance(center, item.loc)
			if dist <= meters {
				results = append(results, models.ScoredRoom{Room: item.room, DistanceMeters: dist})
			}
		}
	}
	sortByDistance(results)
	return results, nil
}

// NearestNeighbors returns up to n rooms nearest to center, nearest first
func (g *RoomIndex) NearestNeighbors(center models.Location, n int) []models.ScoredRoom {
	if n <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	resultsChan := make(chan []models.ScoredRoom, len(g.partitions))

	for i := range g.partitions {
		go func(idx int) {
			queryPoint := rtreego.Point{center.Lat, center.Lon}
			// Planar nearest neighbours differ from great-circle ones, so
			// over-fetch and re-rank by real distance.
			found := g.partitions[idx].NearestNeighbors(n*2, queryPoint)

			results := make([]models.ScoredRoom, 0, len(found))
			for _, f := range found {
				item, ok := f.(*spatialRoom)
				if !ok || item == nil {
					continue
				}
				results = append(results, models.ScoredRoom{
					Room:           item.room,
					DistanceMeters: geo.Distance(center, item.loc),
				})
			}
			resultsChan <- results
		}(i)
	}

	var all []models.ScoredRoom
	for range g.partitions {
		all = append(all, <-resultsChan...)
	}

	sortByDistance(all)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Count returns the number of indexed rooms
func (g *RoomIndex) Count() int64 {
	return g.itemCount.Load()
}

// Clear removes all rooms from the index
func (g *RoomIndex) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.partitions {
		g.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	g.itemCount.Store(0)
}

// searchBox collects the indexed items strictly inside box from every
// partition the box overlaps.
func (g *RoomIndex) searchBox(box models.BoundingBox) ([]*spatialRoom, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("invalid bounding box: bottom-left %+v is above or right of top-right %+v",
			box.BottomLeft, box.TopRight)
	}

	bounds, err := rtreego.NewRect(
		rtreego.Point{box.BottomLeft.Lat, box.BottomLeft.Lon},
		[]float64{
			max(box.TopRight.Lat-box.BottomLeft.Lat, tolerance),
			max(box.TopRight.Lon-box.BottomLeft.Lon, tolerance),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	relevant := g.relevantPartitions(box)
	resultsChan := make(chan []*spatialRoom, len(relevant))

	for _, partitionIdx := range relevant {
		go func(idx int) {
			found := g.partitions[idx].SearchIntersect(bounds)

			items := make([]*spatialRoom, 0, len(found))
			for _, f := range found {
				item, ok := f.(*spatialRoom)
				if !ok || item == nil {
					continue
				}
				// Strict boundary check
				if box.Contains(item.loc) {
					items = append(items, item)
				}
			}
			resultsChan <- items
		}(partitionIdx)
	}

	var all []*spatialRoom
	for range relevant {
		all = append(all, <-resultsChan...)
	}
	// Partition results arrive in any order; keep output deterministic.
	sort.Slice(all, func(i, j int) bool { return all[i].room.ID < all[j].room.ID })
	return all, nil
}

// relevantPartitions returns the indices of partitions that intersect with the given bounding box
func (g *RoomIndex) relevantPartitions(box models.BoundingBox) []int {
	var relevant []int
	for i, bounds := range g.partitionBounds {
		if box.BottomLeft.Lon <= bounds.TopRight.Lon &&
			box.TopRight.Lon >= bounds.BottomLeft.Lon {
			relevant = append(relevant, i)
		}
	}
	return relevant
}

func (g *RoomIndex) partitionFor(lon float64) int {
	numPartitions := len(g.partitions)
	idx := int((lon + 180.0) / (360.0 / float64(numPartitions)))
	if idx >= numPartitions {
		idx = numPartitions - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func sortByDistance(rooms []models.ScoredRoom) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].DistanceMeters == rooms[j].DistanceMeters {
			return rooms[i].Room.ID < rooms[j].Room.ID
		}
		return rooms[i].DistanceMeters < rooms[j].DistanceMeters
	})
}
