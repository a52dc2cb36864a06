package rtree

import (
	"fmt"
	"sort"

	"github.com/kass/go-room-rank/pkg/models"
	"github.com/mmcloughlin/geohash"
)

// Cluster is a map marker standing for every room in one geohash cell.
type Cluster struct {
	Hash    string          `json:"hash"`
	Center  models.Location `json:"center"`
	Count   int             `json:"count"`
	RoomIDs []string        `json:"roomIds"`
}

// Clusters groups the rooms inside box by geohash cell of the given
// precision (1-12 characters), largest cluster first.
func (g *RoomIndex) Clusters(box models.BoundingBox, precision uint) ([]Cluster, error) {
	if precision < 1 || precision > 12 {
		return nil, fmt.Errorf("invalid geohash precision %d: must be between 1 and 12", precision)
	}

	items, err := g.searchBox(box)
	if err != nil {
		return nil, err
	}

	byHash := make(map[string]*Cluster)
	for _, item := range items {
		hash := geohash.EncodeWithPrecision(item.loc.Lat, item.loc.Lon, precision)
		c, ok := byHash[hash]
		if !ok {
			lat, lon := geohash.DecodeCenter(hash)
			c = &Cluster{Hash: hash, Center: models.Location{Lat: lat, Lon: lon}}
			byHash[hash] = c
		}
		c.Count++
		c.RoomIDs = append(c.RoomIDs, item.room.ID)
	}

	clusters := make([]Cluster, 0, len(byHash))
	for _, c := range byHash {
		clusters = append(clusters, *c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Count == clusters[j].Count {
			return clusters[i].Hash < clusters[j].Hash
		}
		return clusters[i].Count > clusters[j].Count
	})
	return clusters, nil
}
