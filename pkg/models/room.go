package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// StatusAvailable is the only room status that earns the availability bonus.
const StatusAvailable = "available"

// Stats carries the engagement counters of a room listing.
type Stats struct {
	ViewCount     float64 `json:"viewCount"`
	FavoriteCount float64 `json:"favoriteCount"`
	ContractCount float64 `json:"contractCount"`
}

// Region holds the free-text administrative labels of a room.
type Region struct {
	District string `json:"district,omitempty"`
	Province string `json:"province,omitempty"`
}

// Room is the fully-populated view of a listing that ranking and filtering read.
// Values are produced once at the boundary by Normalize / DecodeRooms.
type Room struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Coordinates *Location  `json:"coordinates,omitempty"` // nil when absent or malformed
	Stats       Stats      `json:"stats"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Status      string     `json:"status,omitempty"`
	Amenities   []string   `json:"amenities"`
	Furniture   []string   `json:"furniture"`
	RentPrice   float64    `json:"rentPrice"`
	Area        float64    `json:"area"`
	Region      Region     `json:"location"`
}

// IsAvailable reports whether the room is listed as available.
func (r Room) IsAvailable() bool {
	return r.Status == StatusAvailable
}

// ScoredRoom is a Room augmented with the values computed while ranking.
type ScoredRoom struct {
	Room           Room
	DistanceMeters float64 // +Inf when the distance is unknown
	Score          float64
}

// MarshalJSON writes an unknown distance as null since JSON has no infinity.
func (s ScoredRoom) MarshalJSON() ([]byte, error) {
	var dist *float64
	if !math.IsInf(s.DistanceMeters, 0) && !math.IsNaN(s.DistanceMeters) {
		d := s.DistanceMeters
		dist = &d
	}
	return json.Marshal(struct {
		Room           Room     `json:"room"`
		DistanceMeters *float64 `json:"distanceMeters"`
		Score          float64  `json:"score"`
	}{s.Room, dist, s.Score})
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether min <= v <= max.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// FilterCriteria is the set of attribute selections built from UI filters.
// Empty lists and nil ranges do not restrict.
type FilterCriteria struct {
	Amenities  []string `json:"amenities"`
	Furniture  []string `json:"furniture"`
	Regions    []string `json:"regions"`
	PriceRange *Range   `json:"priceRange,omitempty"`
	AreaRange  *Range   `json:"areaRange,omitempty"`
}

// IsEmpty reports whether the criteria admit every room.
func (c FilterCriteria) IsEmpty() bool {
	return len(nonBlank(c.Amenities)) == 0 &&
		len(nonBlank(c.Furniture)) == 0 &&
		len(nonBlank(c.Regions)) == 0 &&
		c.PriceRange == nil && c.AreaRange == nil
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
