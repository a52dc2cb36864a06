package ranking

import (
	"math"
	"time"

	"github.com/kass/go-room-rank/pkg/models"
)

const day = 24 * time.Hour

// ScoreBreakdown holds each capped contribution to a room's score.
type ScoreBreakdown struct {
	View      float64 `json:"view"`
	Favorite  float64 `json:"favorite"`
	Contract  float64 `json:"contract"`
	Recency   float64 `json:"recency"`
	Available float64 `json:"available"`
	Amenity   float64 `json:"amenity"`
	Furniture float64 `json:"furniture"`
}

// Total sums the contributions.
func (b ScoreBreakdown) Total() float64 {
	return b.View + b.Favorite + b.Contract + b.Recency + b.Available + b.Amenity + b.Furniture
}

// Breakdown computes every score component of room relative to now.
//
// Recency is the only time-dependent part: callers ranking a batch should
// capture now once and reuse it for every room.
func Breakdown(room models.Room, now time.Time, w Weights) ScoreBreakdown {
	b := ScoreBreakdown{
		View:      capped(room.Stats.ViewCount*w.View.Factor, w.View.Cap),
		Favorite:  capped(room.Stats.FavoriteCount*w.Favorite.Factor, w.Favorite.Cap),
		Contract:  capped(room.Stats.ContractCount*w.Contract.Factor, w.Contract.Cap),
		Amenity:   capped(float64(len(room.Amenities))*w.Amenity.Factor, w.Amenity.Cap),
		Furniture: capped(float64(len(room.Furniture))*w.Furniture.Factor, w.Furniture.Cap),
	}

	// A missing creation date neither rewards nor penalises the room.
	if room.CreatedAt != nil {
		days := float64(now.Sub(*room.CreatedAt)) / float64(day)
		b.Recency = capped(w.Recency.Max-days*w.Recency.DecayPerDay, w.Recency.Max)
	}

	if room.IsAvailable() {
		b.Available = math.Max(0, w.AvailableBonus)
	}
	return b
}

// Score returns the popularity, freshness and quality score of room.
func Score(room models.Room, now time.Time, w Weights) float64 {
	return Breakdown(room, now, w).Total()
}

// capped clamps v to [0, limit]; NaN counts as zero.
func capped(v, limit float64) float64 {
	if math.IsNaN(v) || v <= 0 || limit <= 0 {
		return 0
	}
	return math.Min(v, limit)
}
