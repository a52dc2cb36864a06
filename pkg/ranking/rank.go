// Package ranking scores rooms and orders them for display, favouring nearby,
// popular and fresh listings.
//
// Without a user location rooms are ordered by score. With one, rooms within
// the nearby radius come first ordered by distance (rooms whose distances are
// closer than the tie-break span are ordered by score instead), followed by
// the remaining rooms ordered by score.
package ranking

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/kass/go-room-rank/pkg/geo"
	"github.com/kass/go-room-rank/pkg/models"
)

const (
	// DefaultMaxDistanceMeters is the default nearby radius.
	DefaultMaxDistanceMeters = 6000.0
	// DefaultTieBreakMeters is the distance span inside which score decides.
	DefaultTieBreakMeters = 500.0
)

// RankOptions parameterise Rank.
type RankOptions struct {
	MaxDistanceMeters float64
	TieBreakMeters    float64
	Weights           Weights
	Now               time.Time
}

// DefaultRankOptions returns the default radius, tie-break span and weights,
// scoring relative to now.
func DefaultRankOptions(now time.Time) RankOptions {
	return RankOptions{
		MaxDistanceMeters: DefaultMaxDistanceMeters,
		TieBreakMeters:    DefaultTieBreakMeters,
		Weights:           DefaultWeights(),
		Now:               now,
	}
}

// Rank orders rooms for display. The input slice is not modified.
//
// When user is nil every room is scored and the result is a stable sort by
// score, descending, with DistanceMeters left at +Inf. Otherwise rooms are
// split into nearby (distance <= MaxDistanceMeters) and distant rooms, and
// nearby rooms always precede distant ones. Rooms without coordinates are
// always distant.
func Rank(rooms []models.Room, user *models.Location, opts RankOptions) []models.ScoredRoom {
	scored := make([]models.ScoredRoom, len(rooms))
	for i, room := range rooms {
		scored[i] = models.ScoredRoom{
			Room:           room,
			DistanceMeters: math.Inf(1),
			Score:          Score(room, opts.Now, opts.Weights),
		}
	}

	if user == nil {
		sortByScore(scored)
		return scored
	}

	nearby := make([]models.ScoredRoom, 0, len(scored))
	distant := make([]models.ScoredRoom, 0, len(scored))
	for _, s := range scored {
		s.DistanceMeters = geo.DistanceFrom(*user, s.Room.Coordinates)
		if s.DistanceMeters <= opts.MaxDistanceMeters {
			nearby = append(nearby, s)
		} else {
			distant = append(distant, s)
		}
	}

	sortByProximity(nearby, opts.TieBreakMeters)
	sortByScore(distant)

	return append(nearby, distant...)
}

func sortByScore(rooms []models.ScoredRoom) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].Score > rooms[j].Score
	})
}

// sortByProximity orders by distance, except that rooms whose distances
// differ by less than tieBreak are ordered by score.
func sortByProximity(rooms []models.ScoredRoom, tieBreak float64) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		if math.Abs(a.DistanceMeters-b.DistanceMeters) < tieBreak {
			return a.Score > b.Score
		}
		return a.DistanceMeters < b.DistanceMeters
	})
}

// Ranker ranks rooms with fixed weights and thresholds. It is safe for
// concurrent use.
type Ranker struct {
	weights     Weights
	maxDistance float64
	tieBreak    float64
	clock       func() time.Time
	log         *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithClock sets the source of the reference time used for recency.
func WithClock(clock func() time.Time) Option {
	return func(r *Ranker) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger used for debug records.
func WithLogger(log *slog.Logger) Option {
	return func(r *Ranker) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMaxDistance sets the nearby radius in meters.
func WithMaxDistance(meters float64) Option {
	return func(r *Ranker) { r.maxDistance = meters }
}

// WithTieBreak sets the distance span in meters inside which score decides.
func WithTieBreak(meters float64) Option {
	return func(r *Ranker) { r.tieBreak = meters }
}

// NewRanker creates a Ranker using the default radius and tie-break span
// unless overridden by opts.
func NewRanker(w Weights, opts ...Option) *Ranker {
	r := &Ranker{
		weights:     w,
		maxDistance: DefaultMaxDistanceMeters,
		tieBreak:    DefaultTieBreakMeters,
		clock:       time.Now,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Weights returns the weights the ranker scores with.
func (r *Ranker) Weights() Weights {
	return r.weights
}

// Rank orders rooms around user (which may be nil). The clock is read once
// so every room is scored against the same instant.
func (r *Ranker) Rank(rooms []models.Room, user *models.Location) []models.ScoredRoom {
	opts := RankOptions{
		MaxDistanceMeters: r.maxDistance,
		TieBreakMeters:    r.tieBreak,
		Weights:           r.weights,
		Now:               r.clock(),
	}
	ranked := Rank(rooms, user, opts)

	if r.log.Enabled(context.Background(), slog.LevelDebug) {
		nearby := 0
		for _, s := range ranked {
			if s.DistanceMeters <= r.maxDistance {
				nearby++
			}
		}
		r.log.Debug("ranked rooms",
			"rooms", len(ranked),
			"with_location", user != nil,
			"nearby", nearby,
			"max_distance_m", r.maxDistance)
	}
	return ranked
}

// Breakdown returns the score components of room at the current clock time.
func (r *Ranker) Breakdown(room models.Room) ScoreBreakdown {
	return Breakdown(room, r.clock(), r.weights)
}
