package ranking

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/kass/go-room-rank/pkg/geo"
	"github.com/kass/go-room-rank/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

// north returns the point meters due north of from.
func north(from models.Location, meters float64) *models.Location {
	return &models.Location{
		Lat: from.Lat + meters/geo.EarthRadiusMeters*180/math.Pi,
		Lon: from.Lon,
	}
}

// withScore returns a room whose default-weight score is views/10.
func withScore(id string, score float64, coords *models.Location) models.Room {
	return models.Room{
		ID:          id,
		Coordinates: coords,
		Stats:       models.Stats{ViewCount: score * 10},
	}
}

func ids(rooms []models.ScoredRoom) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.Room.ID
	}
	return out
}

func TestScoreViewCapOnly(t *testing.T) {
	room := models.Room{ID: "B", Stats: models.Stats{ViewCount: 1000}}
	assert.Equal(t, 50.0, Score(room, refNow, DefaultWeights()))
}

func TestScoreComponents(t *testing.T) {
	created := refNow.Add(-10 * day)
	room := models.Room{
		ID: "full",
		Stats: models.Stats{
			ViewCount:     100,
			FavoriteCount: 10,
			ContractCount: 1000,
		},
		CreatedAt: &created,
		Status:    models.StatusAvailable,
		Amenities: []string{"wifi", "ac", "parking"},
		Furniture: []string{"bed", "desk", "wardrobe", "fridge", "sofa", "tv", "stove", "table", "chair", "fan", "lamp"},
	}

	b := Breakdown(room, refNow, DefaultWeights())
	assert.InDelta(t, 10, b.View, 1e-9)
	assert.InDelta(t, 5, b.Favorite, 1e-9)
	assert.InDelta(t, 20, b.Contract, 1e-9)
	assert.InDelta(t, 25, b.Recency, 1e-9)
	assert.Equal(t, 10.0, b.Available)
	assert.InDelta(t, 6, b.Amenity, 1e-9)
	assert.InDelta(t, 15, b.Furniture, 1e-9)
	assert.InDelta(t, 91, b.Total(), 1e-9)
	assert.Equal(t, b.Total(), Score(room, refNow, DefaultWeights()))
}

func TestScoreRecency(t *testing.T) {
	testCases := []struct {
		name     string
		created  *time.Time
		expected float64
	}{
		{"no creation date", nil, 0},
		{"created now", ptr(refNow), 30},
		{"ten days old", ptr(refNow.Add(-10 * day)), 25},
		{"sixty days old", ptr(refNow.Add(-60 * day)), 0},
		{"a year old", ptr(refNow.Add(-365 * day)), 0},
		{"created in the future", ptr(refNow.Add(5 * day)), 30},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			room := models.Room{ID: "r", CreatedAt: tc.created}
			assert.InDelta(t, tc.expected, Breakdown(room, refNow, DefaultWeights()).Recency, 1e-9)
		})
	}
}

func TestScoreStatusBonus(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 10.0, Score(models.Room{Status: "available"}, refNow, w))
	assert.Equal(t, 0.0, Score(models.Room{Status: "rented"}, refNow, w))
	assert.Equal(t, 0.0, Score(models.Room{Status: "Available"}, refNow, w))
}

func TestScoreBounds(t *testing.T) {
	w := DefaultWeights()
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		room := randomRoom(r, i)
		s := Score(room, refNow, w)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, w.MaxScore())
		assert.LessOrEqual(t, s, 195.0)
		assert.False(t, math.IsNaN(s) || math.IsInf(s, 0))
	}
}

func TestScoreIgnoresNaN(t *testing.T) {
	room := models.Room{Stats: models.Stats{ViewCount: math.NaN(), FavoriteCount: math.Inf(1)}}
	assert.Equal(t, 30.0, Score(room, refNow, DefaultWeights()))
}

func TestRankEmpty(t *testing.T) {
	user := &models.Location{Lat: 21.03, Lon: 105.85}
	assert.Empty(t, Rank(nil, nil, DefaultRankOptions(refNow)))
	assert.Empty(t, Rank([]models.Room{}, user, DefaultRankOptions(refNow)))
}

func TestRankWithoutLocationIsStable(t *testing.T) {
	rooms := []models.Room{
		withScore("1", 10, nil),
		withScore("2", 20, nil),
		withScore("3", 20, nil),
	}

	ranked := Rank(rooms, nil, DefaultRankOptions(refNow))
	assert.Equal(t, []string{"2", "3", "1"}, ids(ranked))
	for _, s := range ranked {
		assert.True(t, math.IsInf(s.DistanceMeters, 1))
	}
}

func TestRankStabilityProperty(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	rooms := make([]models.Room, 200)
	for i := range rooms {
		// few distinct scores so ties are common
		rooms[i] = withScore(fmt.Sprintf("r%03d", i), float64(r.Intn(5)), nil)
	}

	ranked := Rank(rooms, nil, DefaultRankOptions(refNow))
	require.Len(t, ranked, len(rooms))
	for i := 1; i < len(ranked); i++ {
		prev, cur := ranked[i-1], ranked[i]
		require.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			assert.Less(t, prev.Room.ID, cur.Room.ID, "tied rooms must keep input order")
		}
	}
}

func TestRankSameLocationIsNearby(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{withScore("A", 1, &models.Location{Lat: 21.03, Lon: 105.85})}

	for _, maxDist := range []float64{0, 1, 6000} {
		opts := DefaultRankOptions(refNow)
		opts.MaxDistanceMeters = maxDist

		ranked := Rank(rooms, &user, opts)
		require.Len(t, ranked, 1)
		assert.Equal(t, 0.0, ranked[0].DistanceMeters)
		assert.LessOrEqual(t, ranked[0].DistanceMeters, maxDist)
	}
}

func TestRankTieBreakByScore(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{
		withScore("near-400", 10, north(user, 400)),
		withScore("far-800", 50, north(user, 800)),
	}

	opts := DefaultRankOptions(refNow)
	opts.MaxDistanceMeters = 1000

	ranked := Rank(rooms, &user, opts)
	assert.Equal(t, []string{"far-800", "near-400"}, ids(ranked))
	assert.InDelta(t, 400, ranked[1].DistanceMeters, 0.01)
	assert.InDelta(t, 800, ranked[0].DistanceMeters, 0.01)
}

func TestRankNearbyByDistance(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{
		withScore("3km", 50, north(user, 3000)),
		withScore("1km", 1, north(user, 1000)),
		withScore("2km", 20, north(user, 2000)),
	}

	ranked := Rank(rooms, &user, DefaultRankOptions(refNow))
	assert.Equal(t, []string{"1km", "2km", "3km"}, ids(ranked))
}

func TestRankPartition(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{
		withScore("distant-popular", 50, north(user, 9000)),
		withScore("no-coords", 45, nil),
		withScore("nearby-dull", 0, north(user, 5000)),
		withScore("distant-dull", 5, north(user, 20000)),
		withScore("nearby-popular", 40, north(user, 100)),
	}

	ranked := Rank(rooms, &user, DefaultRankOptions(refNow))
	assert.Equal(t, []string{"nearby-popular", "nearby-dull", "distant-popular", "no-coords", "distant-dull"}, ids(ranked))
	assert.True(t, math.IsInf(ranked[3].DistanceMeters, 1))
}

func TestRankPartitionProperty(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	r := rand.New(rand.NewSource(9))

	rooms := make([]models.Room, 300)
	for i := range rooms {
		rooms[i] = randomRoom(r, i)
		if r.Intn(10) > 0 {
			rooms[i].Coordinates = &models.Location{
				Lat: user.Lat + (r.Float64()-0.5)*0.2,
				Lon: user.Lon + (r.Float64()-0.5)*0.2,
			}
		}
	}

	opts := DefaultRankOptions(refNow)
	ranked := Rank(rooms, &user, opts)
	require.Len(t, ranked, len(rooms))

	seenDistant := false
	for _, s := range ranked {
		isNearby := s.DistanceMeters <= opts.MaxDistanceMeters
		if !isNearby {
			seenDistant = true
		}
		assert.False(t, isNearby && seenDistant, "nearby room %s after a distant one", s.Room.ID)
	}
}

func TestRankMissingCoordinatesAllDistant(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{
		withScore("a", 5, nil),
		withScore("b", 30, nil),
		withScore("c", 30, nil),
		withScore("d", 12, nil),
	}

	ranked := Rank(rooms, &user, DefaultRankOptions(refNow))
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(ranked))
	for _, s := range ranked {
		assert.True(t, math.IsInf(s.DistanceMeters, 1))
	}
}

func TestRankZeroRadius(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{
		withScore("popular-1m", 50, north(user, 1)),
		withScore("here", 0, &models.Location{Lat: user.Lat, Lon: user.Lon}),
	}

	opts := DefaultRankOptions(refNow)
	opts.MaxDistanceMeters = 0

	ranked := Rank(rooms, &user, opts)
	assert.Equal(t, []string{"here", "popular-1m"}, ids(ranked))
}

func TestRankDoesNotMutateInput(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{
		withScore("a", 1, north(user, 100)),
		withScore("b", 2, nil),
		withScore("c", 3, north(user, 10000)),
	}
	before := make([]models.Room, len(rooms))
	copy(before, rooms)

	_ = Rank(rooms, &user, DefaultRankOptions(refNow))
	_ = Rank(rooms, nil, DefaultRankOptions(refNow))
	assert.Equal(t, before, rooms)
}

func TestRankerUsesClockOnce(t *testing.T) {
	calls := 0
	clock := func() time.Time {
		calls++
		return refNow
	}
	created := refNow.Add(-2 * day)
	rooms := []models.Room{
		{ID: "a", CreatedAt: &created},
		{ID: "b", CreatedAt: &created},
		{ID: "c", CreatedAt: &created},
	}

	ranker := NewRanker(DefaultWeights(), WithClock(clock))
	ranked := ranker.Rank(rooms, nil)

	assert.Equal(t, 1, calls)
	for _, s := range ranked {
		assert.InDelta(t, 29, s.Score, 1e-9)
	}
}

func TestRankerOptions(t *testing.T) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	rooms := []models.Room{
		withScore("near", 1, north(user, 100)),
		withScore("mid", 40, north(user, 1500)),
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ranker := NewRanker(DefaultWeights(),
		WithClock(func() time.Time { return refNow }),
		WithMaxDistance(1000),
		WithTieBreak(2000),
		WithLogger(logger))

	ranked := ranker.Rank(rooms, &user)
	assert.Equal(t, []string{"near", "mid"}, ids(ranked))
	assert.Contains(t, buf.String(), "ranked rooms")
	assert.Contains(t, buf.String(), "nearby=1")

	// With the wider radius the tie-break span puts the popular room first.
	ranker = NewRanker(DefaultWeights(),
		WithClock(func() time.Time { return refNow }),
		WithMaxDistance(2000),
		WithTieBreak(2000))
	assert.Equal(t, []string{"mid", "near"}, ids(ranker.Rank(rooms, &user)))
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Equal(t, 175.0, DefaultWeights().MaxScore())

	w := DefaultWeights()
	w.Favorite.Cap = -1
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)

	w = DefaultWeights()
	w.Recency.DecayPerDay = -0.5
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)

	w = DefaultWeights()
	w.AvailableBonus = -10
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func randomRoom(r *rand.Rand, i int) models.Room {
	room := models.Room{
		ID: fmt.Sprintf("room_%d", i),
		Stats: models.Stats{
			ViewCount:     float64(r.Intn(5000)),
			FavoriteCount: float64(r.Intn(200)),
			ContractCount: float64(r.Intn(200)),
		},
		Amenities: make([]string, r.Intn(15)),
		Furniture: make([]string, r.Intn(15)),
	}
	if r.Intn(2) == 0 {
		room.Status = models.StatusAvailable
	}
	if r.Intn(4) > 0 {
		created := refNow.Add(-time.Duration(r.Int63n(int64(400 * day))))
		room.CreatedAt = &created
	}
	return room
}

func BenchmarkRank(b *testing.B) {
	user := models.Location{Lat: 21.03, Lon: 105.85}
	r := rand.New(rand.NewSource(1))
	rooms := make([]models.Room, 5000)
	for i := range rooms {
		rooms[i] = randomRoom(r, i)
		rooms[i].Coordinates = &models.Location{
			Lat: user.Lat + (r.Float64()-0.5)*0.3,
			Lon: user.Lon + (r.Float64()-0.5)*0.3,
		}
	}
	opts := DefaultRankOptions(refNow)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Rank(rooms, &user, opts)
	}
}
