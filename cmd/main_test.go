package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kass/go-room-rank/pkg/models"
	"github.com/kass/go-room-rank/pkg/rtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rankedRoom struct {
	Room           models.Room `json:"room"`
	DistanceMeters *float64    `json:"distanceMeters"`
	Score          float64     `json:"score"`
}

// run executes roomrank with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func generateFile(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.json")
	_, err := run(t, "generate", "-n", strconv.Itoa(n), "--seed", "7", "-o", path)
	require.NoError(t, err)
	return path
}

func TestGenerateRooms(t *testing.T) {
	opts := generateOptions{
		count:        300,
		seed:         42,
		center:       models.Location{Lat: 21.0285, Lon: 105.8542},
		spreadMeters: 5000,
		now:          time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}

	first, err := generateRooms(opts)
	require.NoError(t, err)
	second, err := generateRooms(opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := json.Marshal(first)
	require.NoError(t, err)
	rooms, err := models.DecodeRooms(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rooms, 300)

	ids := make(map[string]bool)
	for _, r := range rooms {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true
		assert.Equal(t, "Hà Nội", r.Region.Province)
		if r.CreatedAt != nil {
			assert.False(t, r.CreatedAt.After(opts.now))
		}
	}
}

func TestRankCommand(t *testing.T) {
	input := generateFile(t, 200)

	out, err := run(t, "rank", "-i", input, "--lat", "21.0285", "--lon", "105.8542", "--json")
	require.NoError(t, err)

	var ranked []rankedRoom
	require.NoError(t, json.Unmarshal([]byte(out), &ranked))
	require.Len(t, ranked, 200)

	// Nearby rooms come first, then everything else.
	seenDistant := false
	for _, r := range ranked {
		near := r.DistanceMeters != nil && *r.DistanceMeters <= 6000
		if !near {
			seenDistant = true
		}
		assert.False(t, near && seenDistant, "nearby room %s after a distant one", r.Room.ID)
	}
}

func TestRankCommandWithoutLocation(t *testing.T) {
	input := generateFile(t, 200)

	out, err := run(t, "rank", "-i", input, "--json", "--limit", "20")
	require.NoError(t, err)

	var ranked []rankedRoom
	require.NoError(t, json.Unmarshal([]byte(out), &ranked))
	require.Len(t, ranked, 20)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
		assert.Nil(t, ranked[i].DistanceMeters)
	}
}

func TestRankCommandTable(t *testing.T) {
	input := generateFile(t, 200)

	out, err := run(t, "rank", "-i", input, "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "5 rooms")
}

func TestFilterCommand(t *testing.T) {
	input := generateFile(t, 200)

	out, err := run(t, "filter", "-i", input, "--amenity", "WiFi", "--region", "cầu giấy", "--max-price", "6000000", "--json")
	require.NoError(t, err)

	var rooms []models.Room
	require.NoError(t, json.Unmarshal([]byte(out), &rooms))
	for _, r := range rooms {
		assert.Contains(t, r.Amenities, "wifi")
		assert.Equal(t, "Cầu Giấy", r.Region.District)
		assert.LessOrEqual(t, r.RentPrice, 6000000.0)
	}
}

func TestFilterCommandCriteriaFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "rooms.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"id": "a", "amenities": ["wifi", "ac"], "rentPrice": 3000000},
		{"id": "b", "amenities": ["wifi"], "rentPrice": 3000000},
		{"id": "c", "amenities": ["wifi", "ac"], "rentPrice": 9000000}
	]`), 0o644))
	criteria := filepath.Join(dir, "criteria.json")
	require.NoError(t, os.WriteFile(criteria, []byte(`{
		"amenities": ["ac"],
		"priceRange": {"min": 0, "max": 5000000}
	}`), 0o644))

	out, err := run(t, "filter", "-i", input, "--criteria", criteria, "--json")
	require.NoError(t, err)

	var rooms []models.Room
	require.NoError(t, json.Unmarshal([]byte(out), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "a", rooms[0].ID)
}

func TestScoreCommand(t *testing.T) {
	input := filepath.Join(t.TempDir(), "rooms.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"id": "popular", "stats": {"viewCount": 1000, "favoriteCount": 100}, "status": "available"},
		{"id": "plain"}
	]`), 0o644))

	out, err := run(t, "score", "-i", input, "--id", "popular", "--json")
	require.NoError(t, err)

	var scores []roomScore
	require.NoError(t, json.Unmarshal([]byte(out), &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, 50.0, scores[0].Breakdown.View)
	assert.Equal(t, 30.0, scores[0].Breakdown.Favorite)
	assert.Equal(t, 90.0, scores[0].Total)

	_, err = run(t, "score", "-i", input, "--id", "missing")
	assert.Error(t, err)
}

func TestNearbyCommand(t *testing.T) {
	input := generateFile(t, 200)

	out, err := run(t, "nearby", "-i", input, "--lat", "21.0285", "--lon", "105.8542", "--radius", "3000", "--json")
	require.NoError(t, err)

	var results []rankedRoom
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	for i, r := range results {
		require.NotNil(t, r.DistanceMeters)
		assert.LessOrEqual(t, *r.DistanceMeters, 3000.0)
		if i > 0 {
			assert.GreaterOrEqual(t, *r.DistanceMeters, *results[i-1].DistanceMeters)
		}
	}
}

func TestIndexAndViewportCommands(t *testing.T) {
	input := generateFile(t, 200)
	snapshot := filepath.Join(t.TempDir(), "rooms.gob")

	out, err := run(t, "index", "-i", input, "-o", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "Index saved")

	viewport := []string{"--min-lat", "20.9", "--min-lon", "105.7", "--max-lat", "21.2", "--max-lon", "106.0"}

	out, err = run(t, append([]string{"viewport", "-i", input, "--json"}, viewport...)...)
	require.NoError(t, err)
	var fromInput []models.Room
	require.NoError(t, json.Unmarshal([]byte(out), &fromInput))

	out, err = run(t, append([]string{"viewport", "--index", snapshot, "--json"}, viewport...)...)
	require.NoError(t, err)
	var fromSnapshot []models.Room
	require.NoError(t, json.Unmarshal([]byte(out), &fromSnapshot))
	assert.Equal(t, len(fromInput), len(fromSnapshot))

	out, err = run(t, append([]string{"viewport", "--index", snapshot, "--clusters", "--precision", "4", "--json"}, viewport...)...)
	require.NoError(t, err)
	var clusters []rtree.Cluster
	require.NoError(t, json.Unmarshal([]byte(out), &clusters))
	total := 0
	for _, c := range clusters {
		total += c.Count
		assert.Len(t, c.Hash, 4)
	}
	assert.Equal(t, len(fromInput), total)
}

func TestBenchCommand(t *testing.T) {
	input := generateFile(t, 300)

	out, err := run(t, "bench", "-i", input, "-t", "mixed", "-q", "40", "-w", "4", "--json")
	require.NoError(t, err)

	var results []benchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 4)
	for _, res := range results {
		assert.Equal(t, 10, res.TotalQueries)
		assert.Zero(t, res.Failed)
		assert.Equal(t, 4, res.Workers)
	}

	_, err = run(t, "bench", "-i", input, "-t", "teleport")
	assert.Error(t, err)
}

func TestCommandErrors(t *testing.T) {
	input := generateFile(t, 10)

	testCases := []struct {
		name string
		args []string
		msg  string
	}{
		{"missing input", []string{"rank"}, "no input"},
		{"lat without lon", []string{"rank", "-i", input, "--lat", "21"}, "together"},
		{"out of range", []string{"rank", "-i", input, "--lat", "91", "--lon", "0"}, "out of range"},
		{"unknown source", []string{"filter", "-i", input, "--source", "mongo"}, "unknown source"},
		{"negative radius", []string{"nearby", "-i", input, "--lat", "21", "--lon", "105", "--radius=-5"}, "non-negative"},
		{"inverted viewport", []string{"viewport", "-i", input, "--min-lat", "22", "--min-lon", "105", "--max-lat", "21", "--max-lon", "106"}, "invalid viewport"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.msg), err.Error())
		})
	}
}
