package models

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected *Location
	}{
		{"lon lat pair", `[105.85, 21.03]`, &Location{Lat: 21.03, Lon: 105.85}},
		{"first of several pairs", `[[105.8, 21.0], [106, 22]]`, &Location{Lat: 21.0, Lon: 105.8}},
		{"geojson point", `{"type":"Point","coordinates":[105.85,21.03]}`, &Location{Lat: 21.03, Lon: 105.85}},
		{"lat lon object", `{"lat":21.03,"lon":105.85}`, &Location{Lat: 21.03, Lon: 105.85}},
		{"lat lng object", `{"lat":21.03,"lng":105.85}`, &Location{Lat: 21.03, Lon: 105.85}},
		{"object without longitude", `{"lat":21.03}`, nil},
		{"missing", ``, nil},
		{"null", `null`, nil},
		{"single value", `[105.85]`, nil},
		{"three values", `[105.85, 21.03, 10]`, nil},
		{"strings", `["105.85", "21.03"]`, nil},
		{"latitude out of range", `[105.85, 121.03]`, nil},
		{"empty list", `[]`, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseCoordinates(json.RawMessage(tc.input)))
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	room, err := Normalize(RawRoom{ID: json.RawMessage(`"r1"`)})
	require.NoError(t, err)

	assert.Equal(t, "r1", room.ID)
	assert.Nil(t, room.Coordinates)
	assert.Nil(t, room.CreatedAt)
	assert.Equal(t, Stats{}, room.Stats)
	assert.Empty(t, room.Amenities)
	assert.Empty(t, room.Furniture)
	assert.False(t, room.IsAvailable())
}

func TestNormalizeMissingID(t *testing.T) {
	_, err := Normalize(RawRoom{Title: json.RawMessage(`"no id"`)})
	assert.True(t, errors.Is(err, ErrInvalidRoom))
}

func TestNormalizeIDForms(t *testing.T) {
	testCases := []struct {
		name     string
		raw      RawRoom
		expected string
	}{
		{"string id", RawRoom{ID: json.RawMessage(`"abc"`)}, "abc"},
		{"numeric id", RawRoom{ID: json.RawMessage(`42`)}, "42"},
		{"mongo id", RawRoom{MongoID: json.RawMessage(`"65f0c1"`)}, "65f0c1"},
		{"extended json id", RawRoom{MongoID: json.RawMessage(`{"$oid":"65f0c2"}`)}, "65f0c2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			room, err := Normalize(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, room.ID)
		})
	}
}

func TestDecodeRooms(t *testing.T) {
	input := `[
		{
			"id": "r1",
			"title": " Phòng trọ Cầu Giấy ",
			"coordinates": [105.79, 21.03],
			"stats": {"viewCount": 120, "favoriteCount": -3},
			"createdAt": "2026-10-01T08:00:00.000Z",
			"status": "available",
			"amenities": ["wifi", " ", "ac"],
			"furniture": ["bed"],
			"rentPrice": 3500000,
			"area": 25,
			"location": {"district": "Cầu Giấy", "province": "Hà Nội"}
		},
		{"title": "missing id"},
		{"_id": "r3", "location": {"coordinates": [105.8, 21.0]}, "createdAt": "not a date"}
	]`

	rooms, err := DecodeRooms(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRoom))
	require.Len(t, rooms, 2)

	r1 := rooms[0]
	assert.Equal(t, "Phòng trọ Cầu Giấy", r1.Title)
	assert.Equal(t, &Location{Lat: 21.03, Lon: 105.79}, r1.Coordinates)
	assert.Equal(t, 120.0, r1.Stats.ViewCount)
	assert.Equal(t, 0.0, r1.Stats.FavoriteCount)
	require.NotNil(t, r1.CreatedAt)
	assert.True(t, r1.CreatedAt.Equal(time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, r1.IsAvailable())
	assert.Equal(t, []string{"wifi", "ac"}, r1.Amenities)
	assert.Equal(t, Region{District: "Cầu Giấy", Province: "Hà Nội"}, r1.Region)

	r3 := rooms[1]
	assert.Equal(t, "r3", r3.ID)
	assert.Equal(t, &Location{Lat: 21.0, Lon: 105.8}, r3.Coordinates)
	assert.Nil(t, r3.CreatedAt)
}

func TestDecodeRoomsEnvelope(t *testing.T) {
	rooms, err := DecodeRooms(strings.NewReader(`{"data": [{"id": "a"}, {"id": "b"}]}`))
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rooms, err = DecodeRooms(strings.NewReader(`{"rooms": [{"id": "c"}]}`))
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	rooms, err = DecodeRooms(strings.NewReader(``))
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestDecodeRoomsRoundTrip(t *testing.T) {
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	rooms := []Room{{
		ID:          "r1",
		Coordinates: &Location{Lat: 21.03, Lon: 105.85},
		CreatedAt:   &created,
		Amenities:   []string{"wifi"},
		Furniture:   []string{},
		Region:      Region{District: "Đống Đa"},
	}}

	data, err := json.Marshal(rooms)
	require.NoError(t, err)

	decoded, err := DecodeRooms(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, rooms[0].Coordinates, decoded[0].Coordinates)
	assert.True(t, decoded[0].CreatedAt.Equal(created))
	assert.Equal(t, rooms[0].Amenities, decoded[0].Amenities)
	assert.Equal(t, rooms[0].Region, decoded[0].Region)
}

func TestDecodeRoomsLenientFields(t *testing.T) {
	input := `[
		{"id": "a", "stats": {"viewCount": "12", "favoriteCount": "lots", "contractCount": true}},
		{"id": "b", "rentPrice": "3000000", "area": " 25.5 "},
		{"id": "c", "amenities": ["wifi", 3, null, " ac "], "furniture": "bed"},
		{"id": "d", "title": 7, "status": 1, "location": "Hà Nội", "createdAt": 1790000000000},
		{"id": "e", "stats": "popular", "rentPrice": "NaN"}
	]`

	rooms, err := DecodeRooms(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rooms, 5)

	assert.Equal(t, Stats{ViewCount: 12}, rooms[0].Stats)

	assert.Equal(t, 3000000.0, rooms[1].RentPrice)
	assert.Equal(t, 25.5, rooms[1].Area)

	assert.Equal(t, []string{"wifi", "ac"}, rooms[2].Amenities)
	assert.Empty(t, rooms[2].Furniture)
	assert.NotNil(t, rooms[2].Furniture)

	assert.Empty(t, rooms[3].Title)
	assert.Empty(t, rooms[3].Status)
	assert.Equal(t, Region{}, rooms[3].Region)
	require.NotNil(t, rooms[3].CreatedAt)
	assert.True(t, rooms[3].CreatedAt.Equal(time.UnixMilli(1790000000000)))

	assert.Equal(t, Stats{}, rooms[4].Stats)
	assert.Zero(t, rooms[4].RentPrice)
}

func TestNormalizeStatusVerbatim(t *testing.T) {
	testCases := []struct {
		status    string
		available bool
	}{
		{`"available"`, true},
		{`" available"`, false},
		{`"Available"`, false},
		{`"rented"`, false},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			room, err := Normalize(RawRoom{ID: json.RawMessage(`"r1"`), Status: json.RawMessage(tc.status)})
			require.NoError(t, err)
			assert.Equal(t, tc.available, room.IsAvailable())
		})
	}
}

func TestDecodeRoomsMalformed(t *testing.T) {
	_, err := DecodeRooms(strings.NewReader(`{"data": `))
	assert.Error(t, err)
}

func TestScoredRoomMarshalInfiniteDistance(t *testing.T) {
	data, err := json.Marshal(ScoredRoom{Room: Room{ID: "x"}, DistanceMeters: math.Inf(1), Score: 12})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"distanceMeters":null`)
	assert.Contains(t, string(data), `"score":12`)
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox{
		BottomLeft: Location{Lat: 20.9, Lon: 105.7},
		TopRight:   Location{Lat: 21.1, Lon: 105.9},
	}
	assert.True(t, box.Valid())
	assert.True(t, box.Contains(Location{Lat: 21.0, Lon: 105.8}))
	assert.True(t, box.Contains(Location{Lat: 20.9, Lon: 105.9}))
	assert.False(t, box.Contains(Location{Lat: 21.2, Lon: 105.8}))

	inverted := BoundingBox{BottomLeft: box.TopRight, TopRight: box.BottomLeft}
	assert.False(t, inverted.Valid())
}

func TestFilterCriteriaIsEmpty(t *testing.T) {
	assert.True(t, FilterCriteria{}.IsEmpty())
	assert.True(t, FilterCriteria{Amenities: []string{" "}}.IsEmpty())
	assert.False(t, FilterCriteria{Regions: []string{"Hà Đông"}}.IsEmpty())
	assert.False(t, FilterCriteria{PriceRange: &Range{Min: 0, Max: 1}}.IsEmpty())
}
