package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRoom is returned for records that cannot become a Room.
var ErrInvalidRoom = errors.New("invalid room")

// RawRoom mirrors a room record as the REST API delivers it. Every field is
// optional and kept raw, so a wrongly typed value falls back to its default
// instead of rejecting the record.
type RawRoom struct {
	ID          json.RawMessage `json:"id"`
	MongoID     json.RawMessage `json:"_id"`
	Title       json.RawMessage `json:"title"`
	Coordinates json.RawMessage `json:"coordinates"`
	Stats       json.RawMessage `json:"stats"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	Status      json.RawMessage `json:"status"`
	Amenities   json.RawMessage `json:"amenities"`
	Furniture   json.RawMessage `json:"furniture"`
	RentPrice   json.RawMessage `json:"rentPrice"`
	Area        json.RawMessage `json:"area"`
	Location    json.RawMessage `json:"location"`
}

// RawStats holds optional engagement counters, as numbers or numeric strings.
type RawStats struct {
	ViewCount     json.RawMessage `json:"viewCount"`
	FavoriteCount json.RawMessage `json:"favoriteCount"`
	ContractCount json.RawMessage `json:"contractCount"`
}

// RawRegion holds optional region labels. Coordinates nested under the
// location object are accepted when the top-level field is missing.
type RawRegion struct {
	District    json.RawMessage `json:"district"`
	Province    json.RawMessage `json:"province"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Normalize converts a raw record into a Room, applying the defaults for every
// missing or malformed field. Only a missing identifier is an error.
func Normalize(raw RawRoom) (Room, error) {
	id := rawID(raw.ID)
	if id == "" {
		id = rawID(raw.MongoID)
	}
	if id == "" {
		return Room{}, fmt.Errorf("%w: missing id", ErrInvalidRoom)
	}

	var stats RawStats
	_ = json.Unmarshal(raw.Stats, &stats)
	var region RawRegion
	_ = json.Unmarshal(raw.Location, &region)

	room := Room{
		ID:    id,
		Title: strings.TrimSpace(text(raw.Title)),
		Stats: Stats{
			ViewCount:     count(stats.ViewCount),
			FavoriteCount: count(stats.FavoriteCount),
			ContractCount: count(stats.ContractCount),
		},
		CreatedAt: timestamp(raw.CreatedAt),
		// Status is compared verbatim: " available" is not available.
		Status:    text(raw.Status),
		Amenities: tags(raw.Amenities),
		Furniture: tags(raw.Furniture),
		RentPrice: number(raw.RentPrice),
		Area:      number(raw.Area),
		Region: Region{
			District: strings.TrimSpace(text(region.District)),
			Province: strings.TrimSpace(text(region.Province)),
		},
	}

	coords := raw.Coordinates
	if len(coords) == 0 {
		coords = region.Coordinates
	}
	room.Coordinates = ParseCoordinates(coords)
	return room, nil
}

// DecodeRooms reads a JSON array of room records, or an object wrapping one
// under "rooms" or "data". Records that fail to normalize are skipped and
// reported through the returned error alongside the valid rooms.
func DecodeRooms(r io.Reader) ([]Room, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms: %w", err)
	}

	items, err := roomItems(body)
	if err != nil {
		return nil, err
	}

	rooms := make([]Room, 0, len(items))
	var errs []error
	for i, item := range items {
		var raw RawRoom
		if err := json.Unmarshal(item, &raw); err != nil {
			errs = append(errs, fmt.Errorf("%w: record %d: %v", ErrInvalidRoom, i, err))
			continue
		}
		room, err := Normalize(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, errors.Join(errs...)
}

func roomItems(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("failed to decode rooms: %w", err)
		}
		return items, nil
	}

	var envelope struct {
		Rooms []json.RawMessage `json:"rooms"`
		Data  []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	if envelope.Rooms != nil {
		return envelope.Rooms, nil
	}
	return envelope.Data, nil
}

// ParseCoordinates reads a [longitude, latitude] pair. It also accepts a list
// of pairs (the first one wins), a GeoJSON Point object and a {"lat", "lon"}
// object. Anything else,
// including non-finite or out-of-range values, yields nil.
func ParseCoordinates(data json.RawMessage) *Location {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '{' {
		var point struct {
			Coordinates json.RawMessage `json:"coordinates"`
			Lat         *float64        `json:"lat"`
			Lon         *float64        `json:"lon"`
			Lng         *float64        `json:"lng"`
		}
		if err := json.Unmarshal(data, &point); err != nil {
			return nil
		}
		if len(point.Coordinates) > 0 {
			return ParseCoordinates(point.Coordinates)
		}
		// {"lat": .., "lon": ..} as written by Room's own encoding
		if point.Lon == nil {
			point.Lon = point.Lng
		}
		if point.Lat == nil || point.Lon == nil {
			return nil
		}
		return pairLocation([]float64{*point.Lon, *point.Lat})
	}

	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		return pairLocation(pair)
	}

	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err == nil && len(pairs) > 0 {
		return pairLocation(pairs[0])
	}
	return nil
}

func pairLocation(pair []float64) *Location {
	if len(pair) != 2 {
		return nil
	}
	lon, lat := pair[0], pair[1]
	for _, v := range pair {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}
	return &Location{Lat: lat, Lon: lon}
}

func rawID(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	// Extended JSON object ids: {"$oid": "..."}
	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(data, &oid); err == nil {
		return strings.TrimSpace(oid.OID)
	}
	return ""
}

// text returns a JSON string value, or "" for anything else.
func text(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	return s
}

// number reads a JSON number or a numeric string. Missing, malformed and
// non-finite values are 0.
func number(data json.RawMessage) float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text(data)), 64)
		if err != nil {
			return 0
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// count is number clamped to be non-negative.
func count(data json.RawMessage) float64 {
	return math.Max(0, number(data))
}

// timestamp accepts the string layouts below or epoch milliseconds.
func timestamp(data json.RawMessage) *time.Time {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return parseTimestamp(text(data))
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	return nil
}

// tags keeps the non-blank string entries of a JSON array and skips the rest.
func tags(data json.RawMessage) []string {
	var items []json.RawMessage
	_ = json.Unmarshal(data, &items)

	out := make([]string, 0, len(items))
	for _, item := range items {
		if t := strings.TrimSpace(text(item)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
