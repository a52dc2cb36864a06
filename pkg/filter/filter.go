// Package filter decides whether a room satisfies a set of attribute and
// range selections. Every supplied criterion must hold; empty or absent
// criteria never restrict.
package filter

import (
	"strings"

	"github.com/kass/go-room-rank/pkg/models"
)

// Admits reports whether room passes every criterion in c.
func Admits(room models.Room, c models.FilterCriteria) bool {
	return MatchesRegion(room.Region, c.Regions) &&
		InRange(room.RentPrice, c.PriceRange) &&
		InRange(room.Area, c.AreaRange) &&
		HasAll(room.Amenities, c.Amenities) &&
		HasAll(room.Furniture, c.Furniture)
}

// Apply returns the rooms admitted by c, in input order.
func Apply(rooms []models.Room, c models.FilterCriteria) []models.Room {
	out := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if Admits(room, c) {
			out = append(out, room)
		}
	}
	return out
}

// MatchesRegion passes when the district or province contains, or is
// contained in, any requested region, ignoring case. The match is loose on
// purpose so "Hà Đông" and "Quận Hà Đông" agree. Blank labels never match.
func MatchesRegion(region models.Region, regions []string) bool {
	wanted := normalized(regions)
	if len(wanted) == 0 {
		return true
	}

	labels := normalized([]string{region.District, region.Province})
	for _, w := range wanted {
		for _, label := range labels {
			if strings.Contains(label, w) || strings.Contains(w, label) {
				return true
			}
		}
	}
	return false
}

// InRange passes when r is nil or contains v.
func InRange(v float64, r *models.Range) bool {
	return r == nil || r.Contains(v)
}

// HasAll passes when have contains every non-blank tag in want. Tags compare
// case-insensitively after trimming.
func HasAll(have, want []string) bool {
	required := normalized(want)
	if len(required) == 0 {
		return true
	}

	set := make(map[string]struct{}, len(have))
	for _, tag := range normalized(have) {
		set[tag] = struct{}{}
	}
	for _, tag := range required {
		if _, ok := set[tag]; !ok {
			return false
		}
	}
	return true
}

func normalized(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
