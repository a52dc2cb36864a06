// Package models holds the room and geometry types shared by the ranking,
// filtering and indexing packages.
package models

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location `json:"bottom_left"`
	TopRight   Location `json:"top_right"`
}

// Contains reports whether loc lies inside the box, edges included.
func (b BoundingBox) Contains(loc Location) bool {
	return loc.Lat >= b.BottomLeft.Lat && loc.Lat <= b.TopRight.Lat &&
		loc.Lon >= b.BottomLeft.Lon && loc.Lon <= b.TopRight.Lon
}

// Valid reports whether the bottom-left corner is not above or right of the top-right one.
func (b BoundingBox) Valid() bool {
	return b.BottomLeft.Lat <= b.TopRight.Lat && b.BottomLeft.Lon <= b.TopRight.Lon
}
