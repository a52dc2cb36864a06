// Package geo provides great-circle distance helpers used for proximity ranking.
//
// Distances use the haversine formula on a sphere of mean Earth radius. The
// accuracy is good enough to order rooms by proximity; it is not geodesy-grade.
package geo

import (
	"math"

	"github.com/kass/go-room-rank/pkg/models"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine distance between two points in meters.
// Inputs are not validated; out-of-range coordinates give a defined but
// meaningless result.
func Distance(p1, p2 models.Location) float64 {
	lat1Rad := toRadians(p1.Lat)
	lat2Rad := toRadians(p2.Lat)
	dLat := toRadians(p2.Lat - p1.Lat)
	dLon := toRadians(p2.Lon - p1.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a a hair outside [0, 1] for antipodal points.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// DistanceFrom returns the distance from user to a room's coordinates, or +Inf
// when the room has none.
func DistanceFrom(user models.Location, coords *models.Location) float64 {
	if coords == nil {
		return math.Inf(1)
	}
	return Distance(user, *coords)
}

// BoundsAround returns a box that contains every point within meters of
// center. Longitude span widens with latitude and is clamped near the poles
// and at the antimeridian; use SearchBoxes for radius searches.
func BoundsAround(center models.Location, meters float64) models.BoundingBox {
	latDeg, lonDeg := spans(center, meters)
	return models.BoundingBox{
		BottomLeft: models.Location{
			Lat: math.Max(-90, center.Lat-latDeg),
			Lon: math.Max(-180, center.Lon-lonDeg),
		},
		TopRight: models.Location{
			Lat: math.Min(90, center.Lat+latDeg),
			Lon: math.Min(180, center.Lon+lonDeg),
		},
	}
}

// SearchBoxes returns boxes that together contain every point within meters
// of center. A span crossing the antimeridian is split into two boxes, one on
// each side of it.
func SearchBoxes(center models.Location, meters float64) []models.BoundingBox {
	latDeg, lonDeg := spans(center, meters)
	minLat := math.Max(-90, center.Lat-latDeg)
	maxLat := math.Min(90, center.Lat+latDeg)
	west, east := center.Lon-lonDeg, center.Lon+lonDeg

	box := func(minLon, maxLon float64) models.BoundingBox {
		return models.BoundingBox{
			BottomLeft: models.Location{Lat: minLat, Lon: minLon},
			TopRight:   models.Location{Lat: maxLat, Lon: maxLon},
		}
	}

	switch {
	case east-west >= 360:
		return []models.BoundingBox{box(-180, 180)}
	case west < -180:
		return []models.BoundingBox{box(west+360, 180), box(-180, east)}
	case east > 180:
		return []models.BoundingBox{box(west, 180), box(-180, east-360)}
	default:
		return []models.BoundingBox{box(west, east)}
	}
}

// spans returns the latitude and longitude half-widths in degrees of the box
// around a circle of meters radius.
func spans(center models.Location, meters float64) (latDeg, lonDeg float64) {
	angle := meters / EarthRadiusMeters
	latDeg = angle * (180 / math.Pi)

	lonDeg = 180.0
	if sinRatio := math.Sin(angle) / math.Cos(toRadians(center.Lat)); angle < math.Pi/2 && sinRatio >= 0 && sinRatio < 1 {
		lonDeg = math.Asin(sinRatio) * (180 / math.Pi)
	}
	return latDeg, lonDeg
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
