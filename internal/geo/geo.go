// Package geo converts between geographic positions and the radar's polar
// spoke/bin grid.
//
// The polar grid is indexed by spoke (angle, 0 = north, increasing clockwise
// with the antenna) and range bin. Offsets use a planar approximation around
// own ship, which is accurate to well under a bin at radar ranges.
package geo

import (
	"math"

	"github.com/banshee-data/marpa/internal/units"
)

const metersPerDegree = 60 * units.MetersPerNauticalMile

// Geometry describes the resolution of the polar grid.
type Geometry struct {
	Spokes int // spokes per antenna rotation
	Bins   int // range bins per spoke
}

// DefaultGeometry matches the common 2048 x 512 radar image.
func DefaultGeometry() Geometry {
	return Geometry{Spokes: 2048, Bins: 512}
}

// Position is a geographic position with a velocity estimate.
// DLatDt and DLonDt are metres per second towards north and east.
type Position struct {
	Lat           float64
	Lon           float64
	DLatDt        float64
	DLonDt        float64
	SDSpeedKn     float64 // standard deviation of the speed estimate
	SpeedKn       float64
	TimeUnixNanos int64 // sensor time the position is valid for
}

// Polar is a cell of the radar grid.
type Polar struct {
	Angle         int // spoke index, cyclic
	Range         int // range bin
	TimeUnixNanos int64
}

// LocalPosition is a position and velocity in metres relative to own ship,
// the frame the estimator works in.
type LocalPosition struct {
	North      float64
	East       float64
	VNorth     float64
	VEast      float64
	SDSpeedMps float64
}

// ModAngle wraps a into [0, Spokes).
func (g Geometry) ModAngle(a int) int {
	a %= g.Spokes
	if a < 0 {
		a += g.Spokes
	}
	return a
}

// AngleDiff returns a-b wrapped into [-Spokes/2, Spokes/2).
func (g Geometry) AngleDiff(a, b int) int {
	d := g.ModAngle(a - b)
	if d >= g.Spokes/2 {
		d -= g.Spokes
	}
	return d
}

// SpokesPerRadian is the angular resolution in spokes per radian.
func (g Geometry) SpokesPerRadian() float64 {
	return float64(g.Spokes) / (2 * math.Pi)
}

// GeoToPolar converts p to the grid cell it falls in when the radar is at ownShip
// and displays rangeMeters over Bins.
func (g Geometry) GeoToPolar(p, ownShip Position, rangeMeters float64) Polar {
	dLat := p.Lat - ownShip.Lat
	dLon := (p.Lon - ownShip.Lon) * math.Cos(deg2rad(ownShip.Lat))
	dist := math.Hypot(dLat, dLon) * metersPerDegree
	return Polar{
		Angle: g.ModAngle(int(math.Round(math.Atan2(dLon, dLat) * g.SpokesPerRadian()))),
		Range: int(math.Round(dist * float64(g.Bins) / rangeMeters)),
	}
}

// PolarToGeo converts a grid cell back to a position. ownShip is the position of
// the radar when the spoke was received, which may differ from the current one.
func (g Geometry) PolarToGeo(pol Polar, ownShip Position, rangeMeters float64) Position {
	dist := float64(pol.Range) / float64(g.Bins) * rangeMeters
	bearing := float64(pol.Angle) / g.SpokesPerRadian()
	return Position{
		Lat:           ownShip.Lat + dist*math.Cos(bearing)/metersPerDegree,
		Lon:           ownShip.Lon + dist*math.Sin(bearing)/math.Cos(deg2rad(ownShip.Lat))/metersPerDegree,
		TimeUnixNanos: pol.TimeUnixNanos,
	}
}

// LocalToPolar converts an estimator position to the expected grid cell.
// Values are truncated, not rounded.
func (g Geometry) LocalToPolar(x LocalPosition, rangeMeters float64) Polar {
	angle := int(math.Atan2(x.East, x.North) * g.SpokesPerRadian())
	if angle < 0 {
		angle += g.Spokes
	}
	return Polar{
		Angle: angle,
		Range: int(math.Hypot(x.North, x.East) * float64(g.Bins) / rangeMeters),
	}
}

// ToLocal expresses p relative to ownShip in metres.
func ToLocal(p, ownShip Position) LocalPosition {
	return LocalPosition{
		North:  (p.Lat - ownShip.Lat) * metersPerDegree,
		East:   (p.Lon - ownShip.Lon) * metersPerDegree * math.Cos(deg2rad(ownShip.Lat)),
		VNorth: p.DLatDt,
		VEast:  p.DLonDt,
	}
}

// FromLocal is the inverse of ToLocal. The time and speed fields of the result are zero.
func FromLocal(x LocalPosition, ownShip Position) Position {
	return Position{
		Lat:    ownShip.Lat + x.North/metersPerDegree,
		Lon:    ownShip.Lon + x.East/metersPerDegree/math.Cos(deg2rad(ownShip.Lat)),
		DLatDt: x.VNorth,
		DLonDt: x.VEast,
	}
}

// DistanceMeters returns the planar distance between a and b.
func DistanceMeters(a, b Position) float64 {
	x := ToLocal(a, b)
	return math.Hypot(x.North, x.East)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 { return r * 180 / math.Pi }
