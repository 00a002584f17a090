package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoToPolar_RoundTripWithinOneBin(t *testing.T) {
	t.Parallel()
	g := DefaultGeometry()
	rangeMeters := 3704.0 // 2 nm
	binMeters := rangeMeters / float64(g.Bins)

	for _, lat := range []float64{-60, -12.5, 0, 37.8, 52.1, 70} {
		own := Position{Lat: lat, Lon: 4.3}
		for bearing := 0.0; bearing < 360; bearing += 7.3 {
			for _, frac := range []float64{0.05, 0.3, 0.61, 0.95} {
				dist := frac * rangeMeters
				x := LocalPosition{
					North: dist * math.Cos(bearing*math.Pi/180),
					East:  dist * math.Sin(bearing*math.Pi/180),
				}
				p := FromLocal(x, own)

				pol := g.GeoToPolar(p, own, rangeMeters)
				back := g.PolarToGeo(pol, own, rangeMeters)

				require.GreaterOrEqual(t, pol.Angle, 0)
				require.Less(t, pol.Angle, g.Spokes)
				assert.LessOrEqual(t, DistanceMeters(p, back), binMeters,
					"lat=%v bearing=%v frac=%v pol=%+v", lat, bearing, frac, pol)
			}
		}
	}
}

func TestGeoToPolar_Cardinal(t *testing.T) {
	t.Parallel()
	g := DefaultGeometry()
	own := Position{Lat: 0, Lon: 0}
	rangeMeters := 1852.0

	tests := []struct {
		name      string
		north     float64
		east      float64
		wantAngle int
	}{
		{"north", 926, 0, 0},
		{"east", 0, 926, 512},
		{"south", -926, 0, 1024},
		{"west", 0, -926, 1536},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := FromLocal(LocalPosition{North: tc.north, East: tc.east}, own)
			pol := g.GeoToPolar(p, own, rangeMeters)
			assert.Equal(t, tc.wantAngle, pol.Angle)
			assert.Equal(t, 256, pol.Range)
		})
	}
}

func TestPolarToGeo_UsesSuppliedOwnShip(t *testing.T) {
	t.Parallel()
	g := DefaultGeometry()
	then := Position{Lat: 52.0, Lon: 4.0}
	now := Position{Lat: 52.001, Lon: 4.0}
	pol := Polar{Angle: 0, Range: 100}

	a := g.PolarToGeo(pol, then, 1852)
	b := g.PolarToGeo(pol, now, 1852)
	assert.InDelta(t, 0.001, b.Lat-a.Lat, 1e-12)
	assert.InDelta(t, a.Lon, b.Lon, 1e-12)
}

func TestLocalToPolar_Truncates(t *testing.T) {
	t.Parallel()
	g := DefaultGeometry()
	// 1852 m over 512 bins is 3.617 m per bin; 10.9 bins truncates to 10.
	x := LocalPosition{North: 10.9 * 1852 / 512}
	pol := g.LocalToPolar(x, 1852)
	assert.Equal(t, 0, pol.Angle)
	assert.Equal(t, 10, pol.Range)

	x = LocalPosition{North: 100, East: -1}
	pol = g.LocalToPolar(x, 1852)
	assert.Equal(t, g.Spokes-3, pol.Angle)
}

func TestAngleHelpers(t *testing.T) {
	t.Parallel()
	g := DefaultGeometry()
	assert.Equal(t, 0, g.ModAngle(2048))
	assert.Equal(t, 2047, g.ModAngle(-1))
	assert.Equal(t, 5, g.ModAngle(4096+5))
	assert.Equal(t, -2, g.AngleDiff(2046, 0))
	assert.Equal(t, 3, g.AngleDiff(1, 2046))
	assert.Equal(t, -1024, g.AngleDiff(1024, 0))
}

func TestLocalRoundTrip(t *testing.T) {
	t.Parallel()
	own := Position{Lat: 51.9, Lon: 4.4}
	p := Position{Lat: 51.91, Lon: 4.39, DLatDt: 1.5, DLonDt: -2}
	q := FromLocal(ToLocal(p, own), own)
	assert.InDelta(t, p.Lat, q.Lat, 1e-12)
	assert.InDelta(t, p.Lon, q.Lon, 1e-12)
	assert.Equal(t, p.DLatDt, q.DLatDt)
	assert.Equal(t, p.DLonDt, q.DLonDt)
}
