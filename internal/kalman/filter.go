// Package kalman implements the constant-velocity extended Kalman filter
// that smooths polar radar measurements into a local position and velocity.
//
// State is [north, east, vNorth, vEast] in metres and metres per second
// relative to own ship. Measurements are (angle, range) in grid units, so the
// observation model is linearised around the predicted state on every update.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/marpa/internal/geo"
)

// Config holds the filter noise parameters.
type Config struct {
	InitialPosVar float64 // m^2
	InitialVelVar float64 // (m/s)^2
	ProcessNoise  float64 // velocity random walk, (m/s)^2 per second
	AngleNoise    float64 // spokes^2
	RangeNoise    float64 // bins^2
}

// DefaultConfig returns noise values suited to small craft at harbour ranges.
func DefaultConfig() Config {
	return Config{
		InitialPosVar: 20,
		InitialVelVar: 4,
		ProcessNoise:  0.015,
		AngleNoise:    9,
		RangeNoise:    4,
	}
}

// Filter is the per-target estimator. The zero value is not usable; use New.
type Filter struct {
	cfg Config
	g   geo.Geometry

	p    *mat.Dense // committed covariance
	pred *mat.Dense // covariance after the last Predict
	r    *mat.Dense
}

// New returns a filter in its initial state.
func New(g geo.Geometry, cfg Config) *Filter {
	f := &Filter{
		cfg:  cfg,
		g:    g,
		p:    mat.NewDense(4, 4, nil),
		pred: mat.NewDense(4, 4, nil),
		r:    mat.NewDense(2, 2, []float64{cfg.AngleNoise, 0, 0, cfg.RangeNoise}),
	}
	f.Reset()
	return f
}

// Reset restores the initial covariance, for a new acquisition.
func (f *Filter) Reset() {
	f.p.Zero()
	f.p.Set(0, 0, f.cfg.InitialPosVar)
	f.p.Set(1, 1, f.cfg.InitialPosVar)
	f.p.Set(2, 2, f.cfg.InitialVelVar)
	f.p.Set(3, 3, f.cfg.InitialVelVar)
	f.pred.Copy(f.p)
}

// Predict advances x by dt seconds. The predicted covariance is held aside
// until Update or CommitPrediction adopts it, so a refresh that is rolled back
// leaves the filter untouched.
func (f *Filter) Predict(x geo.LocalPosition, dt float64) geo.LocalPosition {
	a := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	var ap mat.Dense
	ap.Mul(a, f.p)
	f.pred.Mul(&ap, a.T())
	q := f.cfg.ProcessNoise * math.Abs(dt)
	f.pred.Set(2, 2, f.pred.At(2, 2)+q)
	f.pred.Set(3, 3, f.pred.At(3, 3)+q)

	x.North += x.VNorth * dt
	x.East += x.VEast * dt
	x.SDSpeedMps = speedSD(f.pred)
	return x
}

// CommitPrediction adopts the predicted covariance without a measurement.
func (f *Filter) CommitPrediction() {
	f.p.Copy(f.pred)
}

// Update corrects the predicted state x with measurement z taken while
// Bins covered rangeMeters, and commits the resulting covariance.
func (f *Filter) Update(x geo.LocalPosition, z geo.Polar, rangeMeters float64) geo.LocalPosition {
	q := x.North*x.North + x.East*x.East
	if q < 1e-6 || rangeMeters <= 0 {
		f.CommitPrediction()
		return x
	}
	k := f.g.SpokesPerRadian()
	c := float64(f.g.Bins) / rangeMeters
	sq := math.Sqrt(q)

	h := mat.NewDense(2, 4, []float64{
		-k * x.East / q, k * x.North / q, 0, 0,
		c * x.North / sq, c * x.East / sq, 0, 0,
	})

	// S = H P Hᵀ + R
	var ph, s mat.Dense
	ph.Mul(f.pred, h.T())
	s.Mul(h, &ph)
	s.Add(&s, f.r)
	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		f.CommitPrediction()
		return x
	}
	var gain mat.Dense
	gain.Mul(&ph, &sInv)

	angle := math.Atan2(x.East, x.North) * k
	da := float64(z.Angle) - angle
	spokes := float64(f.g.Spokes)
	for da >= spokes/2 {
		da -= spokes
	}
	for da < -spokes/2 {
		da += spokes
	}
	innov := mat.NewVecDense(2, []float64{da, float64(z.Range) - sq*c})

	var dx mat.VecDense
	dx.MulVec(&gain, innov)
	x.North += dx.AtVec(0)
	x.East += dx.AtVec(1)
	x.VNorth += dx.AtVec(2)
	x.VEast += dx.AtVec(3)

	// P = (I - K H) P
	var kh, ikh mat.Dense
	kh.Mul(&gain, h)
	ikh.Sub(eye4(), &kh)
	f.p.Mul(&ikh, f.pred)
	f.pred.Copy(f.p)

	x.SDSpeedMps = speedSD(f.p)
	return x
}

// SpeedSD returns the standard deviation of the committed speed estimate in m/s.
func (f *Filter) SpeedSD() float64 { return speedSD(f.p) }

func speedSD(p mat.Matrix) float64 {
	return math.Sqrt(math.Max(0, (p.At(2, 2)+p.At(3, 3))/2))
}

func eye4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}
