package arpa

// Classification is the display class of a reported target.
type Classification int

const (
	Uncertain Classification = iota
	Confirmed
	// Merged marks a target that coincides with an AIS target, or a
	// retraction when all position fields are zero.
	Merged
)

func (c Classification) String() string {
	switch c {
	case Uncertain:
		return "uncertain"
	case Confirmed:
		return "confirmed"
	case Merged:
		return "merged"
	default:
		return "unknown"
	}
}

// Report is one target report, emitted every refresh once a track is at or
// above the reporting threshold and once more when it is lost.
type Report struct {
	TargetID       int
	RangeNM        float64
	BearingDeg     float64 // true
	SpeedKn        float64
	CourseDeg      float64 // true
	Classification Classification
	Automatic      bool
	Lat            float64
	Lon            float64
	TimeUnixNanos  int64
}

// IsRetraction reports whether r tells consumers to drop the target.
func (r Report) IsRetraction() bool {
	return r.Classification == Merged &&
		r.RangeNM == 0 && r.BearingDeg == 0 &&
		r.SpeedKn == 0 && r.CourseDeg == 0 &&
		r.Lat == 0 && r.Lon == 0
}

// ReportSink receives target reports.
type ReportSink interface {
	Report(Report)
}

// ReportSinkFunc adapts a function to a ReportSink.
type ReportSinkFunc func(Report)

func (f ReportSinkFunc) Report(r Report) { f(r) }

// MultiSink fans a report out to several sinks in order.
type MultiSink []ReportSink

func (m MultiSink) Report(r Report) {
	for _, s := range m {
		s.Report(r)
	}
}

type discardSink struct{}

func (discardSink) Report(Report) {}
