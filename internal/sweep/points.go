// Package sweep implements motion-compensated feature extraction for
// rotating-lidar sweeps: points accumulated over one full rotation are
// re-projected into the sweep-start frame using the inertial state
// history, then classified per ring into sharp / less-sharp corner and
// flat / less-flat surface subsets for the downstream odometry stage.
package sweep

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// NumRings is the number of scan rings (elevation channels) of the
// supported sensor.
const NumRings = 40

// FeatureLabel classifies a scan point after curvature selection.
type FeatureLabel uint8

const (
	LabelUnclassified FeatureLabel = iota
	LabelSharp
	LabelLessSharp
	LabelFlat
	LabelLessFlat
	LabelExcluded
)

func (l FeatureLabel) String() string {
	switch l {
	case LabelUnclassified:
		return "unclassified"
	case LabelSharp:
		return "sharp"
	case LabelLessSharp:
		return "less-sharp"
	case LabelFlat:
		return "flat"
	case LabelLessFlat:
		return "less-flat"
	case LabelExcluded:
		return "excluded"
	}
	return "unknown"
}

// RawPoint is one lidar return as produced by the packet parser:
// sensor-frame Cartesian position plus the ring index and azimuth the
// accumulator needs for sweep bucketing and relative timing.
type RawPoint struct {
	Position   r3.Vector // sensor frame, meters
	Ring       int
	AzimuthDeg float64
	Intensity  uint8
	Stamp      time.Time
}

// Valid reports whether the point can enter a sweep: known ring index
// and finite coordinates.
func (p RawPoint) Valid() bool {
	if p.Ring < 0 || p.Ring >= NumRings {
		return false
	}
	for _, v := range []float64{p.Position.X, p.Position.Y, p.Position.Z, p.AzimuthDeg} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ScanPoint is one point of an accumulated sweep. Position starts in
// the sensor frame and is rewritten in place by the motion compensator;
// Curvature, Label and Reliable are filled in by the classifier.
type ScanPoint struct {
	Position  r3.Vector
	Ring      int
	RelTime   time.Duration // acquisition time since sweep start
	Intensity uint8
	Curvature float64
	Label     FeatureLabel
	Reliable  bool
	Degraded  bool // inertial interpolation fell back outside the buffered span
}

// Sweep is one full rotation's worth of points, grouped by ring. A
// Sweep owns its points exclusively; it is handed off wholesale at the
// rotation boundary and replaced by a fresh instance.
type Sweep struct {
	ID          string
	Start       time.Time
	Period      time.Duration
	Rings       [NumRings][]ScanPoint
	Compensated bool
	Excluded    int // malformed points dropped during accumulation
}

// Size returns the total number of points across all rings.
func (s *Sweep) Size() int {
	n := 0
	for ring := range s.Rings {
		n += len(s.Rings[ring])
	}
	return n
}

// SphericalToCartesian converts distance (meters), azimuth (degrees)
// and elevation (degrees) into Cartesian sensor-frame coordinates.
// Coordinate convention: X=right, Y=forward, Z=up.
func SphericalToCartesian(distance, azimuthDeg, elevationDeg float64) r3.Vector {
	azimuthRad := azimuthDeg * math.Pi / 180.0
	elevationRad := elevationDeg * math.Pi / 180.0

	cosElevation := math.Cos(elevationRad)
	return r3.Vector{
		X: distance * cosElevation * math.Sin(azimuthRad),
		Y: distance * cosElevation * math.Cos(azimuthRad),
		Z: distance * math.Sin(elevationRad),
	}
}

// MotionSummary describes the platform motion across one sweep. The
// downstream consumer uses it to seed its own optimization and to
// weight uncompensated sweeps differently.
type MotionSummary struct {
	SweepID    string
	Start      time.Time
	End        time.Time
	StartRoll  float64
	StartPitch float64
	StartYaw   float64
	EndRoll    float64
	EndPitch   float64
	EndYaw     float64
	// Shift is the platform position delta over the sweep, expressed in
	// the sweep-start frame.
	Shift          r3.Vector
	Compensated    bool
	DegradedPoints int
}
