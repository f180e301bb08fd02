package sweep

import (
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

// Accumulator collects incoming scan points into the current sweep,
// bucketed by ring, and detects the full-rotation boundary by azimuth
// wrap-around. On completion the sweep is handed to the callback
// wholesale and a fresh sweep starts; the callback must not block the
// point path (the pipeline hands off over a buffered channel).
type Accumulator struct {
	period    time.Duration
	minPoints int
	onSweep   func(*Sweep)

	current     *Sweep
	startAz     float64
	lastAz      float64
	excludedLog int64
}

// AccumulatorConfig configures sweep boundary detection.
type AccumulatorConfig struct {
	ScanPeriod time.Duration
	// MinSweepPoints guards wrap detection against sparse noise bursts
	// (default 100).
	MinSweepPoints int
	OnSweep        func(*Sweep)
}

// NewAccumulator creates an Accumulator. OnSweep is required.
func NewAccumulator(cfg AccumulatorConfig) *Accumulator {
	minPoints := cfg.MinSweepPoints
	if minPoints == 0 {
		minPoints = 100
	}
	return &Accumulator{
		period:    cfg.ScanPeriod,
		minPoints: minPoints,
		onSweep:   cfg.OnSweep,
	}
}

// AddPoints appends parsed points to the current sweep, completing it
// when the azimuth wraps past the start angle. Malformed points (bad
// ring index, non-finite coordinates) are excluded from the sweep and
// counted; they never fail the batch.
func (a *Accumulator) AddPoints(points []RawPoint) {
	for _, p := range points {
		if !p.Valid() {
			if a.current != nil {
				a.current.Excluded++
			}
			a.excludedLog++
			if a.excludedLog%1000 == 1 {
				log.Printf("excluding malformed scan point (ring=%d, pos=%v); %d excluded so far", p.Ring, p.Position, a.excludedLog)
			}
			continue
		}

		if a.current == nil {
			a.begin(p)
		} else if a.wrapped(p.AzimuthDeg) {
			a.complete()
			a.begin(p)
		}

		a.append(p)
	}
}

// Flush completes the current sweep regardless of azimuth coverage.
// Used at shutdown and by replay sources at end of input.
func (a *Accumulator) Flush() {
	if a.current != nil && a.current.Size() > 0 {
		a.complete()
	}
	a.current = nil
}

func (a *Accumulator) begin(p RawPoint) {
	a.current = &Sweep{
		ID:     uuid.NewString(),
		Start:  p.Stamp,
		Period: a.period,
	}
	a.startAz = p.AzimuthDeg
	a.lastAz = p.AzimuthDeg
}

// wrapped reports a full rotation: a large negative azimuth jump
// (e.g. 359° -> 2°) once the sweep holds enough points to rule out a
// noise burst.
func (a *Accumulator) wrapped(azimuth float64) bool {
	return a.lastAz-azimuth > 180.0 && a.current.Size() >= a.minPoints
}

func (a *Accumulator) append(p RawPoint) {
	rel := a.relativeTime(p.AzimuthDeg)
	a.current.Rings[p.Ring] = append(a.current.Rings[p.Ring], ScanPoint{
		Position:  p.Position,
		Ring:      p.Ring,
		RelTime:   rel,
		Intensity: p.Intensity,
	})
	a.lastAz = p.AzimuthDeg
}

// relativeTime maps the point's azimuth, measured from the sweep start
// angle, onto [0, period): the sensor rotates at a constant rate so
// rotation phase is acquisition time.
func (a *Accumulator) relativeTime(azimuth float64) time.Duration {
	phase := math.Mod(azimuth-a.startAz+360.0, 360.0) / 360.0
	return time.Duration(phase * float64(a.period))
}

func (a *Accumulator) complete() {
	sw := a.current
	a.current = nil
	if sw.Excluded > 0 {
		log.Printf("sweep %s: excluded %d malformed points", sw.ID, sw.Excluded)
	}
	a.onSweep(sw)
}
