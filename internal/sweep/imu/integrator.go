package imu

import (
	"log"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kestrel-data/sweepfeatures/internal/spatial"
)

// Gravity is the gravitational constant subtracted from raw
// accelerometer readings, in m/s².
const Gravity = 9.81

// RotationSource supplies the fixed IMU-to-lidar mount rotation once it
// has been resolved. ok is false while unresolved or permanently
// disabled, in which case samples are used untransformed.
type RotationSource interface {
	Rotation() (quat.Number, bool)
}

// Integrator turns raw inertial samples into integrated States and
// appends them to a History. It runs on the inertial-sample path and
// must never block: a bad sample is logged and dropped, nothing more.
type Integrator struct {
	history *History
	mount   RotationSource

	hasPrev bool
	prev    State
	dropped int64
}

// NewIntegrator creates an Integrator feeding history. mount may be nil
// when no IMU-to-lidar transform is in play.
func NewIntegrator(history *History, mount RotationSource) *Integrator {
	return &Integrator{history: history, mount: mount}
}

// HandleSample integrates one raw sample and pushes the resulting state.
// Samples stamped before the newest buffered state are discarded; they
// must never corrupt the buffer's time ordering.
func (ig *Integrator) HandleSample(s Sample) {
	acc := s.Acceleration
	if ig.mount != nil {
		if q, ok := ig.mount.Rotation(); ok {
			acc = spatial.Rotate(q, acc)
		}
	}

	// Swap the measured axes into the lidar-aligned frame and remove
	// the gravity component projected through roll and pitch.
	sinRoll, cosRoll := math.Sincos(s.Roll)
	sinPitch, cosPitch := math.Sincos(s.Pitch)
	aligned := r3.Vector{
		X: acc.Y - sinRoll*cosPitch*Gravity,
		Y: acc.Z - cosRoll*cosPitch*Gravity,
		Z: acc.X + sinPitch*Gravity,
	}

	state := State{
		Stamp:        s.Stamp,
		Roll:         s.Roll,
		Pitch:        s.Pitch,
		Yaw:          s.Yaw,
		Acceleration: aligned,
	}

	if ig.hasPrev {
		dt := s.Stamp.Sub(ig.prev.Stamp).Seconds()
		if dt < 0 {
			ig.dropped++
			log.Printf("discarding out-of-order IMU sample: %v precedes %v (%d dropped so far)",
				s.Stamp, ig.prev.Stamp, ig.dropped)
			return
		}
		state.Position = ig.prev.Position.
			Add(ig.prev.Velocity.Mul(dt)).
			Add(state.Acceleration.Mul(dt * dt / 2))
		state.Velocity = ig.prev.Velocity.Add(state.Acceleration.Mul(dt))
	}

	if err := ig.history.Push(state); err != nil {
		ig.dropped++
		log.Printf("discarding IMU sample: %v (%d dropped so far)", err, ig.dropped)
		return
	}
	ig.prev = state
	ig.hasPrev = true
}

// Dropped reports how many samples have been discarded.
func (ig *Integrator) Dropped() int64 { return ig.dropped }
