package sweep

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/kestrel-data/sweepfeatures/internal/spatial"
	"github.com/kestrel-data/sweepfeatures/internal/sweep/imu"
)

// Compensator re-projects every point of a sweep into the sweep-start
// frame, removing both the sensor's rotation during the sweep and the
// platform's translation. Points taken at different phases of the
// rotation are not comparable without this step: the residual motion
// shows up as spurious curvature in every downstream computation.
type Compensator struct {
	mount *MountResolver
}

// NewCompensator creates a Compensator. mount may be nil when no
// IMU-to-lidar transform is in play (compensation still runs; the
// inertial states are then assumed lidar-aligned already).
func NewCompensator(mount *MountResolver) *Compensator {
	return &Compensator{mount: mount}
}

// Compensate rewrites the sweep's point positions in place against the
// given history snapshot and returns the per-sweep motion summary.
//
// When the mount resolver has been permanently disabled the sweep is
// left untouched and flagged uncompensated — explicitly, never
// silently, since the downstream consumer weights such sweeps
// differently.
func (c *Compensator) Compensate(sw *Sweep, hist *imu.Snapshot) MotionSummary {
	summary := MotionSummary{
		SweepID: sw.ID,
		Start:   sw.Start,
		End:     sw.Start.Add(sw.Period),
	}

	if c.mount != nil && c.mount.State() == MountDisabled {
		sw.Compensated = false
		summary.Compensated = false
		return summary
	}

	startState, startDegraded := hist.StateAt(sw.Start)
	endState, _ := hist.StateAt(sw.Start.Add(sw.Period))

	summary.StartRoll, summary.StartPitch, summary.StartYaw = startState.Roll, startState.Pitch, startState.Yaw
	summary.EndRoll, summary.EndPitch, summary.EndYaw = endState.Roll, endState.Pitch, endState.Yaw

	qStart := spatial.FromEulerAngles(startState.Roll, startState.Pitch, startState.Yaw)
	qStartInv := quat.Conj(qStart)
	summary.Shift = spatial.Rotate(qStartInv, endState.Position.Sub(startState.Position))

	for ring := range sw.Rings {
		pts := sw.Rings[ring]
		for i := range pts {
			state, degraded := hist.StateAt(sw.Start.Add(pts[i].RelTime))
			if degraded || startDegraded {
				pts[i].Degraded = true
				summary.DegradedPoints++
			}

			// World position of the return at acquisition time, then
			// back into the platform pose at sweep start.
			q := spatial.FromEulerAngles(state.Roll, state.Pitch, state.Yaw)
			world := spatial.Rotate(q, pts[i].Position).Add(state.Position.Sub(startState.Position))
			pts[i].Position = spatial.Rotate(qStartInv, world)
		}
	}

	sw.Compensated = true
	summary.Compensated = true
	return summary
}
