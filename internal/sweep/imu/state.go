// Package imu maintains the inertial state history used to undistort
// lidar sweeps: raw samples are gravity-compensated and double-integrated
// into a fixed-capacity, time-ordered ring buffer that supports
// interpolation at arbitrary acquisition instants.
package imu

import (
	"time"

	"github.com/golang/geo/r3"
)

// Sample is one raw inertial measurement as delivered by the sensor:
// orientation as roll/pitch/yaw (radians) and linear acceleration in
// the IMU body frame (m/s², gravity included).
type Sample struct {
	Stamp        time.Time
	Roll         float64
	Pitch        float64
	Yaw          float64
	Acceleration r3.Vector
}

// State is one integrated inertial state. Acceleration is
// gravity-compensated and expressed in the lidar-aligned frame;
// Velocity and Position are single and double integrals of it.
// States are immutable once pushed to the History.
type State struct {
	Stamp        time.Time
	Roll         float64
	Pitch        float64
	Yaw          float64
	Acceleration r3.Vector
	Velocity     r3.Vector
	Position     r3.Vector
}
