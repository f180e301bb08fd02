// Package spatial provides the small set of rotation helpers used by
// the sweep registration pipeline: Euler angle / quaternion conversion,
// vector rotation and shortest-path angle interpolation.
//
// Convention: roll is rotation about X, pitch about Y, yaw about Z,
// composed intrinsically in Z-Y-X order. Angles are radians.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// FromEulerAngles converts roll/pitch/yaw to a unit quaternion.
func FromEulerAngles(roll, pitch, yaw float64) quat.Number {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// Rotate applies the rotation q to v (computes q v q*).
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Identity returns the no-rotation quaternion.
func Identity() quat.Number {
	return quat.Number{Real: 1}
}

// LerpAngle interpolates between angles a and b (radians) along the
// shortest arc. f=0 yields a, f=1 yields b.
func LerpAngle(a, b, f float64) float64 {
	diff := math.Atan2(math.Sin(b-a), math.Cos(b-a))
	return a + diff*f
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
