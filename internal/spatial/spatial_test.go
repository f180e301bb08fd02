package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

const tol = 1e-12

func vecNear(a, b r3.Vector) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9 && math.Abs(a.Z-b.Z) < 1e-9
}

func TestRotateYaw90(t *testing.T) {
	q := FromEulerAngles(0, 0, math.Pi/2)
	got := Rotate(q, r3.Vector{X: 1})
	want := r3.Vector{Y: 1}
	if !vecNear(got, want) {
		t.Fatalf("yaw 90 rotation of +X = %v, want %v", got, want)
	}
}

func TestRotateIdentity(t *testing.T) {
	v := r3.Vector{X: 1.5, Y: -2, Z: 0.25}
	if got := Rotate(Identity(), v); !vecNear(got, v) {
		t.Fatalf("identity rotation moved %v to %v", v, got)
	}
}

func TestFromEulerAnglesUnitNorm(t *testing.T) {
	for _, angles := range [][3]float64{
		{0, 0, 0},
		{0.3, -1.1, 2.7},
		{math.Pi, -math.Pi / 2, math.Pi / 4},
	} {
		q := FromEulerAngles(angles[0], angles[1], angles[2])
		norm := q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag
		if math.Abs(norm-1) > tol {
			t.Errorf("quaternion for %v not unit length: %g", angles, norm)
		}
	}
}

func TestLerpAngle(t *testing.T) {
	cases := []struct {
		a, b, f, want float64
	}{
		{0, math.Pi / 2, 0.5, math.Pi / 4},
		{0, math.Pi / 2, 0, 0},
		{0, math.Pi / 2, 1, math.Pi / 2},
		// Shortest path across the wrap: 350° -> 10° passes through 0°.
		{DegToRad(350), DegToRad(10), 0.5, DegToRad(360)},
	}
	for _, tc := range cases {
		got := LerpAngle(tc.a, tc.b, tc.f)
		if math.Abs(math.Atan2(math.Sin(got-tc.want), math.Cos(got-tc.want))) > 1e-9 {
			t.Errorf("LerpAngle(%g, %g, %g) = %g, want %g", tc.a, tc.b, tc.f, got, tc.want)
		}
	}
}
