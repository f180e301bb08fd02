package sweep

// Reliability thresholds. The source material leaves the exact tests
// open; these are the documented choices:
//
//   - a point sits on an occlusion boundary when the radial depth to an
//     immediate neighbor jumps by more than 10% of the local range. The
//     trailing window on the closer side of the jump is excluded, since
//     those returns may vanish or appear with a small viewpoint change.
//   - a surface is glancing (near parallel to the beam) when both
//     immediate neighbors are displaced by more than sqrt(0.0002) of the
//     local range; range readings there are unstable.
const (
	occlusionDepthRatio = 0.1
	parallelBeamRatioSq = 0.0002
	minReliableRingSpan = 3 // need both neighbors for any reliability test
)

// computeCurvature fills the Curvature field for every point of the
// ring with a full symmetric window of half-width k. Curvature is the
// squared deviation of the point from its window mean, scaled by the
// window size; boundary points keep Curvature = -1 and are never
// selectable.
func computeCurvature(ring []ScanPoint, k int) {
	n := len(ring)
	window := float64(2*k + 1)
	for i := range ring {
		ring[i].Curvature = -1
	}
	for i := k; i < n-k; i++ {
		diff := ring[i].Position.Mul(-window)
		for j := i - k; j <= i+k; j++ {
			diff = diff.Add(ring[j].Position)
		}
		// diff = sum(window) - (2k+1)·p = (2k+1)·(mean - p)
		ring[i].Curvature = diff.Norm2() / window
	}
}

// markReliability clears the Reliable flag on points adjacent to range
// discontinuities and on glancing surfaces. Unreliable points are
// excluded from feature selection but still published in the full
// cloud.
func markReliability(ring []ScanPoint, k int) {
	n := len(ring)
	for i := range ring {
		ring[i].Reliable = true
	}
	if n < minReliableRingSpan {
		return
	}

	for i := 1; i < n-1; i++ {
		depth := ring[i].Position.Norm()
		depthNext := ring[i+1].Position.Norm()

		// Occlusion boundary: exclude the trailing window on the
		// closer side of the jump.
		gap := depthNext - depth
		limit := occlusionDepthRatio * minFloat(depth, depthNext)
		if gap > limit {
			for j := maxInt(0, i-k+1); j <= i; j++ {
				ring[j].Reliable = false
			}
		} else if -gap > limit {
			for j := i + 1; j <= minInt(n-1, i+k); j++ {
				ring[j].Reliable = false
			}
		}

		// Beam-parallel surface: both neighbors displaced far relative
		// to the local range.
		diffPrev := ring[i].Position.Sub(ring[i-1].Position).Norm2()
		diffNext := ring[i].Position.Sub(ring[i+1].Position).Norm2()
		limitSq := parallelBeamRatioSq * depth * depth
		if diffPrev > limitSq && diffNext > limitSq {
			ring[i].Reliable = false
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
