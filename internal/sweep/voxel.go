package sweep

import "math"

// voxelKey addresses one cubic leaf of the downsampling grid.
type voxelKey struct {
	x, y, z int32
}

// VoxelDownsample thins a point set to at most one point per cubic leaf
// of the given size: each surviving point is the centroid of the points
// that fell into its leaf, carrying the metadata of the first arrival.
// Output order follows first arrival per leaf, so the result is
// deterministic for a given input order. A non-positive leaf size
// returns the input unchanged.
func VoxelDownsample(points []ScanPoint, leafSize float64) []ScanPoint {
	if leafSize <= 0 || len(points) == 0 {
		return points
	}

	type leaf struct {
		index int // position in out
		count int
	}
	leaves := make(map[voxelKey]*leaf)
	out := make([]ScanPoint, 0, len(points))

	for _, p := range points {
		key := voxelKey{
			x: int32(math.Floor(p.Position.X / leafSize)),
			y: int32(math.Floor(p.Position.Y / leafSize)),
			z: int32(math.Floor(p.Position.Z / leafSize)),
		}
		l, ok := leaves[key]
		if !ok {
			leaves[key] = &leaf{index: len(out), count: 1}
			out = append(out, p)
			continue
		}
		// Running centroid update keeps a single pass over the input.
		l.count++
		acc := &out[l.index]
		w := float64(l.count)
		acc.Position = acc.Position.Add(p.Position.Sub(acc.Position).Mul(1 / w))
	}
	return out
}
