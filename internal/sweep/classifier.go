package sweep

import (
	"sort"

	"github.com/kestrel-data/sweepfeatures/internal/config"
)

// Features is the per-sweep classification output: four point subsets
// ordered sharp-to-smooth. Sharp is always a subset of LessSharp and
// every per-region flat pick is carried into LessFlat, so a consumer
// can use the richer sets without re-deriving the strict ones.
type Features struct {
	Sharp     []ScanPoint
	LessSharp []ScanPoint
	Flat      []ScanPoint
	LessFlat  []ScanPoint
}

// Classifier selects corner and surface features per ring by local
// curvature, spreading picks across equal angular regions so features
// are not clustered on one side of the rotation.
type Classifier struct {
	regions    int
	curvRegion int
	maxSharp   int
	maxLess    int
	maxFlat    int
	threshold  float64
	leafSize   float64
}

// NewClassifier creates a Classifier from validated parameters.
func NewClassifier(p config.Params) *Classifier {
	return &Classifier{
		regions:    p.FeatureRegions,
		curvRegion: p.CurvatureRegion,
		maxSharp:   p.MaxCornerSharp,
		maxLess:    p.MaxCornerLessSharp,
		maxFlat:    p.MaxSurfaceFlat,
		threshold:  p.SurfaceCurvatureThreshold,
		leafSize:   p.LessFlatFilterSize,
	}
}

// Classify computes curvature and reliability for every ring of the
// sweep, labels the points in place and returns the selected feature
// subsets. Rings shorter than the curvature window are skipped whole;
// their points stay unclassified.
func (c *Classifier) Classify(sw *Sweep) *Features {
	feats := &Features{}
	for ring := range sw.Rings {
		c.classifyRing(sw.Rings[ring], feats)
	}
	return feats
}

func (c *Classifier) classifyRing(pts []ScanPoint, feats *Features) {
	n := len(pts)
	k := c.curvRegion
	if n < 2*k+1 {
		return
	}

	computeCurvature(pts, k)
	markReliability(pts, k)

	// eligible tracks which points may still be picked in this pass;
	// picking a point suppresses its ±k neighborhood so features spread
	// out instead of stacking on one structure.
	eligible := make([]bool, n)
	for i := k; i < n-k; i++ {
		eligible[i] = pts[i].Reliable
		if !pts[i].Reliable {
			pts[i].Label = LabelExcluded
		}
	}

	var candidates []ScanPoint
	for region := 0; region < c.regions; region++ {
		sp := k + (n-2*k)*region/c.regions
		ep := k + (n-2*k)*(region+1)/c.regions
		if ep <= sp {
			continue
		}

		idx := make([]int, 0, ep-sp)
		for i := sp; i < ep; i++ {
			idx = append(idx, i)
		}

		c.pickCorners(pts, idx, eligible, feats)
		c.pickSurfaces(pts, idx, eligible, feats)

		// Everything reliable, unlabeled and below the threshold is a
		// less-flat candidate.
		for _, i := range idx {
			if pts[i].Reliable && pts[i].Label == LabelUnclassified && pts[i].Curvature < c.threshold {
				pts[i].Label = LabelLessFlat
				candidates = append(candidates, pts[i])
			}
		}
	}

	// The candidate set is dense on smooth structure; the voxel filter
	// thins it to a bounded spatial density per ring. Flat picks are
	// carried through undiluted.
	feats.LessFlat = append(feats.LessFlat, VoxelDownsample(candidates, c.leafSize)...)
}

// pickCorners takes the highest-curvature eligible points of the region
// as sharp corners, then continues down the ordering as less-sharp up
// to the larger cap. Ties resolve by ring order so selection is
// deterministic.
func (c *Classifier) pickCorners(pts []ScanPoint, idx []int, eligible []bool, feats *Features) {
	order := append([]int(nil), idx...)
	sort.SliceStable(order, func(a, b int) bool {
		return pts[order[a]].Curvature > pts[order[b]].Curvature
	})

	picked := 0
	for _, i := range order {
		if !eligible[i] {
			continue
		}
		if pts[i].Curvature <= c.threshold {
			break
		}
		if picked < c.maxSharp {
			pts[i].Label = LabelSharp
			feats.Sharp = append(feats.Sharp, pts[i])
			feats.LessSharp = append(feats.LessSharp, pts[i])
		} else if picked < c.maxLess {
			pts[i].Label = LabelLessSharp
			feats.LessSharp = append(feats.LessSharp, pts[i])
		} else {
			break
		}
		picked++
		suppress(eligible, i, c.curvRegion)
	}
}

// pickSurfaces takes the lowest-curvature eligible points of the region
// as flat surfaces. Flat picks also join the less-flat set.
func (c *Classifier) pickSurfaces(pts []ScanPoint, idx []int, eligible []bool, feats *Features) {
	order := append([]int(nil), idx...)
	sort.SliceStable(order, func(a, b int) bool {
		return pts[order[a]].Curvature < pts[order[b]].Curvature
	})

	picked := 0
	for _, i := range order {
		if !eligible[i] {
			continue
		}
		if pts[i].Curvature >= c.threshold {
			break
		}
		pts[i].Label = LabelFlat
		feats.Flat = append(feats.Flat, pts[i])
		feats.LessFlat = append(feats.LessFlat, pts[i])
		picked++
		if picked >= c.maxFlat {
			break
		}
		suppress(eligible, i, c.curvRegion)
	}
}

func suppress(eligible []bool, i, k int) {
	for j := maxInt(0, i-k); j <= minInt(len(eligible)-1, i+k); j++ {
		eligible[j] = false
	}
}
