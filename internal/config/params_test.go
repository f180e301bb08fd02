package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultParamsValid(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}
	if p.MaxCornerLessSharp != 10*p.MaxCornerSharp {
		t.Errorf("default max_corner_less_sharp = %d, want %d", p.MaxCornerLessSharp, 10*p.MaxCornerSharp)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{"scan_period": "50ms", "max_corner_sharp": 3}`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.ScanPeriod != 50*time.Millisecond {
		t.Errorf("scan_period = %v, want 50ms", p.ScanPeriod)
	}
	if p.MaxCornerSharp != 3 {
		t.Errorf("max_corner_sharp = %d, want 3", p.MaxCornerSharp)
	}
	// Less-sharp cap follows the sharp cap when not set explicitly.
	if p.MaxCornerLessSharp != 30 {
		t.Errorf("max_corner_less_sharp = %d, want 30", p.MaxCornerLessSharp)
	}
	// Untouched fields keep their defaults.
	if p.FeatureRegions != DefaultFeatureRegions {
		t.Errorf("feature_regions = %d, want default %d", p.FeatureRegions, DefaultFeatureRegions)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"scan_period": "80ms",
		"imu_history_size": 100,
		"feature_regions": 4,
		"curvature_region": 3,
		"max_corner_sharp": 2,
		"max_corner_less_sharp": 12,
		"max_surface_flat": 6,
		"surface_curvature_threshold": 0.2,
		"less_flat_filter_size": 0.3,
		"mount_roll_deg": 1.5,
		"mount_pitch_deg": -2.0,
		"mount_yaw_deg": 90.0
	}`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	roll, pitch, yaw := 1.5, -2.0, 90.0
	want := Params{
		ScanPeriod:                80 * time.Millisecond,
		IMUHistorySize:            100,
		FeatureRegions:            4,
		CurvatureRegion:           3,
		MaxCornerSharp:            2,
		MaxCornerLessSharp:        12,
		MaxSurfaceFlat:            6,
		SurfaceCurvatureThreshold: 0.2,
		LessFlatFilterSize:        0.3,
		MountRollDeg:              &roll,
		MountPitchDeg:             &pitch,
		MountYawDeg:               &yaw,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("loaded params mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"zero scan period", `{"scan_period": "0s"}`},
		{"negative scan period", `{"scan_period": "-10ms"}`},
		{"zero history", `{"imu_history_size": 0}`},
		{"zero regions", `{"feature_regions": 0}`},
		{"zero curvature window", `{"curvature_region": 0}`},
		{"zero sharp cap", `{"max_corner_sharp": 0}`},
		{"less sharp below sharp", `{"max_corner_sharp": 5, "max_corner_less_sharp": 3}`},
		{"zero flat cap", `{"max_surface_flat": 0}`},
		{"tiny threshold", `{"surface_curvature_threshold": 0.0001}`},
		{"tiny filter size", `{"less_flat_filter_size": 0.0001}`},
		{"partial mount rotation", `{"mount_roll_deg": 1.0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.contents)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load accepted invalid config %s", tc.contents)
			}
		})
	}
}

func TestLoadRejectsNonJSONPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a non-.json path")
	}
}

func TestMountRotation(t *testing.T) {
	path := writeConfig(t, `{"mount_roll_deg": 0, "mount_pitch_deg": 0, "mount_yaw_deg": 90}`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	roll, pitch, yaw, ok := p.MountRotation()
	if !ok {
		t.Fatal("MountRotation not ok with all three angles set")
	}
	if roll != 0 || pitch != 0 || yaw != 90 {
		t.Errorf("mount rotation = (%g, %g, %g), want (0, 0, 90)", roll, pitch, yaw)
	}

	if _, _, _, ok := DefaultParams().MountRotation(); ok {
		t.Error("MountRotation ok without configured angles")
	}
}
