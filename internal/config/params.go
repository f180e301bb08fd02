// Package config loads and validates registration tuning parameters.
//
// The schema mirrors the JSON accepted by the /api/sweep/params debug
// endpoint so the same file can be used for startup configuration and
// for reproducing a run. All fields are optional in the JSON; omitted
// fields fall back to the defaults below. An out-of-range value rejects
// the whole file so a half-applied configuration can never start.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default registration parameters. maxCornerLessSharp defaults to ten
// times maxCornerSharp unless set explicitly.
const (
	DefaultScanPeriod                = 100 * time.Millisecond
	DefaultIMUHistorySize            = 200
	DefaultFeatureRegions            = 6
	DefaultCurvatureRegion           = 5
	DefaultMaxCornerSharp            = 2
	DefaultMaxSurfaceFlat            = 4
	DefaultSurfaceCurvatureThreshold = 0.1
	DefaultLessFlatFilterSize        = 0.2
)

// File is the raw JSON schema for registration parameters. Pointer
// fields distinguish "absent" from "explicit zero" so partial configs
// are safe.
type File struct {
	ScanPeriod                *string  `json:"scan_period,omitempty"` // duration string like "100ms"
	IMUHistorySize            *int     `json:"imu_history_size,omitempty"`
	FeatureRegions            *int     `json:"feature_regions,omitempty"`
	CurvatureRegion           *int     `json:"curvature_region,omitempty"`
	MaxCornerSharp            *int     `json:"max_corner_sharp,omitempty"`
	MaxCornerLessSharp        *int     `json:"max_corner_less_sharp,omitempty"`
	MaxSurfaceFlat            *int     `json:"max_surface_flat,omitempty"`
	SurfaceCurvatureThreshold *float64 `json:"surface_curvature_threshold,omitempty"`
	LessFlatFilterSize        *float64 `json:"less_flat_filter_size,omitempty"`

	// Optional fixed IMU-to-lidar mount rotation (degrees). When all
	// three are present the mount resolver resolves immediately; when
	// absent the resolver retries its external lookup and eventually
	// degrades to uncompensated mode.
	MountRollDeg  *float64 `json:"mount_roll_deg,omitempty"`
	MountPitchDeg *float64 `json:"mount_pitch_deg,omitempty"`
	MountYawDeg   *float64 `json:"mount_yaw_deg,omitempty"`
}

// Params holds the resolved registration parameters after defaults and
// validation have been applied.
type Params struct {
	ScanPeriod                time.Duration
	IMUHistorySize            int
	FeatureRegions            int
	CurvatureRegion           int
	MaxCornerSharp            int
	MaxCornerLessSharp        int
	MaxSurfaceFlat            int
	SurfaceCurvatureThreshold float64
	LessFlatFilterSize        float64

	MountRollDeg  *float64
	MountPitchDeg *float64
	MountYawDeg   *float64
}

// DefaultParams returns the registration parameters used when no config
// file is supplied.
func DefaultParams() Params {
	return Params{
		ScanPeriod:                DefaultScanPeriod,
		IMUHistorySize:            DefaultIMUHistorySize,
		FeatureRegions:            DefaultFeatureRegions,
		CurvatureRegion:           DefaultCurvatureRegion,
		MaxCornerSharp:            DefaultMaxCornerSharp,
		MaxCornerLessSharp:        10 * DefaultMaxCornerSharp,
		MaxSurfaceFlat:            DefaultMaxSurfaceFlat,
		SurfaceCurvatureThreshold: DefaultSurfaceCurvatureThreshold,
		LessFlatFilterSize:        DefaultLessFlatFilterSize,
	}
}

// Load reads a JSON parameter file, applies defaults for omitted fields
// and validates the result. Any invalid value fails the whole load.
func Load(path string) (Params, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Params{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Params{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 << 20
	if info.Size() > maxFileSize {
		return Params{}, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return Params{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return f.Params()
}

// Params resolves a parsed File into validated Params.
func (f *File) Params() (Params, error) {
	p := DefaultParams()
	sharpSet := false

	if f.ScanPeriod != nil {
		d, err := time.ParseDuration(*f.ScanPeriod)
		if err != nil {
			return Params{}, fmt.Errorf("invalid scan_period %q: %w", *f.ScanPeriod, err)
		}
		p.ScanPeriod = d
	}
	if f.IMUHistorySize != nil {
		p.IMUHistorySize = *f.IMUHistorySize
	}
	if f.FeatureRegions != nil {
		p.FeatureRegions = *f.FeatureRegions
	}
	if f.CurvatureRegion != nil {
		p.CurvatureRegion = *f.CurvatureRegion
	}
	if f.MaxCornerSharp != nil {
		p.MaxCornerSharp = *f.MaxCornerSharp
		p.MaxCornerLessSharp = 10 * p.MaxCornerSharp
		sharpSet = true
	}
	if f.MaxCornerLessSharp != nil {
		p.MaxCornerLessSharp = *f.MaxCornerLessSharp
	} else if !sharpSet {
		p.MaxCornerLessSharp = 10 * p.MaxCornerSharp
	}
	if f.MaxSurfaceFlat != nil {
		p.MaxSurfaceFlat = *f.MaxSurfaceFlat
	}
	if f.SurfaceCurvatureThreshold != nil {
		p.SurfaceCurvatureThreshold = *f.SurfaceCurvatureThreshold
	}
	if f.LessFlatFilterSize != nil {
		p.LessFlatFilterSize = *f.LessFlatFilterSize
	}
	p.MountRollDeg = f.MountRollDeg
	p.MountPitchDeg = f.MountPitchDeg
	p.MountYawDeg = f.MountYawDeg

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks every parameter against its documented constraint.
func (p Params) Validate() error {
	if p.ScanPeriod <= 0 {
		return fmt.Errorf("invalid scan_period %v (expected > 0)", p.ScanPeriod)
	}
	if p.IMUHistorySize < 1 {
		return fmt.Errorf("invalid imu_history_size %d (expected >= 1)", p.IMUHistorySize)
	}
	if p.FeatureRegions < 1 {
		return fmt.Errorf("invalid feature_regions %d (expected >= 1)", p.FeatureRegions)
	}
	if p.CurvatureRegion < 1 {
		return fmt.Errorf("invalid curvature_region %d (expected >= 1)", p.CurvatureRegion)
	}
	if p.MaxCornerSharp < 1 {
		return fmt.Errorf("invalid max_corner_sharp %d (expected >= 1)", p.MaxCornerSharp)
	}
	if p.MaxCornerLessSharp < p.MaxCornerSharp {
		return fmt.Errorf("invalid max_corner_less_sharp %d (expected >= %d)", p.MaxCornerLessSharp, p.MaxCornerSharp)
	}
	if p.MaxSurfaceFlat < 1 {
		return fmt.Errorf("invalid max_surface_flat %d (expected >= 1)", p.MaxSurfaceFlat)
	}
	if p.SurfaceCurvatureThreshold < 0.001 {
		return fmt.Errorf("invalid surface_curvature_threshold %g (expected >= 0.001)", p.SurfaceCurvatureThreshold)
	}
	if p.LessFlatFilterSize < 0.001 {
		return fmt.Errorf("invalid less_flat_filter_size %g (expected >= 0.001)", p.LessFlatFilterSize)
	}
	mountSet := 0
	for _, v := range []*float64{p.MountRollDeg, p.MountPitchDeg, p.MountYawDeg} {
		if v != nil {
			mountSet++
		}
	}
	if mountSet != 0 && mountSet != 3 {
		return fmt.Errorf("mount rotation requires all of mount_roll_deg, mount_pitch_deg, mount_yaw_deg (got %d of 3)", mountSet)
	}
	return nil
}

// MountRotation reports the configured static mount rotation in
// degrees, if all three angles were supplied.
func (p Params) MountRotation() (roll, pitch, yaw float64, ok bool) {
	if p.MountRollDeg == nil || p.MountPitchDeg == nil || p.MountYawDeg == nil {
		return 0, 0, 0, false
	}
	return *p.MountRollDeg, *p.MountPitchDeg, *p.MountYawDeg, true
}
