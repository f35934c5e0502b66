// Package testutil provides shared test fixtures: synthetic room scans, slice
// boxes that cut through them, and small assertion helpers.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/floorplan.report/internal/floorplan"
)

// Room describes an axis-aligned rectangular room with its floor corner at
// the origin. Height is along +Y; the floor plan lies in X/Z.
type Room struct {
	Width  float64 // along X
	Depth  float64 // along Z
	Height float64
}

// DefaultRoom is the 10×8 ft, 8 ft high room used across package tests.
var DefaultRoom = Room{Width: 10, Depth: 8, Height: 8}

// Outline samples the four walls at n interior points each (corners are
// left out), returned as floor-plane (x, z) pairs.
func (r Room) Outline(n int) []floorplan.Point2D {
	pts := make([]floorplan.Point2D, 0, 4*n)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n+1)
		x, z := t*r.Width, t*r.Depth
		pts = append(pts,
			floorplan.Point2D{X: x, Y: 0},
			floorplan.Point2D{X: x, Y: r.Depth},
			floorplan.Point2D{X: 0, Y: z},
			floorplan.Point2D{X: r.Width, Y: z},
		)
	}
	return pts
}

// Cloud stacks Outline(n) at floor, mid and ceiling height.
func (r Room) Cloud(n int) []floorplan.Point3D {
	heights := []float64{0, r.Height / 2, r.Height}
	var out []floorplan.Point3D
	for _, p := range r.Outline(n) {
		for _, h := range heights {
			out = append(out, floorplan.Point3D{X: p.X, Y: h, Z: p.Y})
		}
	}
	return out
}

// MidSlice is a foot-thick slab at half height, wide enough to hold the
// whole room.
func (r Room) MidSlice() floorplan.SliceBoxConfig {
	return floorplan.SliceBoxConfig{
		Center:          floorplan.Point3D{X: r.Width / 2, Y: r.Height / 2, Z: r.Depth / 2},
		HalfExtents:     floorplan.Vec3{X: r.Width/2 + 1, Y: r.Height/2 + 1, Z: r.Depth/2 + 1},
		ThicknessInches: 12,
	}
}

// WriteXYZ writes points as an "x y z" file in dir and returns its path.
func WriteXYZ(t testing.TB, dir, name string, points []floorplan.Point3D) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("# x y z\n")
	for _, p := range points {
		fmt.Fprintf(&b, "%g %g %g\n", p.X, p.Y, p.Z)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
