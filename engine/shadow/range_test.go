package shadow

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	testNear float32 = 0.1
	testFar  float32 = 100
)

func testProjection() mgl32.Mat4 {
	return common.Perspective(mgl32.DegToRad(45), 1, testNear, testFar)
}

// clipDepthAt returns the clip-space depth of a point dist units in front of the camera.
func clipDepthAt(proj mgl32.Mat4, dist float32) float32 {
	return common.ProjectPoint(proj, mgl32.Vec3{0, 0, -dist}).Z()
}

func TestLinearizeDepth(t *testing.T) {
	proj := testProjection()

	tests := []struct {
		name  string
		depth float32
		want  float32
		eps   float32
	}{
		{"near plane", 0, 0, 1e-5},
		{"far plane", 1, 1, 1e-3},
		{"ten units", clipDepthAt(proj, 10), (10 - testNear) / (testFar - testNear), 1e-4},
		{"fifty units", clipDepthAt(proj, 50), (50 - testNear) / (testFar - testNear), 1e-3},
		{"negative depth clamps", -0.5, 0, 0},
		{"beyond far clamps", 1.0005, 1, 0},
		{"far below clip range", -5, 0, 0},
		{"past the singularity", 1.5, 0, 0},
		{"far above clip range", 5, 0, 0},
		{"singular depth", -proj.At(2, 2), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LinearizeDepth(proj, testNear, testFar, tt.depth)
			if !approxEqual(got, tt.want, tt.eps) {
				t.Errorf("LinearizeDepth(%v) = %v, want %v", tt.depth, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("LinearizeDepth(%v) = %v, outside [0, 1]", tt.depth, got)
			}
		})
	}
}

func TestNewDistanceRange(t *testing.T) {
	tests := []struct {
		start, end float32
		want       DistanceRange
	}{
		{0.2, 0.7, DistanceRange{0.2, 0.7}},
		{0.7, 0.2, DistanceRange{0.2, 0.7}},
		{-0.3, 1.2, FullRange},
		{1.5, 2, DistanceRange{1, 1}},
	}
	for _, tt := range tests {
		if got := NewDistanceRange(tt.start, tt.end); got != tt.want {
			t.Errorf("NewDistanceRange(%v, %v) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestLinearizeDepthRangeOutsideClipRange(t *testing.T) {
	proj := testProjection()
	singular := -proj.At(2, 2) // far / (far - near)
	pairs := [][2]float32{{-5, 5}, {-1, 1.5}, {singular, singular}, {-5, singular}, {0.5, 5}}
	for _, p := range pairs {
		got := LinearizeDepthRange(proj, testNear, testFar, p[0], p[1])
		if got.Start < 0 || got.End > 1 || got.Start > got.End {
			t.Errorf("LinearizeDepthRange(%v, %v) = %v, want a range inside [0, 1]", p[0], p[1], got)
		}
	}
}

func TestLinearizeDepthRange(t *testing.T) {
	proj := testProjection()
	got := LinearizeDepthRange(proj, testNear, testFar, clipDepthAt(proj, 50), clipDepthAt(proj, 10))

	wantStart := (10 - testNear) / (testFar - testNear)
	wantEnd := (50 - testNear) / (testFar - testNear)
	if !approxEqual(got.Start, wantStart, 1e-4) || !approxEqual(got.End, wantEnd, 1e-3) {
		t.Errorf("LinearizeDepthRange() = %v, want {%v %v}", got, wantStart, wantEnd)
	}
}
