package common

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestPerspectiveDepthRange(t *testing.T) {
	p := Perspective(float32(math.Pi/2), 1, 1, 10)
	if z := ProjectPoint(p, mgl32.Vec3{0, 0, -1}).Z(); mgl32.Abs(z) > 1e-6 {
		t.Errorf("near depth = %v, want 0", z)
	}
	if z := ProjectPoint(p, mgl32.Vec3{0, 0, -10}).Z(); mgl32.Abs(z-1) > 1e-6 {
		t.Errorf("far depth = %v, want 1", z)
	}
	if x := ProjectPoint(p, mgl32.Vec3{5, 0, -5}).X(); mgl32.Abs(x-1) > 1e-6 {
		t.Errorf("edge x = %v, want 1 at a 90 degree fov", x)
	}
}

func TestOrthoDepthRange(t *testing.T) {
	o := Ortho(-2, 2, -1, 1, -3, 3)
	tests := []struct {
		in   mgl32.Vec3
		want mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 0.5}},
		{mgl32.Vec3{2, 1, 3}, mgl32.Vec3{1, 1, 0}},
		{mgl32.Vec3{-2, -1, -3}, mgl32.Vec3{-1, -1, 1}},
	}
	for _, tt := range tests {
		if got := ProjectPoint(o, tt.in); !got.ApproxEqualThreshold(tt.want, 1e-6) {
			t.Errorf("Ortho(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLookAt(t *testing.T) {
	v := LookAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, WorldUp)
	if got := ProjectPoint(v, mgl32.Vec3{}); !got.ApproxEqualThreshold(mgl32.Vec3{0, 0, -5}, 1e-6) {
		t.Errorf("target in view space = %v, want (0, 0, -5)", got)
	}
	if got := ProjectPoint(v, mgl32.Vec3{1, 0, 5}); !got.ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-6) {
		t.Errorf("+x in view space = %v, want (1, 0, 0)", got)
	}
}

func TestLookAtMatchesMathgl(t *testing.T) {
	eye, center := mgl32.Vec3{3, 4, -2}, mgl32.Vec3{-1, 0.5, 6}
	want := mgl32.LookAtV(eye, center, WorldUp)
	if got := LookAt(eye, center, WorldUp); !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("LookAt() = %v, want %v", got, want)
	}
}

func TestLookAtDegenerateAxes(t *testing.T) {
	tests := []struct {
		name            string
		eye, center, up mgl32.Vec3
	}{
		{"eye on target", mgl32.Vec3{1, 2, 3}, mgl32.Vec3{1, 2, 3}, WorldUp},
		{"up parallel to forward", mgl32.Vec3{0, 5, 0}, mgl32.Vec3{}, WorldUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, v := range LookAt(tt.eye, tt.center, tt.up) {
				if v != v {
					t.Fatalf("LookAt() element %d is NaN", i)
				}
			}
		})
	}
}

func TestOrthonormalUp(t *testing.T) {
	if got := OrthonormalUp(WorldUp, mgl32.Vec3{0, -1, 0}, 0.95); got != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("parallel up = %v, want (1, 0, 0)", got)
	}
	dir := mgl32.Vec3{1, -1, 0}.Normalize()
	if got := OrthonormalUp(WorldUp, dir, 0.95); got != WorldUp {
		t.Errorf("oblique up = %v, want %v", got, WorldUp)
	}
}

func TestExtractFrustumPlanes(t *testing.T) {
	vp := Ortho(-1, 1, -1, 1, 0, 10)
	planes := ExtractFrustumPlanes(vp)

	for i, p := range planes {
		if l := p.Normal.Len(); mgl32.Abs(l-1) > 1e-5 {
			t.Errorf("plane %d normal length = %v, want 1", i, l)
		}
	}

	tests := []struct {
		name string
		s    BoundingSphere
		skip []int
		want bool
	}{
		{"inside", BoundingSphere{mgl32.Vec3{0, 0, -5}, 0.1}, nil, true},
		{"straddling right", BoundingSphere{mgl32.Vec3{1.05, 0, -5}, 0.1}, nil, true},
		{"outside left", BoundingSphere{mgl32.Vec3{-3, 0, -5}, 0.5}, nil, false},
		{"beyond far", BoundingSphere{mgl32.Vec3{0, 0, -20}, 1}, nil, false},
		{"before near", BoundingSphere{mgl32.Vec3{0, 0, 5}, 1}, nil, false},
		{"before near, skipped", BoundingSphere{mgl32.Vec3{0, 0, 5}, 1}, []int{PlaneNear}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := planes.IntersectsSphere(tt.s, tt.skip...); got != tt.want {
				t.Errorf("IntersectsSphere() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampAndCoalesce(t *testing.T) {
	if Clamp(float32(1.5), 0, 1) != 1 || Clamp(-2, 0, 10) != 0 || Clamp(5, 0, 10) != 5 {
		t.Error("Clamp returned a value outside its bounds")
	}
	if Coalesce(0, 0, 3, 4) != 3 || Coalesce("", "") != "" {
		t.Error("Coalesce did not return the first non-zero value")
	}
}

func TestDepthImage(t *testing.T) {
	img := NewDepthImage(3, 2, 4)
	if len(img.Depths()) != 24 {
		t.Fatalf("len(Depths()) = %d, want 24", len(img.Depths()))
	}
	for _, d := range img.Depths() {
		if d != 1 {
			t.Fatalf("new image depth = %v, want 1", d)
		}
	}

	img.Set(2, 1, 0.25)
	for s := range 4 {
		if got := img.Depths()[(1*3+2)*4+s]; got != 0.25 {
			t.Errorf("sample %d of (2, 1) = %v, want 0.25", s, got)
		}
	}
	if img.Depths()[0] != 1 {
		t.Error("Set wrote outside its texel")
	}
	img.Fill(0.5)
	if img.Depths()[23] != 0.5 {
		t.Error("Fill missed the last sample")
	}
}

func TestSetLogger(t *testing.T) {
	if Logger() == nil {
		t.Fatal("Logger() = nil")
	}
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(prev)

	Logger().Info("hello", "k", 1)
	if !strings.Contains(buf.String(), "k=1") {
		t.Errorf("log output = %q", buf.String())
	}
}
