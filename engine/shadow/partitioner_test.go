package shadow

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/camera"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

func TestPartitionEndToEnd(t *testing.T) {
	cam := camera.NewCamera(camera.WithNear(testNear), camera.WithFar(testFar))
	proj := cam.ProjectionMatrix()
	rng := LinearizeDepthRange(proj, cam.Near(), cam.Far(), clipDepthAt(proj, 10), clipDepthAt(proj, 50))

	wantStart := (10 - testNear) / (testFar - testNear)
	wantEnd := (50 - testNear) / (testFar - testNear)
	if !approxEqual(rng.Start, wantStart, 1e-4) || !approxEqual(rng.End, wantEnd, 1e-3) {
		t.Fatalf("range = %v, want {%v %v}", rng, wantStart, wantEnd)
	}

	l := light.NewDirectionalLight(mgl32.Vec3{0, -1, 0})
	res := NewPartitioner().Partition(cam, rng, l)

	if len(res.Cascades) != 1 {
		t.Fatalf("len(Cascades) = %d, want 1", len(res.Cascades))
	}
	c := res.Cascades[0]
	if c.Start != rng.Start || c.End != rng.End {
		t.Errorf("cascade bounds = [%v, %v], want [%v, %v]", c.Start, c.End, rng.Start, rng.End)
	}
	if !approxEqual(c.NearDistance, 10, 1e-2) || !approxEqual(c.FarDistance, 50, 1e-1) {
		t.Errorf("cascade distances = [%v, %v], want [10, 50]", c.NearDistance, c.FarDistance)
	}

	if got := common.ProjectPoint(res.GlobalMat, res.Frustum.Center); !approxEqual(got.X(), 0, 1e-4) || !approxEqual(got.Y(), 0, 1e-4) {
		t.Errorf("project(frustum center) = %v, want (0, 0, z)", got)
	}

	var lo, hi float32 = 2, -2
	for _, corner := range c.Corners {
		z := c.Crop.Apply(common.ProjectPoint(res.GlobalMat, corner)).Z()
		lo, hi = min(lo, z), max(hi, z)
	}
	if !approxEqual(lo, 0, 1e-4) || !approxEqual(hi, 1, 1e-4) {
		t.Errorf("cropped depth extent = [%v, %v], want [0, 1]", lo, hi)
	}
}

func TestPartitionCascadeBounds(t *testing.T) {
	cam := camera.NewCamera()
	l := light.NewDirectionalLight(mgl32.Vec3{1, -1, 0})

	tests := []struct {
		name   string
		opts   []PartitionerBuilderOption
		rng    DistanceRange
		bounds [][2]float32
	}{
		{
			name:   "contiguous",
			opts:   []PartitionerBuilderOption{WithCascadeCount(3)},
			rng:    DistanceRange{0.1, 0.7},
			bounds: [][2]float32{{0.1, 0.3}, {0.3, 0.5}, {0.5, 0.7}},
		},
		{
			name:   "blended",
			opts:   []PartitionerBuilderOption{WithCascadeCount(3), WithBlendMargin(0.05)},
			rng:    DistanceRange{0.1, 0.7},
			bounds: [][2]float32{{0.1, 0.35}, {0.25, 0.55}, {0.45, 0.7}},
		},
		{
			name:   "blend clamped",
			opts:   []PartitionerBuilderOption{WithCascadeCount(2), WithBlendMargin(0.6)},
			rng:    FullRange,
			bounds: [][2]float32{{0, 1}, {0, 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewPartitioner(tt.opts...).Partition(cam, tt.rng, l)
			if len(res.Cascades) != len(tt.bounds) {
				t.Fatalf("len(Cascades) = %d, want %d", len(res.Cascades), len(tt.bounds))
			}
			for i, want := range tt.bounds {
				c := res.Cascades[i]
				if c.Index != i {
					t.Errorf("Cascades[%d].Index = %d", i, c.Index)
				}
				if !approxEqual(c.Start, want[0], 1e-6) || !approxEqual(c.End, want[1], 1e-6) {
					t.Errorf("Cascades[%d] = [%v, %v], want [%v, %v]", i, c.Start, c.End, want[0], want[1])
				}
				for axis := range 4 {
					if s := c.Crop.Scale[axis]; !isFinite(s) || s <= 0 {
						t.Errorf("Cascades[%d].Crop.Scale[%d] = %v, want finite and positive", i, axis, s)
					}
				}
			}
			if len(res.Scales()) != len(tt.bounds) || len(res.Offsets()) != len(tt.bounds) {
				t.Errorf("Scales()/Offsets() lengths = %d/%d, want %d", len(res.Scales()), len(res.Offsets()), len(tt.bounds))
			}
		})
	}
}

func TestPartitionPointLightAspect(t *testing.T) {
	cam := camera.NewCamera(camera.WithPosition(mgl32.Vec3{0, 1, 0}), camera.WithTarget(mgl32.Vec3{0, 0, -10}))
	l := light.NewPointLight(mgl32.Vec3{0, 30, 0}, mgl32.Vec3{0, -1, -1}, mgl32.DegToRad(40))

	p := NewPartitioner(WithShadowMapSize(2048, 1024))
	if p.Aspect() != 2 {
		t.Errorf("Aspect() = %v, want 2", p.Aspect())
	}
	res := p.Partition(cam, FullRange, l)
	for i := range 16 {
		if !isFinite(res.GlobalMat[i]) {
			t.Fatalf("GlobalMat[%d] = %v, want finite", i, res.GlobalMat[i])
		}
	}
}

func TestPartitionerOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"zero cascades", func() { WithCascadeCount(0) }},
		{"too many cascades", func() { WithCascadeCount(light.MaxCascades + 1) }},
		{"negative blend", func() { WithBlendMargin(-0.1) }},
		{"empty shadow map", func() { WithShadowMapSize(0, 1024) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s did not panic", tt.name)
				}
			}()
			tt.fn()
		})
	}
}
