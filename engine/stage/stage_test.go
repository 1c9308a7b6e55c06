package stage

import (
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/camera"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/Carmen-Shannon/oxy-csm/engine/reduction"
	"github.com/Carmen-Shannon/oxy-csm/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// testRig wires the three stages into a pipeline over a CPU reducer with no readback latency.
type testRig struct {
	writer     ShadowDepthStage
	reflective ReflectiveShadowStage
	indirect   IndirectStage
	pipeline   Pipeline
	writes     []UniformWrite
}

func newTestRig(t *testing.T, cascades int, opts ...PipelineBuilderOption) *testRig {
	t.Helper()
	pool := worker.NewDynamicWorkerPool(2, 32, time.Second)
	reducer := reduction.NewReducer(reduction.NewCPUReductionFactory(pool, 4), reduction.WithReadbackLatency(0))
	r := &testRig{
		writer:     NewShadowDepthStage(reducer, shadow.NewPartitioner(shadow.WithCascadeCount(cascades))),
		reflective: NewReflectiveShadowStage(),
		indirect:   NewIndirectStage(),
	}
	p, err := NewPipeline([]Stage{r.writer, r.reflective, r.indirect}, opts...)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	r.pipeline = p
	return r
}

func (r *testRig) frame(cam camera.Camera, l light.Light, depth reduction.DepthSource, casters ...common.BoundingSphere) *FrameContext {
	return &FrameContext{
		DeltaTime:     time.Second / 60,
		Camera:        cam,
		Light:         l,
		Depth:         depth,
		Casters:       casters,
		ScreenSize:    [2]uint32{1280, 720},
		ShadowMapSize: [2]uint32{light.ShadowMapResolution, light.ShadowMapResolution},
		Sink:          func(w UniformWrite) { r.writes = append(r.writes, w) },
	}
}

// clipDepth returns the clip depth of a point d units in front of the camera.
func clipDepth(cam camera.Camera, d float32) float32 {
	return common.ProjectPoint(cam.ProjectionMatrix(), mgl32.Vec3{0, 0, -d}).Z()
}

func approxEqual(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestShadowDepthStagePublishesReducedRange(t *testing.T) {
	rig := newTestRig(t, 2)
	cam := camera.NewCamera()
	l := light.NewDirectionalLight(mgl32.Vec3{1, -1, 0})

	depth := common.NewDepthImage(16, 16, 1)
	depth.Fill(clipDepth(cam, 30))
	depth.Set(3, 4, clipDepth(cam, 10))

	if err := rig.pipeline.Run(rig.frame(cam, l, depth)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, ok := rig.pipeline.Blackboard().Shadow()
	if !ok {
		t.Fatal("no shadow data published")
	}
	span := cam.Far() - cam.Near()
	if !approxEqual(data.Range.Start, (10-cam.Near())/span, 1e-3) || !approxEqual(data.Range.End, (30-cam.Near())/span, 1e-3) {
		t.Errorf("Range = %v, want about [%v, %v]", data.Range, (10-cam.Near())/span, (30-cam.Near())/span)
	}
	if data.CascadeCount() != 2 {
		t.Errorf("CascadeCount() = %d, want 2", data.CascadeCount())
	}

	res, ok := rig.writer.LastResult()
	if !ok || res.GlobalMat != data.GlobalMat {
		t.Error("LastResult() does not match the published data")
	}

	var perFrame, cascadeCB int
	for _, w := range rig.writes {
		if w.Stage != ShadowDepthStageName {
			continue
		}
		switch {
		case w.Label == "PerFrameCB":
			perFrame++
			if len(w.Data) != 208 {
				t.Errorf("PerFrameCB is %d bytes, want 208", len(w.Data))
			}
		case w.Binding == 1:
			cascadeCB++
			if len(w.Data) != 64 {
				t.Errorf("%s is %d bytes, want 64", w.Label, len(w.Data))
			}
		}
	}
	if perFrame != 1 || cascadeCB != 2 {
		t.Errorf("writer emitted %d PerFrameCB and %d cascade blocks, want 1 and 2", perFrame, cascadeCB)
	}
}

func TestShadowDepthStageSkipsWithoutInputs(t *testing.T) {
	cam := camera.NewCamera()
	tests := []struct {
		name  string
		cam   camera.Camera
		light light.Light
	}{
		{"no camera", nil, light.NewDirectionalLight(mgl32.Vec3{0, -1, 0})},
		{"no light", cam, nil},
		{"disabled light", cam, light.NewDirectionalLight(mgl32.Vec3{0, -1, 0}, light.WithEnabled(false))},
		{"no shadows", cam, light.NewDirectionalLight(mgl32.Vec3{0, -1, 0}, light.WithCastsShadows(false))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, 1)
			if err := rig.pipeline.Run(rig.frame(tt.cam, tt.light, nil)); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if _, ok := rig.pipeline.Blackboard().Shadow(); ok {
				t.Error("shadow data published for a skipped frame")
			}
			if len(rig.writes) != 0 {
				t.Errorf("stages emitted %d uniform writes, want 0", len(rig.writes))
			}
			if _, ok := rig.writer.LastResult(); ok {
				t.Error("LastResult() ok = true after a skipped frame")
			}
		})
	}
}

func TestReadersSeeStaleDataUnlessCleared(t *testing.T) {
	tests := []struct {
		name      string
		opts      []PipelineBuilderOption
		wantStale bool
	}{
		{"stale kept", nil, true},
		{"cleared each frame", []PipelineBuilderOption{WithClearEachFrame(true)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, 1, tt.opts...)
			cam := camera.NewCamera()
			l := light.NewDirectionalLight(mgl32.Vec3{0, -1, -1})
			caster := common.BoundingSphere{Center: mgl32.Vec3{0, 0, -20}, Radius: 1}

			if err := rig.pipeline.Run(rig.frame(cam, l, nil, caster)); err != nil {
				t.Fatalf("Run(frame 1) error = %v", err)
			}
			first, _ := rig.indirect.Uniforms()

			l.SetEnabled(false)
			if err := rig.pipeline.Run(rig.frame(cam, l, nil, caster)); err != nil {
				t.Fatalf("Run(frame 2) error = %v", err)
			}

			frame, ok := rig.pipeline.Blackboard().ShadowFrame()
			if ok != tt.wantStale {
				t.Fatalf("ShadowFrame() ok = %v, want %v", ok, tt.wantStale)
			}
			if tt.wantStale {
				if frame != 1 {
					t.Errorf("ShadowFrame() = %d, want 1", frame)
				}
				if got, _ := rig.indirect.Uniforms(); got.Shadow.GlobalMat != first.Shadow.GlobalMat {
					t.Error("indirect stage did not reuse the stale shadow data")
				}
				if len(rig.reflective.VisibleCasters()) != 1 {
					t.Errorf("VisibleCasters() = %v, want one cascade", rig.reflective.VisibleCasters())
				}
			} else if rig.reflective.VisibleCasters() != nil {
				t.Errorf("VisibleCasters() = %v after a cleared frame, want nil", rig.reflective.VisibleCasters())
			}
		})
	}
}

func TestReflectiveShadowStageCullsCasters(t *testing.T) {
	rig := newTestRig(t, 1)
	cam := camera.NewCamera()
	l := light.NewDirectionalLight(mgl32.Vec3{0, -1, 0})

	inside := common.BoundingSphere{Center: mgl32.Vec3{0, 0, -20}, Radius: 1}
	aside := common.BoundingSphere{Center: mgl32.Vec3{500, 0, 0}, Radius: 1}
	above := common.BoundingSphere{Center: mgl32.Vec3{0, 1000, -20}, Radius: 1}

	if err := rig.pipeline.Run(rig.frame(cam, l, nil, inside, aside, above)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	visible := rig.reflective.VisibleCasters()
	if len(visible) != 1 {
		t.Fatalf("len(VisibleCasters()) = %d, want 1", len(visible))
	}
	if len(visible[0]) != 2 || visible[0][0] != 0 || visible[0][1] != 2 {
		t.Errorf("VisibleCasters()[0] = %v, want [0 2]", visible[0])
	}

	data, _ := rig.pipeline.Blackboard().Shadow()
	planes := common.ExtractFrustumPlanes(data.CascadeMatrix(0))
	if planes.IntersectsSphere(above) {
		t.Error("caster above the light frustum passes the near plane test")
	}
}

func TestIndirectStageKernel(t *testing.T) {
	a := NewIndirectStage().Kernel()
	b := NewIndirectStage().Kernel()
	if len(a) != DefaultIndirectSampleCount {
		t.Fatalf("len(Kernel()) = %d, want %d", len(a), DefaultIndirectSampleCount)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("kernel[%d] differs between stages: %v vs %v", i, a[i], b[i])
		}
		r := a[i].Z()
		if r < 0 || r >= 1 {
			t.Errorf("kernel[%d] radius = %v, want [0, 1)", i, r)
		}
		if l := (mgl32.Vec2{a[i].X(), a[i].Y()}).Len(); !approxEqual(l, r, 1e-5) {
			t.Errorf("kernel[%d] planar length = %v, want %v", i, l, r)
		}
		if a[i].W() != 0 {
			t.Errorf("kernel[%d].w = %v, want 0", i, a[i].W())
		}
	}

	c := NewIndirectStage(WithSeed(1), WithSampleCount(16)).Kernel()
	if len(c) != 16 {
		t.Errorf("len(Kernel()) = %d, want 16", len(c))
	}
	if c[0] == a[0] {
		t.Error("different seeds produced the same first sample")
	}
}

func TestIndirectStageUniforms(t *testing.T) {
	rig := newTestRig(t, 1)
	cam := camera.NewCamera()
	l := light.NewPointLight(mgl32.Vec3{0, 20, -20}, mgl32.Vec3{0, -1, 0}, math.Pi/3)

	if err := rig.pipeline.Run(rig.frame(cam, l, nil)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	u, ok := rig.indirect.Uniforms()
	if !ok {
		t.Fatal("Uniforms() ok = false after a published frame")
	}
	if u.ScreenDim != [2]float32{1280, 720} || u.ShadowMapDim != [2]float32{2048, 2048} {
		t.Errorf("dims = %v, %v", u.ScreenDim, u.ShadowMapDim)
	}
	if u.Size() != 224 || len(u.Marshal()) != 224 {
		t.Errorf("Size() = %d, len(Marshal()) = %d, want 224", u.Size(), len(u.Marshal()))
	}

	var kernelBytes int
	for _, w := range rig.writes {
		if w.Stage == IndirectStageName && w.Label == "SampleKernel" {
			kernelBytes = len(w.Data)
		}
	}
	if kernelBytes != 16*DefaultIndirectSampleCount {
		t.Errorf("SampleKernel is %d bytes, want %d", kernelBytes, 16*DefaultIndirectSampleCount)
	}
}

func TestIndirectStageOptionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("WithSampleCount(0) did not panic")
		}
	}()
	NewIndirectStage(WithSampleCount(0))
}
