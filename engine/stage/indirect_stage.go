package stage

import (
	"math"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// IndirectStageName is the name of the indirect lighting stage.
	IndirectStageName = "Indirect"
	// DefaultIndirectSampleCount is the default size of the sampling kernel.
	DefaultIndirectSampleCount = 64
	// DefaultIndirectSeed seeds the sampling kernel so every run produces the same pattern.
	DefaultIndirectSeed uint64 = 10086
)

// IndirectStageBuilderOption is a functional option for configuring an IndirectStage.
type IndirectStageBuilderOption func(*indirectStageImpl)

// WithSampleCount sets the number of kernel samples.
//
// Parameters:
//   - n: number of samples, must be positive
//
// Returns:
//   - IndirectStageBuilderOption: option function to apply
func WithSampleCount(n int) IndirectStageBuilderOption {
	return func(s *indirectStageImpl) {
		if n <= 0 {
			panic("stage: WithSampleCount requires a positive count")
		}
		s.sampleCount = n
	}
}

// WithSeed sets the seed of the sampling kernel.
//
// Parameters:
//   - seed: the seed
//
// Returns:
//   - IndirectStageBuilderOption: option function to apply
func WithSeed(seed uint64) IndirectStageBuilderOption {
	return func(s *indirectStageImpl) {
		s.seed = seed
	}
}

// indirectStageImpl implements IndirectStage.
type indirectStageImpl struct {
	sampleCount int
	seed        uint64
	kernel      []mgl32.Vec4
	last        GPUIndirectUniforms
	hasLast     bool
}

// IndirectStage gathers one-bounce indirect light from the reflective shadow maps. It owns the
// polar sampling kernel used to pick shadow-map texels around each pixel's projected position.
type IndirectStage interface {
	Stage

	// Kernel returns the sampling kernel. Each entry is (r*sin(2πt), r*cos(2πt), r, 0) for
	// uniform r and t in [0, 1).
	//
	// Returns:
	//   - []mgl32.Vec4: the kernel samples
	Kernel() []mgl32.Vec4

	// Uniforms returns the uniform block built in the last frame that had shadow data.
	//
	// Returns:
	//   - GPUIndirectUniforms: the block
	//   - bool: false until a frame had shadow data
	Uniforms() (GPUIndirectUniforms, bool)
}

var _ IndirectStage = &indirectStageImpl{}

// NewIndirectStage creates the indirect lighting stage.
//
// Parameters:
//   - opts: functional options (sample count, seed)
//
// Returns:
//   - IndirectStage: the stage
func NewIndirectStage(opts ...IndirectStageBuilderOption) IndirectStage {
	s := &indirectStageImpl{
		sampleCount: DefaultIndirectSampleCount,
		seed:        DefaultIndirectSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.kernel = samplingKernel(s.sampleCount, s.seed)
	return s
}

// samplingKernel draws n polar samples from a seeded PCG source.
func samplingKernel(n int, seed uint64) []mgl32.Vec4 {
	rng := rand.New(rand.NewPCG(seed, seed))
	kernel := make([]mgl32.Vec4, n)
	for i := range kernel {
		r := rng.Float64()
		theta := 2 * math.Pi * rng.Float64()
		kernel[i] = mgl32.Vec4{
			float32(r * math.Sin(theta)),
			float32(r * math.Cos(theta)),
			float32(r),
			0,
		}
	}
	return kernel
}

func (s *indirectStageImpl) Name() string {
	return IndirectStageName
}

func (s *indirectStageImpl) Role() Role {
	return RoleReader
}

func (s *indirectStageImpl) Kernel() []mgl32.Vec4 {
	return s.kernel
}

func (s *indirectStageImpl) Uniforms() (GPUIndirectUniforms, bool) {
	return s.last, s.hasLast
}

func (s *indirectStageImpl) Execute(ctx *FrameContext) error {
	data, ok := ctx.Board.Shadow()
	if !ok {
		common.Logger().Debug("no shadow data, skipping", "stage", s.Name(), "frame", ctx.Index)
		return nil
	}

	u := GPUIndirectUniforms{
		Shadow:       data.GPU(),
		ScreenDim:    [2]float32{float32(ctx.ScreenSize[0]), float32(ctx.ScreenSize[1])},
		ShadowMapDim: [2]float32{float32(ctx.ShadowMapSize[0]), float32(ctx.ShadowMapSize[1])},
	}
	s.last, s.hasLast = u, true

	ctx.emit(UniformWrite{Stage: s.Name(), Label: "PerFrameCB", Binding: 0, Data: u.Marshal()})
	ctx.emit(UniformWrite{Stage: s.Name(), Label: "SampleKernel", Binding: 1, Data: marshalVec4s(s.kernel)})
	return nil
}
