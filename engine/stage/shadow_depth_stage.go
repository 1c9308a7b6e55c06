package stage

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/blackboard"
	"github.com/Carmen-Shannon/oxy-csm/engine/reduction"
	"github.com/Carmen-Shannon/oxy-csm/engine/shadow"
)

// ShadowDepthStageName is the name of the shadow depth stage.
const ShadowDepthStageName = "ShadowDepth"

// shadowDepthStageImpl fits the cascades and publishes them.
type shadowDepthStageImpl struct {
	reducer     reduction.Reducer
	partitioner shadow.Partitioner
	last        shadow.Result
	hasResult   bool
}

// ShadowDepthStage is the writer stage. Each frame it reduces the depth buffer to a visible
// distance range, partitions that range into cascades and publishes the shared light matrix and
// the per-cascade crops.
type ShadowDepthStage interface {
	Stage

	// LastResult returns the partitioning of the most recent frame that was not skipped.
	//
	// Returns:
	//   - shadow.Result: the result
	//   - bool: false until a frame has been fitted
	LastResult() (shadow.Result, bool)
}

var _ ShadowDepthStage = &shadowDepthStageImpl{}

// NewShadowDepthStage creates the writer stage.
//
// Parameters:
//   - reducer: produces the visible distance range from depth buffers
//   - partitioner: fits cascades to that range
//
// Returns:
//   - ShadowDepthStage: the stage
func NewShadowDepthStage(reducer reduction.Reducer, partitioner shadow.Partitioner) ShadowDepthStage {
	if reducer == nil || partitioner == nil {
		panic("stage: NewShadowDepthStage requires a Reducer and a Partitioner")
	}
	return &shadowDepthStageImpl{reducer: reducer, partitioner: partitioner}
}

func (s *shadowDepthStageImpl) Name() string {
	return ShadowDepthStageName
}

func (s *shadowDepthStageImpl) Role() Role {
	return RoleWriter
}

func (s *shadowDepthStageImpl) LastResult() (shadow.Result, bool) {
	return s.last, s.hasResult
}

func (s *shadowDepthStageImpl) Execute(ctx *FrameContext) error {
	if ctx.Camera == nil || ctx.Light == nil || !ctx.Light.Enabled() || !ctx.Light.CastsShadows() {
		common.Logger().Debug("skipping shadow fit", "stage", s.Name(), "frame", ctx.Index)
		return nil
	}

	rng, err := s.reducer.Reduce(ctx.Camera, ctx.Depth)
	if err != nil {
		common.Logger().Warn("depth reduction failed, using last range", "frame", ctx.Index, "err", err)
	}

	res := s.partitioner.Partition(ctx.Camera, rng, ctx.Light)
	data := blackboard.FromResult(res)
	if err := ctx.Board.PublishShadow(s.Name(), data); err != nil {
		return fmt.Errorf("failed to publish shadow data: %w", err)
	}
	s.last, s.hasResult = res, true

	gpu := data.GPU()
	ctx.emit(UniformWrite{Stage: s.Name(), Label: "PerFrameCB", Binding: 0, Data: gpu.Marshal()})
	for i := range data.CascadeCount() {
		ctx.emit(UniformWrite{
			Stage:   s.Name(),
			Label:   fmt.Sprintf("CascadeCB[%d]", i),
			Binding: 1,
			Data:    marshalMat4(data.CascadeMatrix(i)),
		})
	}
	return nil
}
