package stage

import "github.com/Carmen-Shannon/oxy-csm/engine/blackboard"

// PipelineBuilderOption is a functional option for configuring a Pipeline.
type PipelineBuilderOption func(*pipelineImpl)

// WithBlackboard makes the pipeline share an existing blackboard instead of creating its own.
//
// Parameters:
//   - b: the blackboard
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithBlackboard(b blackboard.Blackboard) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.board = b
	}
}

// WithClearEachFrame clears the blackboard at the start of every frame, so readers see no shadow
// data in frames where the writer skips. By default the last published data is kept.
//
// Parameters:
//   - enabled: whether to clear each frame
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithClearEachFrame(enabled bool) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.clearEachFrame = enabled
	}
}
