package stage

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-csm/engine/blackboard"
)

var (
	// ErrNoWriter is returned when a pipeline has no writer stage.
	ErrNoWriter = errors.New("stage: pipeline has no writer stage")
	// ErrMultipleWriterStages is returned when a pipeline declares more than one writer stage.
	ErrMultipleWriterStages = errors.New("stage: pipeline has more than one writer stage")
	// ErrReaderBeforeWriter is returned when a reader stage is ordered before the writer.
	ErrReaderBeforeWriter = errors.New("stage: reader stage ordered before the writer")
	// ErrDuplicateStage is returned when two stages share a name.
	ErrDuplicateStage = errors.New("stage: duplicate stage name")
)

// pipelineImpl implements Pipeline.
type pipelineImpl struct {
	stages         []Stage
	board          blackboard.Blackboard
	clearEachFrame bool
	frame          uint64
}

// Pipeline runs a fixed sequence of stages once per frame. The writer stage always runs before
// every reader, so readers observe the data published in the same frame.
type Pipeline interface {
	// Run executes one frame. It assigns ctx.Index and ctx.Board, begins a blackboard frame and
	// runs every stage in order, stopping at the first error.
	//
	// Parameters:
	//   - ctx: the frame context
	//
	// Returns:
	//   - error: the first stage error, wrapped with the stage name
	Run(ctx *FrameContext) error

	// Stages returns the stages in execution order.
	//
	// Returns:
	//   - []Stage: the stages
	Stages() []Stage

	// Blackboard returns the blackboard shared by the stages.
	//
	// Returns:
	//   - blackboard.Blackboard: the blackboard
	Blackboard() blackboard.Blackboard

	// Frame returns the number of frames run so far.
	//
	// Returns:
	//   - uint64: the frame count
	Frame() uint64
}

var _ Pipeline = &pipelineImpl{}

// NewPipeline validates the stage order and creates a Pipeline.
//
// Parameters:
//   - stages: the stages in execution order
//   - opts: functional options (blackboard, clearing)
//
// Returns:
//   - Pipeline: the pipeline
//   - error: ErrNoWriter, ErrMultipleWriterStages, ErrReaderBeforeWriter or ErrDuplicateStage
func NewPipeline(stages []Stage, opts ...PipelineBuilderOption) (Pipeline, error) {
	if err := validateOrder(stages); err != nil {
		return nil, err
	}
	p := &pipelineImpl{stages: append([]Stage(nil), stages...)}
	for _, opt := range opts {
		opt(p)
	}
	if p.board == nil {
		p.board = blackboard.NewBlackboard()
	}
	return p, nil
}

// validateOrder checks that exactly one writer exists and that it precedes every reader.
func validateOrder(stages []Stage) error {
	names := make(map[string]struct{}, len(stages))
	writer := -1
	firstReader := -1
	for i, s := range stages {
		if _, dup := names[s.Name()]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name())
		}
		names[s.Name()] = struct{}{}

		switch s.Role() {
		case RoleWriter:
			if writer >= 0 {
				return fmt.Errorf("%w: %q and %q", ErrMultipleWriterStages, stages[writer].Name(), s.Name())
			}
			writer = i
		default:
			if firstReader < 0 {
				firstReader = i
			}
		}
	}
	if writer < 0 {
		return ErrNoWriter
	}
	if firstReader >= 0 && firstReader < writer {
		return fmt.Errorf("%w: %q before %q", ErrReaderBeforeWriter, stages[firstReader].Name(), stages[writer].Name())
	}
	return nil
}

func (p *pipelineImpl) Run(ctx *FrameContext) error {
	p.frame++
	ctx.Index = p.frame
	ctx.Board = p.board

	p.board.BeginFrame(p.frame)
	if p.clearEachFrame {
		p.board.Clear()
	}

	for _, s := range p.stages {
		if err := s.Execute(ctx); err != nil {
			return fmt.Errorf("stage %q failed in frame %d: %w", s.Name(), p.frame, err)
		}
	}
	return nil
}

func (p *pipelineImpl) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

func (p *pipelineImpl) Blackboard() blackboard.Blackboard {
	return p.board
}

func (p *pipelineImpl) Frame() uint64 {
	return p.frame
}
