// Package stage runs the per-frame shadow stages in a fixed order around a shared blackboard.
package stage

import (
	"time"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/blackboard"
	"github.com/Carmen-Shannon/oxy-csm/engine/camera"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/Carmen-Shannon/oxy-csm/engine/reduction"
)

// Role declares whether a stage publishes to the blackboard or only reads from it.
type Role int

const (
	// RoleWriter publishes the frame's shadow data. A pipeline holds exactly one.
	RoleWriter Role = iota
	// RoleReader consumes shadow data published earlier in the same frame.
	RoleReader
)

// String returns a readable name for the role.
func (r Role) String() string {
	if r == RoleWriter {
		return "writer"
	}
	return "reader"
}

// UniformWrite is a block of uniform data a stage hands to the binding layer.
type UniformWrite struct {
	// Stage is the name of the producing stage.
	Stage string
	// Label names the uniform block, e.g. "PerFrameCB".
	Label string
	// Binding is the binding index within the stage's bind group.
	Binding int
	// Data is the serialized block.
	Data []byte
}

// UniformSink receives the uniform writes produced during a frame.
type UniformSink func(w UniformWrite)

// FrameContext is everything a stage may read or write during one frame.
// Camera and Light may be nil, in which case the writer skips the frame.
type FrameContext struct {
	// Index is the frame number, assigned by the pipeline.
	Index uint64
	// DeltaTime is the time since the previous frame.
	DeltaTime time.Duration

	Camera camera.Camera
	Light  light.Light
	// Depth is the frame's depth buffer; nil skips the reduction.
	Depth reduction.DepthSource
	// Casters are the bounding spheres of the shadow-casting objects.
	Casters []common.BoundingSphere

	// ScreenSize is the size of the main render target in pixels.
	ScreenSize [2]uint32
	// ShadowMapSize is the size of the shadow map in texels.
	ShadowMapSize [2]uint32

	// Board is the frame's blackboard, assigned by the pipeline.
	Board blackboard.Blackboard
	// Sink receives uniform writes; nil discards them.
	Sink UniformSink
}

// emit forwards w to the sink if one is set.
func (c *FrameContext) emit(w UniformWrite) {
	if c.Sink != nil {
		c.Sink(w)
	}
}

// Stage is one step of the per-frame shadow pipeline.
type Stage interface {
	// Name returns the stage's unique name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Role returns whether the stage writes or reads the blackboard.
	//
	// Returns:
	//   - Role: the stage role
	Role() Role

	// Execute runs the stage for one frame.
	//
	// Parameters:
	//   - ctx: the frame context
	//
	// Returns:
	//   - error: a failure that aborts the rest of the frame
	Execute(ctx *FrameContext) error
}
