// Package blackboard carries per-frame shadow data from the stage that fits it to the stages
// that consume it.
package blackboard

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/Carmen-Shannon/oxy-csm/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// Fixed keys under which the shadow entries can be looked up by name.
const (
	KeyGlobalMat     = "globalMat"
	KeyCascadeScale  = "cascadeScale"
	KeyCascadeOffset = "cascadeOffset"
)

// ErrMultipleWriters is returned when a second writer publishes shadow data in the same frame.
var ErrMultipleWriters = errors.New("blackboard: shadow data already published this frame")

// ShadowData is the fitted shadow state of one frame.
type ShadowData struct {
	// GlobalMat is the light view-projection shared by all cascades.
	GlobalMat mgl32.Mat4
	// CascadeScale holds one crop scale per cascade, nearest first.
	CascadeScale []mgl32.Vec4
	// CascadeOffset holds one crop offset per cascade, nearest first.
	CascadeOffset []mgl32.Vec4
	// Range is the normalized distance range the cascades cover.
	Range shadow.DistanceRange
}

// FromResult builds the shadow data of a partitioning result.
func FromResult(res shadow.Result) ShadowData {
	return ShadowData{
		GlobalMat:     res.GlobalMat,
		CascadeScale:  res.Scales(),
		CascadeOffset: res.Offsets(),
		Range:         res.Range,
	}
}

// clone copies d with its own cascade slices.
func (d ShadowData) clone() ShadowData {
	d.CascadeScale = slices.Clone(d.CascadeScale)
	d.CascadeOffset = slices.Clone(d.CascadeOffset)
	return d
}

// CascadeCount returns the number of cascades described.
func (d ShadowData) CascadeCount() int {
	return min(len(d.CascadeScale), len(d.CascadeOffset))
}

// CascadeMatrix returns the full view-projection of cascade i: crop * GlobalMat.
func (d ShadowData) CascadeMatrix(i int) mgl32.Mat4 {
	crop := shadow.Crop{Scale: d.CascadeScale[i], Offset: d.CascadeOffset[i]}
	return crop.Matrix().Mul4(d.GlobalMat)
}

// GPU converts the data into its uniform block layout.
func (d ShadowData) GPU() light.GPUShadowData {
	g := light.GPUShadowData{
		GlobalMat:     d.GlobalMat,
		DistanceRange: [2]float32{d.Range.Start, d.Range.End},
	}
	g.SetCascades(d.CascadeScale, d.CascadeOffset)
	return g
}

// blackboardImpl is the implementation of the Blackboard interface.
type blackboardImpl struct {
	frame       uint64
	shadow      ShadowData
	hasShadow   bool
	shadowFrame uint64
	writer      string
}

// Blackboard is the per-frame context shared by the stages of a pipeline.
//
// Exactly one writer publishes shadow data per frame and every reader runs after it. A frame in
// which the writer publishes nothing leaves the previous frame's data in place; hosts that want
// readers to see absence instead call Clear at the start of each frame. The blackboard does no
// locking: stages of one frame run sequentially.
type Blackboard interface {
	// BeginFrame starts a new frame. Published data is kept.
	//
	// Parameters:
	//   - frame: the new frame index
	BeginFrame(frame uint64)

	// Frame returns the current frame index.
	//
	// Returns:
	//   - uint64: the frame index passed to the last BeginFrame
	Frame() uint64

	// PublishShadow stores the frame's shadow data.
	//
	// Parameters:
	//   - writer: name of the publishing stage
	//   - data: the shadow data, copied on store
	//
	// Returns:
	//   - error: ErrMultipleWriters if a different writer already published this frame
	PublishShadow(writer string, data ShadowData) error

	// Shadow returns a copy of the most recently published shadow data. Changes made by a
	// reader are not seen by later readers.
	//
	// Returns:
	//   - ShadowData: the data
	//   - bool: false if nothing is published, meaning shadows are disabled for the frame
	Shadow() (ShadowData, bool)

	// ShadowFrame returns the frame in which the current shadow data was published, so readers
	// can tell fresh data from data left over by an earlier frame.
	//
	// Returns:
	//   - uint64: the publishing frame
	//   - bool: false if nothing is published
	ShadowFrame() (uint64, bool)

	// Value looks up a shadow entry by its fixed key.
	//
	// Parameters:
	//   - key: one of KeyGlobalMat, KeyCascadeScale, KeyCascadeOffset
	//
	// Returns:
	//   - any: mgl32.Mat4 for the matrix, a copied []mgl32.Vec4 for the crops
	//   - bool: false for unknown keys or when nothing is published
	Value(key string) (any, bool)

	// Clear removes all published data.
	Clear()
}

var _ Blackboard = &blackboardImpl{}

// NewBlackboard creates an empty Blackboard at frame 0.
//
// Returns:
//   - Blackboard: the empty blackboard
func NewBlackboard() Blackboard {
	return &blackboardImpl{}
}

func (b *blackboardImpl) BeginFrame(frame uint64) {
	b.frame = frame
}

func (b *blackboardImpl) Frame() uint64 {
	return b.frame
}

func (b *blackboardImpl) PublishShadow(writer string, data ShadowData) error {
	if b.hasShadow && b.shadowFrame == b.frame && b.writer != writer {
		return fmt.Errorf("%w: %q then %q in frame %d", ErrMultipleWriters, b.writer, writer, b.frame)
	}
	b.shadow = data.clone()
	b.hasShadow = true
	b.shadowFrame = b.frame
	b.writer = writer
	return nil
}

func (b *blackboardImpl) Shadow() (ShadowData, bool) {
	return b.shadow.clone(), b.hasShadow
}

func (b *blackboardImpl) ShadowFrame() (uint64, bool) {
	return b.shadowFrame, b.hasShadow
}

func (b *blackboardImpl) Value(key string) (any, bool) {
	if !b.hasShadow {
		return nil, false
	}
	switch key {
	case KeyGlobalMat:
		return b.shadow.GlobalMat, true
	case KeyCascadeScale:
		return slices.Clone(b.shadow.CascadeScale), true
	case KeyCascadeOffset:
		return slices.Clone(b.shadow.CascadeOffset), true
	default:
		return nil, false
	}
}

func (b *blackboardImpl) Clear() {
	b.shadow = ShadowData{}
	b.hasShadow = false
	b.shadowFrame = 0
	b.writer = ""
}
