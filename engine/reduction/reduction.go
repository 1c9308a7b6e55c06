// Package reduction finds the visible depth range of a frame by reducing its depth buffer to a
// minimum and maximum, reading results back a fixed number of frames later.
package reduction

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/Carmen-Shannon/oxy-csm/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrNilDepthSource is returned by a reduction asked to dispatch without a depth buffer.
	ErrNilDepthSource = errors.New("reduction: nil depth source")
	// ErrUnsupportedSource is returned when a depth buffer cannot be read by the reduction backend.
	ErrUnsupportedSource = errors.New("reduction: unsupported depth source")
	// ErrEmptyReduction is returned when a dispatched reduction covered no samples.
	ErrEmptyReduction = errors.New("reduction: no depth samples reduced")
)

// DepthSource describes a depth buffer to reduce.
type DepthSource interface {
	Width() uint32
	Height() uint32
	SampleCount() uint32
}

// Key identifies the reduction resources a depth buffer needs.
type Key struct {
	Width       uint32
	Height      uint32
	SampleCount uint32
}

// KeyOf returns the Key of a depth source.
func KeyOf(src DepthSource) Key {
	return Key{Width: src.Width(), Height: src.Height(), SampleCount: max(src.SampleCount(), 1)}
}

// String returns the key as WxH@S.
func (k Key) String() string {
	return fmt.Sprintf("%dx%d@%d", k.Width, k.Height, k.SampleCount)
}

// MinMaxReduction is a backend reduction sized for exactly one Key. It owns one in-flight request
// per slot; dispatching into a slot replaces whatever it held.
type MinMaxReduction interface {
	// Key returns the depth buffer shape the reduction was created for.
	//
	// Returns:
	//   - Key: the buffer shape
	Key() Key

	// Dispatch starts reducing src into slot without waiting for the result.
	//
	// Parameters:
	//   - slot: the ring slot to fill
	//   - src: the depth buffer, which must match Key
	//
	// Returns:
	//   - error: ErrUnsupportedSource if the backend cannot read src, or a backend error
	Dispatch(slot int, src DepthSource) error

	// Resolve blocks until the request in slot completes and returns its clip-space extrema.
	//
	// Parameters:
	//   - slot: the ring slot to read
	//
	// Returns:
	//   - float32: the smallest depth
	//   - float32: the largest depth
	//   - error: ErrEmptyReduction if nothing was reduced, or a backend error
	Resolve(slot int) (float32, float32, error)

	// Release frees every resource held by the reduction.
	Release()
}

// Factory creates a reduction for key with the given number of ring slots.
type Factory func(key Key, slots int) (MinMaxReduction, error)

// Projection is the part of a camera the reducer reads to linearize depth.
type Projection interface {
	Near() float32
	Far() float32
	ProjectionMatrix() mgl32.Mat4
}

// request is one entry of the readback ring.
type request struct {
	frame uint64
	valid bool
}

// reducerImpl is the implementation of the Reducer interface.
type reducerImpl struct {
	factory   Factory
	latency   int
	reduction MinMaxReduction
	ring      []request
	frame     uint64
	lastRange shadow.DistanceRange
}

// Reducer turns a stream of per-frame depth buffers into normalized visible distance ranges.
//
// Every call dispatches a new reduction and returns the range whose reduction was dispatched
// Latency frames earlier. Until such a result exists the full range [0, 1] is returned, and a
// frame whose result cannot be read keeps the last known range.
type Reducer interface {
	// Reduce dispatches the reduction of depth and returns the range of an earlier frame.
	// A nil depth buffer dispatches nothing and returns the last known range.
	//
	// Parameters:
	//   - cam: the camera whose projection produced the depth buffer
	//   - depth: the frame's depth buffer
	//
	// Returns:
	//   - shadow.DistanceRange: the normalized visible range
	//   - error: a wrapped backend error; the returned range is still usable
	Reduce(cam Projection, depth DepthSource) (shadow.DistanceRange, error)

	// Latency returns the number of frames between dispatch and readback.
	//
	// Returns:
	//   - int: the readback latency
	Latency() int

	// Frame returns the number of frames reduced so far.
	//
	// Returns:
	//   - uint64: the frame counter
	Frame() uint64

	// Key returns the shape of the live reduction, or the zero Key if none exists.
	//
	// Returns:
	//   - Key: the live reduction's key
	Key() Key

	// Release frees the live reduction. The reducer recreates it on the next Reduce.
	Release()
}

var _ Reducer = &reducerImpl{}

// NewReducer creates a Reducer that builds reductions with factory.
//
// Parameters:
//   - factory: creates a backend reduction whenever the depth buffer shape changes
//   - opts: optional configuration
//
// Returns:
//   - Reducer: the configured reducer
func NewReducer(factory Factory, opts ...ReducerBuilderOption) Reducer {
	if factory == nil {
		panic("reduction: NewReducer requires a non-nil Factory")
	}
	r := &reducerImpl{
		factory:   factory,
		latency:   light.DefaultReadbackLatency,
		lastRange: shadow.FullRange,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ring = make([]request, r.latency+1)
	return r
}

func (r *reducerImpl) Latency() int {
	return r.latency
}

func (r *reducerImpl) Frame() uint64 {
	return r.frame
}

func (r *reducerImpl) Key() Key {
	if r.reduction == nil {
		return Key{}
	}
	return r.reduction.Key()
}

func (r *reducerImpl) Release() {
	if r.reduction != nil {
		r.reduction.Release()
		r.reduction = nil
	}
	clear(r.ring)
}

func (r *reducerImpl) Reduce(cam Projection, depth DepthSource) (shadow.DistanceRange, error) {
	if depth == nil {
		return r.lastRange, nil
	}
	if err := r.ensureReduction(KeyOf(depth)); err != nil {
		return r.lastRange, err
	}

	frame := r.frame
	r.frame++
	slots := uint64(len(r.ring))

	writeSlot := int(frame % slots)
	r.ring[writeSlot] = request{}
	if err := r.reduction.Dispatch(writeSlot, depth); err != nil {
		return r.lastRange, fmt.Errorf("reduction: dispatch frame %d: %w", frame, err)
	}
	r.ring[writeSlot] = request{frame: frame, valid: true}

	if frame < uint64(r.latency) {
		return r.lastRange, nil
	}
	readFrame := frame - uint64(r.latency)
	readSlot := int(readFrame % slots)
	req := r.ring[readSlot]
	if !req.valid || req.frame != readFrame {
		return r.lastRange, nil
	}
	r.ring[readSlot].valid = false

	minDepth, maxDepth, err := r.reduction.Resolve(readSlot)
	if err != nil {
		return r.lastRange, fmt.Errorf("reduction: resolve frame %d: %w", readFrame, err)
	}
	r.lastRange = shadow.LinearizeDepthRange(cam.ProjectionMatrix(), cam.Near(), cam.Far(), minDepth, maxDepth)
	return r.lastRange, nil
}

// ensureReduction replaces the live reduction when the depth buffer shape changes. Requests in
// flight on the old reduction are dropped.
func (r *reducerImpl) ensureReduction(key Key) error {
	if r.reduction != nil && r.reduction.Key() == key {
		return nil
	}
	if r.reduction != nil {
		common.Logger().Debug("recreating depth reduction", "from", r.reduction.Key().String(), "to", key.String())
		r.reduction.Release()
		r.reduction = nil
	}
	clear(r.ring)

	red, err := r.factory(key, len(r.ring))
	if err != nil {
		return fmt.Errorf("reduction: create %s: %w", key, err)
	}
	r.reduction = red
	return nil
}
