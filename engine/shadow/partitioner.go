package shadow

import (
	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraView is the part of a camera the partitioner reads.
type CameraView interface {
	Near() float32
	Far() float32
	InverseViewProjectionMatrix() mgl32.Mat4
}

// CascadeDescriptor describes one cascade of a partitioned distance range.
type CascadeDescriptor struct {
	// Index is the cascade's position, nearest first.
	Index int
	// Start and End are the normalized camera distances the cascade covers, blend margin included.
	Start, End float32
	// NearDistance and FarDistance are Start and End expressed as view-space distances.
	NearDistance, FarDistance float32
	// Corners are the world-space corners of the cascade's slice of the camera frustum.
	Corners [8]mgl32.Vec3
	// Crop maps the shared light clip space onto this cascade.
	Crop Crop
}

// Result is the output of one partitioning pass.
type Result struct {
	// GlobalMat is the light view-projection shared by every cascade.
	GlobalMat mgl32.Mat4
	// Range is the distance range that was partitioned.
	Range DistanceRange
	// Frustum is the full camera frustum GlobalMat was fitted to.
	Frustum Frustum
	// Cascades holds one descriptor per cascade, nearest first.
	Cascades []CascadeDescriptor
}

// Scales returns the crop scale of every cascade in order.
func (r Result) Scales() []mgl32.Vec4 {
	out := make([]mgl32.Vec4, len(r.Cascades))
	for i, c := range r.Cascades {
		out[i] = c.Crop.Scale
	}
	return out
}

// Offsets returns the crop offset of every cascade in order.
func (r Result) Offsets() []mgl32.Vec4 {
	out := make([]mgl32.Vec4, len(r.Cascades))
	for i, c := range r.Cascades {
		out[i] = c.Crop.Offset
	}
	return out
}

// partitionerImpl is the implementation of the Partitioner interface.
type partitionerImpl struct {
	cascadeCount int
	blendMargin  float32
	aspect       float32
}

// Partitioner splits the visible distance range into cascades and fits a crop to each.
//
// A single light view-projection is built per frame from the bounding sphere of the full camera
// frustum. Each cascade then receives a scale and offset that stretch its slice of the frustum
// over the whole shadow map, so the shared matrix stays stable while the cascades tighten.
type Partitioner interface {
	// CascadeCount returns the number of cascades produced per frame.
	//
	// Returns:
	//   - int: the cascade count, at least 1
	CascadeCount() int

	// BlendMargin returns the normalized distance by which neighbouring cascades overlap.
	//
	// Returns:
	//   - float32: the blend margin
	BlendMargin() float32

	// Aspect returns the shadow map aspect ratio used for perspective light projections.
	//
	// Returns:
	//   - float32: width / height
	Aspect() float32

	// Partition fits the cascades for one frame.
	//
	// Parameters:
	//   - cam: the camera whose frustum is partitioned
	//   - rng: the normalized visible distance range
	//   - l: the shadow-casting light
	//
	// Returns:
	//   - Result: the shared light matrix and per-cascade crops
	Partition(cam CameraView, rng DistanceRange, l light.Light) Result
}

var _ Partitioner = &partitionerImpl{}

// NewPartitioner creates a Partitioner with a single cascade, no blending and a square shadow
// map unless overridden by options.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - Partitioner: the configured partitioner
func NewPartitioner(opts ...PartitionerBuilderOption) Partitioner {
	p := &partitionerImpl{
		cascadeCount: light.DefaultCascadeCount,
		blendMargin:  light.DefaultBlendMargin,
		aspect:       1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *partitionerImpl) CascadeCount() int {
	return p.cascadeCount
}

func (p *partitionerImpl) BlendMargin() float32 {
	return p.blendMargin
}

func (p *partitionerImpl) Aspect() float32 {
	return p.aspect
}

func (p *partitionerImpl) Partition(cam CameraView, rng DistanceRange, l light.Light) Result {
	rng = NewDistanceRange(rng.Start, rng.End)
	full := ReconstructFrustum(cam.InverseViewProjectionMatrix())
	globalMat := BuildShadowMatrix(l, full.Center, full.Radius, p.aspect)

	near, far := cam.Near(), cam.Far()
	step := rng.Span() / float32(p.cascadeCount)

	res := Result{
		GlobalMat: globalMat,
		Range:     rng,
		Frustum:   full,
		Cascades:  make([]CascadeDescriptor, p.cascadeCount),
	}
	for i := range p.cascadeCount {
		start, end := p.cascadeBounds(rng, step, i)
		corners := SubFrustum(full, start, end)
		res.Cascades[i] = CascadeDescriptor{
			Index:        i,
			Start:        start,
			End:          end,
			NearDistance: common.Lerp(near, far, start),
			FarDistance:  common.Lerp(near, far, end),
			Corners:      corners,
			Crop:         CascadeCrop(globalMat, corners),
		}
	}
	return res
}

// cascadeBounds returns cascade i's slice of rng widened by the blend margin on each interior
// edge and clamped to [0, 1].
func (p *partitionerImpl) cascadeBounds(rng DistanceRange, step float32, i int) (float32, float32) {
	start := rng.Start + step*float32(i)
	end := start + step
	if i == p.cascadeCount-1 {
		end = rng.End
	}
	if i > 0 {
		start -= p.blendMargin
	}
	if i < p.cascadeCount-1 {
		end += p.blendMargin
	}
	return clamp01(start), clamp01(end)
}
