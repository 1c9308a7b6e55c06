package shadow

import (
	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DistanceRange is the visible part of the camera depth range, normalized so 0 is the near
// plane and 1 the far plane.
type DistanceRange struct {
	Start float32
	End   float32
}

// FullRange covers the whole camera depth range.
var FullRange = DistanceRange{Start: 0, End: 1}

// NewDistanceRange clamps both ends to [0, 1] and swaps them if they are reversed.
func NewDistanceRange(start, end float32) DistanceRange {
	start, end = clamp01(start), clamp01(end)
	if end < start {
		start, end = end, start
	}
	return DistanceRange{Start: start, End: end}
}

// Span returns End - Start.
func (r DistanceRange) Span() float32 {
	return r.End - r.Start
}

// LinearizeDepth converts a clip-space depth value into a normalized view distance using the
// projection matrix: linear = P[2][3] / (P[2][2] - depth*P[3][2]), then
// (linear - near) / (far - near) clamped to [0, 1].
//
// Parameters:
//   - proj: the camera projection matrix
//   - near: camera near plane
//   - far: camera far plane
//   - depth: clip-space depth in [0, 1]
//
// Returns:
//   - float32: the normalized distance
func LinearizeDepth(proj mgl32.Mat4, near, far, depth float32) float32 {
	linear := proj.At(2, 3) / (proj.At(2, 2) - depth*proj.At(3, 2))
	return clamp01((linear - near) / (far - near))
}

// LinearizeDepthRange linearizes the smallest and largest clip-space depths of a frame.
//
// Parameters:
//   - proj: the camera projection matrix
//   - near: camera near plane
//   - far: camera far plane
//   - minDepth: smallest clip-space depth observed
//   - maxDepth: largest clip-space depth observed
//
// Returns:
//   - DistanceRange: the normalized visible range
func LinearizeDepthRange(proj mgl32.Mat4, near, far, minDepth, maxDepth float32) DistanceRange {
	return NewDistanceRange(
		LinearizeDepth(proj, near, far, minDepth),
		LinearizeDepth(proj, near, far, maxDepth),
	)
}

func clamp01(v float32) float32 {
	if v != v {
		return 0
	}
	return common.Clamp(v, 0, 1)
}
