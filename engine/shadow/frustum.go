// Package shadow fits cascaded shadow projections to the visible part of a camera frustum.
package shadow

import (
	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/go-gl/mathgl/mgl32"
)

// ndcCorners lists the canonical clip-space cube corners, near plane first. Depth follows the
// [0, 1] clip range.
var ndcCorners = [8]mgl32.Vec3{
	{-1, 1, 0}, {1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{-1, 1, 1}, {1, 1, 1}, {1, -1, 1}, {-1, -1, 1},
}

// Frustum holds the world-space corners of a camera frustum and its bounding sphere.
// Corners 0-3 lie on the near plane and corners 4-7 on the far plane, with corner i+4
// directly behind corner i.
type Frustum struct {
	Corners [8]mgl32.Vec3
	Center  mgl32.Vec3
	Radius  float32
}

// ReconstructFrustum unprojects the canonical clip-space cube through the inverse
// view-projection matrix.
//
// Parameters:
//   - invViewProj: inverse of the camera's projection * view matrix
//
// Returns:
//   - Frustum: world-space corners with their mean as center and the largest corner distance
//     as radius
func ReconstructFrustum(invViewProj mgl32.Mat4) Frustum {
	var f Frustum
	for i, c := range ndcCorners {
		f.Corners[i] = common.ProjectPoint(invViewProj, c)
	}
	f.Center, f.Radius = BoundingSphere(f.Corners)
	return f
}

// SubFrustum returns the corners of the slice of full between the fractional depths start and
// end, interpolating along each near-to-far corner edge.
//
// Parameters:
//   - full: the reconstructed camera frustum
//   - start: fraction of the near-to-far edge where the slice begins
//   - end: fraction of the near-to-far edge where the slice ends
//
// Returns:
//   - [8]mgl32.Vec3: slice corners in the same order as Frustum.Corners
func SubFrustum(full Frustum, start, end float32) [8]mgl32.Vec3 {
	var corners [8]mgl32.Vec3
	for i := range 4 {
		near, far := full.Corners[i], full.Corners[i+4]
		corners[i] = common.LerpVec3(near, far, start)
		corners[i+4] = common.LerpVec3(near, far, end)
	}
	return corners
}

// BoundingSphere returns the mean of the corners and the largest distance from it to any corner.
func BoundingSphere(corners [8]mgl32.Vec3) (mgl32.Vec3, float32) {
	var center mgl32.Vec3
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.Mul(1.0 / float32(len(corners)))

	var radius float32
	for _, c := range corners {
		radius = max(radius, c.Sub(center).Len())
	}
	return center, radius
}
