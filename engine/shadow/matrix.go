package shadow

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// BuildShadowMatrix returns the light view-projection that encloses the sphere (center, radius)
// for the given light. The radius is floored to light.MinShadowRadius.
// Panics for light types without a shadow projection.
//
// Parameters:
//   - l: the shadow-casting light
//   - center: world-space center of the region to cover
//   - radius: radius of the region to cover
//   - aspect: width / height of the shadow map, used by perspective projections
//
// Returns:
//   - mgl32.Mat4: projection * view for the light
func BuildShadowMatrix(l light.Light, center mgl32.Vec3, radius, aspect float32) mgl32.Mat4 {
	radius = max(radius, light.MinShadowRadius)
	switch l.Type() {
	case light.LightTypeDirectional:
		return DirectionalShadowMatrix(l.Direction(), center, radius)
	case light.LightTypePoint:
		return PointShadowMatrix(l.Position(), l.Direction(), l.OpeningAngle(), center, radius, aspect)
	default:
		panic(fmt.Sprintf("shadow: no shadow projection for light type %v", l.Type()))
	}
}

// DirectionalShadowMatrix looks from center along dir and wraps the sphere in a cube-shaped
// orthographic volume of half-extent radius. The center lands on the clip-space origin in X and Y.
//
// Parameters:
//   - dir: normalized light direction
//   - center: sphere center
//   - radius: sphere radius
//
// Returns:
//   - mgl32.Mat4: projection * view
func DirectionalShadowMatrix(dir, center mgl32.Vec3, radius float32) mgl32.Mat4 {
	up := common.OrthonormalUp(common.WorldUp, dir, light.DegenerateUpThreshold)
	view := common.LookAt(center, center.Add(dir), up)
	proj := common.Ortho(-radius, radius, -radius, radius, -radius, radius)
	return proj.Mul4(view)
}

// PointShadowMatrix looks from the light position along dir with a perspective projection whose
// depth planes are fitted to the sphere.
//
// Parameters:
//   - pos: light position
//   - dir: normalized light direction
//   - openingAngle: emission half-angle in radians, doubled for the field of view
//   - center: sphere center
//   - radius: sphere radius
//   - aspect: shadow map width / height
//
// Returns:
//   - mgl32.Mat4: projection * view
func PointShadowMatrix(pos, dir mgl32.Vec3, openingAngle float32, center mgl32.Vec3, radius, aspect float32) mgl32.Mat4 {
	up := common.OrthonormalUp(common.WorldUp, dir, light.DegenerateUpThreshold)
	view := common.LookAt(pos, pos.Add(dir), up)

	near, far := pointDepthPlanes(pos.Sub(center).Len(), radius)
	proj := common.Perspective(2*openingAngle, aspect, near, far)
	return proj.Mul4(view)
}

// pointDepthPlanes fits near and far to a sphere at distance dist from the light.
// Far is capped at twice the radius and never falls behind near.
func pointDepthPlanes(dist, radius float32) (float32, float32) {
	near := max(light.PointLightMinNear, dist-radius)
	far := min(radius*2, dist+radius)
	if far <= near {
		far = max(dist+radius, near+radius)
	}
	return near, far
}
