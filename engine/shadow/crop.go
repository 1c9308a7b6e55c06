package shadow

import (
	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// Crop rescales the shared light clip space so one cascade's corners fill X and Y in [-1, 1]
// and depth in [0, 1]. Applied after the homogeneous divide as ndc*Scale + Offset.
type Crop struct {
	Scale  mgl32.Vec4
	Offset mgl32.Vec4
}

// CascadeCrop transforms the cascade corners into light clip space and derives the crop that
// maps their bounds onto the full clip volume. Each axis extent is floored to
// light.MinCropExtent.
//
// Parameters:
//   - shadowMat: the light view-projection shared by all cascades
//   - corners: world-space corners of the cascade
//
// Returns:
//   - Crop: scale and offset with w fixed to (1, 0)
func CascadeCrop(shadowMat mgl32.Mat4, corners [8]mgl32.Vec3) Crop {
	lo, hi := common.ProjectPoint(shadowMat, corners[0]), common.ProjectPoint(shadowMat, corners[0])
	for _, c := range corners[1:] {
		p := common.ProjectPoint(shadowMat, c)
		for axis := range 3 {
			lo[axis] = min(lo[axis], p[axis])
			hi[axis] = max(hi[axis], p[axis])
		}
	}

	var delta mgl32.Vec3
	for axis := range 3 {
		delta[axis] = max(hi[axis]-lo[axis], light.MinCropExtent)
	}

	scale := mgl32.Vec4{2 / delta[0], 2 / delta[1], 1 / delta[2], 1}
	offset := mgl32.Vec4{
		-0.5 * (hi[0] + lo[0]) * scale[0],
		-0.5 * (hi[1] + lo[1]) * scale[1],
		-lo[2] * scale[2],
		0,
	}
	return Crop{Scale: scale, Offset: offset}
}

// Apply maps a point in the shared light clip space (after the homogeneous divide) into the
// cascade's cropped clip space.
func (c Crop) Apply(ndc mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		ndc[0]*c.Scale[0] + c.Offset[0],
		ndc[1]*c.Scale[1] + c.Offset[1],
		ndc[2]*c.Scale[2] + c.Offset[2],
	}
}

// Matrix returns the crop as a clip-space transform, so Matrix().Mul4(globalMat) is the
// cascade's full view-projection.
func (c Crop) Matrix() mgl32.Mat4 {
	m := mgl32.Ident4()
	m[0], m[5], m[10] = c.Scale[0], c.Scale[1], c.Scale[2]
	m[12], m[13], m[14] = c.Offset[0], c.Offset[1], c.Offset[2]
	return m
}
