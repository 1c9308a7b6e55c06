package common

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// Planes holds the six bounding planes of a view volume.
// Planes are oriented so that positive half-space is inside the volume.
type Planes [6]Plane // Left, Right, Bottom, Top, Near, Far

// Plane indices for clarity
const (
	PlaneLeft   = 0
	PlaneRight  = 1
	PlaneBottom = 2
	PlaneTop    = 3
	PlaneNear   = 4
	PlaneFar    = 5
)

// BoundingSphere is a world-space sphere enclosing a shadow caster.
type BoundingSphere struct {
	Center mgl32.Vec3
	Radius float32
}

// ExtractFrustumPlanes extracts the six planes of a view-projection matrix using the
// Gribb/Hartmann method. The near plane follows the [0, 1] clip depth range, so it is row 2
// of the matrix on its own rather than row3 + row2.
//
// Parameters:
//   - viewProj: the combined projection * view matrix (column-major)
//
// Returns:
//   - Planes: the extracted planes with unit-length normals
func ExtractFrustumPlanes(viewProj mgl32.Mat4) Planes {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{viewProj.At(r, 0), viewProj.At(r, 1), viewProj.At(r, 2), viewProj.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var p Planes
	p[PlaneLeft] = planeFromVec4(r3.Add(r0))
	p[PlaneRight] = planeFromVec4(r3.Sub(r0))
	p[PlaneBottom] = planeFromVec4(r3.Add(r1))
	p[PlaneTop] = planeFromVec4(r3.Sub(r1))
	p[PlaneNear] = planeFromVec4(r2)
	p[PlaneFar] = planeFromVec4(r3.Sub(r2))
	return p
}

// IntersectsSphere reports whether the sphere is at least partially inside the planes.
//
// Parameters:
//   - s: the sphere to test
//   - skip: plane indices to ignore, e.g. PlaneNear when depth is clamped during rasterization
//
// Returns:
//   - bool: false only when the sphere lies entirely behind one of the tested planes
func (p *Planes) IntersectsSphere(s BoundingSphere, skip ...int) bool {
	for i := range p {
		if slices.Contains(skip, i) {
			continue
		}
		if p[i].Normal.Dot(s.Center)+p[i].Distance < -s.Radius {
			return false
		}
	}
	return true
}

// planeFromVec4 builds a plane from (a, b, c, d) and normalizes it so the normal has unit length.
func planeFromVec4(v mgl32.Vec4) Plane {
	p := Plane{Normal: v.Vec3(), Distance: v.W()}
	if length := p.Normal.Len(); length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
	return p
}
