package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// WorldUp is the default up axis used when orienting cameras and lights.
var WorldUp = mgl32.Vec3{0, 1, 0}

// Perspective creates a right-handed perspective projection matrix mapping view depth onto the
// WebGPU clip depth range [0, 1]. The matrix is stored in column-major order.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))

	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Ortho creates a right-handed orthographic projection matrix mapping [near, far] onto the
// WebGPU clip depth range [0, 1].
//
// Parameters:
//   - left, right: horizontal extents of the view volume
//   - bottom, top: vertical extents of the view volume
//   - near, far: signed distances of the depth planes along the view direction
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	out := mgl32.Ident4()
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = -1 / (far - near)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = -near / (far - near)
	return out
}

// LookAt creates a right-handed view matrix. A zero-length forward or side axis leaves that axis
// zeroed instead of producing NaN, so callers must pick a non-parallel up vector to get an
// invertible matrix.
//
// Parameters:
//   - eye: viewer position in world space
//   - center: target point the viewer looks at
//   - up: up vector defining the viewer's roll
//
// Returns:
//   - mgl32.Mat4: the view matrix
func LookAt(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	z := safeNormalize(eye.Sub(center))
	x := safeNormalize(up.Cross(z))
	y := z.Cross(x)

	return mgl32.Mat4{
		x[0], y[0], z[0], 0,
		x[1], y[1], z[1], 0,
		x[2], y[2], z[2], 0,
		-x.Dot(eye), -y.Dot(eye), -z.Dot(eye), 1,
	}
}

// ProjectPoint transforms a point by m and performs the homogeneous divide.
//
// Parameters:
//   - m: the transform to apply
//   - p: the point in the source space
//
// Returns:
//   - mgl32.Vec3: the transformed point after dividing by w
func ProjectPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	return v.Vec3().Mul(1 / v.W())
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// LerpVec3 linearly interpolates between two points.
func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// OrthonormalUp returns up unless it is nearly parallel to dir, in which case the X axis is used.
//
// Parameters:
//   - up: the preferred up vector
//   - dir: the normalized viewing direction
//   - threshold: absolute cosine at or above which up counts as degenerate
//
// Returns:
//   - mgl32.Vec3: an up vector safe to pass to LookAt
func OrthonormalUp(up, dir mgl32.Vec3, threshold float32) mgl32.Vec3 {
	if mgl32.Abs(up.Dot(dir)) >= threshold {
		return mgl32.Vec3{1, 0, 0}
	}
	return up
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}
