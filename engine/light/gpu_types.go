package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUShadowDataSource is the canonical WGSL definition of the ShadowData struct.
// Matches GPUShadowData layout exactly (208 bytes, uniform aligned).
//
//go:embed assets/shadow_data.wgsl
var GPUShadowDataSource string

// GPUShadowData is the GPU-aligned representation of the fitted cascaded shadow data.
// Matches the WGSL ShadowData struct layout exactly (see GPUShadowDataSource).
// Size: 208 bytes.
//
// Layout:
//
//	mat4x4<f32>           global_mat      (64 bytes, offset   0)
//	array<vec4<f32>, 4>   cascade_scale   (64 bytes, offset  64)
//	array<vec4<f32>, 4>   cascade_offset  (64 bytes, offset 128)
//	vec2<f32>             distance_range  ( 8 bytes, offset 192)
//	u32                   cascade_count   ( 4 bytes, offset 200)
//	u32                   _pad            ( 4 bytes, offset 204)
type GPUShadowData struct {
	GlobalMat     mgl32.Mat4              // light view-projection shared by every cascade
	CascadeScale  [MaxCascades]mgl32.Vec4 // per-cascade crop scale, w fixed to 1
	CascadeOffset [MaxCascades]mgl32.Vec4 // per-cascade crop offset, w fixed to 0
	DistanceRange [2]float32              // normalized visible depth range the cascades cover
	CascadeCount  uint32
	_pad          uint32
}

// Size returns the size of the GPUShadowData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (208)
func (s *GPUShadowData) Size() int {
	return int(unsafe.Sizeof(*s))
}

// SetCascades copies the per-cascade crop parameters into the fixed-size arrays. Cascades beyond
// MaxCascades are dropped; the count is clamped accordingly.
//
// Parameters:
//   - scales: crop scale per cascade
//   - offsets: crop offset per cascade, same length as scales
func (s *GPUShadowData) SetCascades(scales, offsets []mgl32.Vec4) {
	n := min(len(scales), len(offsets), MaxCascades)
	s.CascadeScale = [MaxCascades]mgl32.Vec4{}
	s.CascadeOffset = [MaxCascades]mgl32.Vec4{}
	copy(s.CascadeScale[:], scales[:n])
	copy(s.CascadeOffset[:], offsets[:n])
	s.CascadeCount = uint32(n)
}

// Marshal serializes the GPUShadowData struct into a byte buffer suitable for
// GPU uniform upload.
//
// Returns:
//   - []byte: 208-byte buffer ready for GPU upload
func (s *GPUShadowData) Marshal() []byte {
	buf := make([]byte, 208)
	off := 0
	putF := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}

	for i := range 16 {
		putF(s.GlobalMat[i])
	}
	for i := range MaxCascades {
		for j := range 4 {
			putF(s.CascadeScale[i][j])
		}
	}
	for i := range MaxCascades {
		for j := range 4 {
			putF(s.CascadeOffset[i][j])
		}
	}
	putF(s.DistanceRange[0])
	putF(s.DistanceRange[1])
	binary.LittleEndian.PutUint32(buf[off:off+4], s.CascadeCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], 0) // padding

	return buf
}
