package stage

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUIndirectUniformsSource is the WGSL definition of the IndirectUniforms struct.
// It must be concatenated after light.GPUShadowDataSource.
//
//go:embed assets/indirect_uniforms.wgsl
var GPUIndirectUniformsSource string

// GPUIndirectUniforms is the per-frame uniform block of the indirect lighting stage.
// Size: 224 bytes.
//
// Layout:
//
//	ShadowData            shadow          (208 bytes, offset   0)
//	vec2<f32>             screen_dim      (  8 bytes, offset 208)
//	vec2<f32>             shadow_map_dim  (  8 bytes, offset 216)
type GPUIndirectUniforms struct {
	Shadow       light.GPUShadowData
	ScreenDim    [2]float32
	ShadowMapDim [2]float32
}

// Size returns the size of the GPUIndirectUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (224)
func (u *GPUIndirectUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the block for uniform upload.
//
// Returns:
//   - []byte: 224-byte buffer ready for GPU upload
func (u *GPUIndirectUniforms) Marshal() []byte {
	buf := make([]byte, 0, 224)
	buf = append(buf, u.Shadow.Marshal()...)
	for _, v := range [4]float32{u.ScreenDim[0], u.ScreenDim[1], u.ShadowMapDim[0], u.ShadowMapDim[1]} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// marshalMat4 serializes a column-major matrix as 16 little-endian floats.
func marshalMat4(m mgl32.Mat4) []byte {
	buf := make([]byte, 0, 64)
	for _, v := range m {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// marshalVec4s serializes a list of vectors as tightly packed little-endian floats.
func marshalVec4s(vs []mgl32.Vec4) []byte {
	buf := make([]byte, 0, 16*len(vs))
	for _, v := range vs {
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}
