package stage

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-csm/engine/shader"
)

// ArgIndirectUniforms identifies the IndirectUniforms struct in shader annotations.
const ArgIndirectUniforms shader.AnnotationArg = "indirect_uniforms"

var (
	//go:embed assets/shadow_depth_bindings.wgsl
	shadowDepthBindings string

	//go:embed assets/reflective_shadow_bindings.wgsl
	reflectiveShadowBindings string

	//go:embed assets/indirect_bindings.wgsl
	indirectBindings string
)

var stageBindings = map[string]string{
	ShadowDepthStageName:      shadowDepthBindings,
	ReflectiveShadowStageName: reflectiveShadowBindings,
	IndirectStageName:         indirectBindings,
}

// ShaderHeader composes the WGSL struct definitions and bind group declarations a stage's shaders
// start with. The declared bindings match the UniformWrite bindings the stage emits.
//
// Parameters:
//   - stageName: the name of a built-in stage
//
// Returns:
//   - string: the processed WGSL header
//   - []shader.Annotation: the group declarations in binding order
//   - error: an error if the stage is unknown or the header fails to process
func ShaderHeader(stageName string) (string, []shader.Annotation, error) {
	src, ok := stageBindings[stageName]
	if !ok {
		return "", nil, fmt.Errorf("no shader header for stage %q", stageName)
	}
	pp := shader.NewPreProcessor(shader.WithStruct(ArgIndirectUniforms, GPUIndirectUniformsSource, "IndirectUniforms"))
	out, err := pp.Process(src)
	if err != nil {
		return "", nil, fmt.Errorf("stage %q shader header: %w", stageName, err)
	}
	return out, pp.Declarations(), nil
}
