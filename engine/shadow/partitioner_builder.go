package shadow

import (
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
)

// PartitionerBuilderOption is a function that configures a Partitioner during construction.
type PartitionerBuilderOption func(*partitionerImpl)

// WithCascadeCount sets how many cascades the distance range is split into.
// Panics unless 1 <= count <= light.MaxCascades.
//
// Parameters:
//   - count: the cascade count
//
// Returns:
//   - PartitionerBuilderOption: a function that applies the cascade count to a partitionerImpl
func WithCascadeCount(count int) PartitionerBuilderOption {
	if count < 1 || count > light.MaxCascades {
		panic("shadow: WithCascadeCount requires 1 <= count <= MaxCascades")
	}
	return func(p *partitionerImpl) {
		p.cascadeCount = count
	}
}

// WithBlendMargin sets the normalized distance by which neighbouring cascades overlap.
// Panics on negative margins.
//
// Parameters:
//   - margin: the overlap on each interior cascade edge
//
// Returns:
//   - PartitionerBuilderOption: a function that applies the blend margin to a partitionerImpl
func WithBlendMargin(margin float32) PartitionerBuilderOption {
	if margin < 0 {
		panic("shadow: WithBlendMargin requires a non-negative margin")
	}
	return func(p *partitionerImpl) {
		p.blendMargin = margin
	}
}

// WithShadowMapSize sets the shadow map dimensions the perspective light projection's aspect
// ratio is derived from.
//
// Parameters:
//   - width: shadow map width in texels
//   - height: shadow map height in texels
//
// Returns:
//   - PartitionerBuilderOption: a function that applies the aspect ratio to a partitionerImpl
func WithShadowMapSize(width, height uint32) PartitionerBuilderOption {
	if width == 0 || height == 0 {
		panic("shadow: WithShadowMapSize requires non-zero dimensions")
	}
	return func(p *partitionerImpl) {
		p.aspect = float32(width) / float32(height)
	}
}
