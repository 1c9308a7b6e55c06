package light

// ShadowMapResolution is the default width and height in texels of the shadow
// depth texture. Stages use this as their initial value but can override it
// via the WithShadowMapSize builder option.
const ShadowMapResolution = 2048

// MaxCascades is the largest cascade count the shadow uniform block can carry.
const MaxCascades = 4

// DefaultCascadeCount is the number of cascades used when none is configured.
const DefaultCascadeCount = 1

// DefaultBlendMargin is the fraction of the distance range by which neighbouring
// cascades overlap. Zero disables blending.
const DefaultBlendMargin float32 = 0

// DefaultReadbackLatency is the number of frames between dispatching a depth
// reduction and consuming its result.
const DefaultReadbackLatency = 1

// MinShadowRadius floors the bounding radius of a frustum before it sizes a
// shadow projection, so a collapsed camera frustum still yields an invertible matrix.
const MinShadowRadius float32 = 1e-4

// MinCropExtent floors each axis of a cascade's light clip-space extent before
// the crop scale divides by it.
const MinCropExtent float32 = 1e-6

// PointLightMinNear is the smallest near plane a point light shadow projection uses.
const PointLightMinNear float32 = 0.1

// DegenerateUpThreshold is the absolute cosine between the world up axis and a
// light direction at or above which the X axis is used as up instead.
const DegenerateUpThreshold float32 = 0.95
