package light

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon. Shadows are fitted with an
	// orthographic projection around the camera frustum.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light emitting from a position along a direction, limited
	// to a cone of the given opening angle. Shadows are fitted with a perspective projection.
	LightTypePoint
)

// String returns a readable name for the light type.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	default:
		return fmt.Sprintf("LightType(%d)", int(t))
	}
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType    LightType
	position     mgl32.Vec3
	direction    mgl32.Vec3
	openingAngle float32 // half-angle in radians
	color        mgl32.Vec3
	intensity    float32
	enabled      bool
	castsShadows bool
}

// Light defines the interface for a shadow-casting light source.
//
// A light is a tagged variant: the Type decides which of the remaining properties carry meaning.
// Directional lights use Direction only. Point lights use Position, Direction and OpeningAngle.
// Construct lights with NewDirectionalLight or NewPointLight so every variant starts with the
// fields it needs.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light's type
	Type() LightType

	// Position returns the world-space position of the light.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - mgl32.Vec3: the light position
	Position() mgl32.Vec3

	// Direction returns the normalized direction the light points toward.
	//
	// Returns:
	//   - mgl32.Vec3: the light direction
	Direction() mgl32.Vec3

	// OpeningAngle returns the half-angle of a point light's emission cone in radians.
	// The shadow projection uses twice this value as its vertical field of view.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - float32: the opening half-angle in radians
	OpeningAngle() float32

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: the light color
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity
	Intensity() float32

	// Enabled returns whether this light is active. Disabled lights produce no shadow data.
	//
	// Returns:
	//   - bool: true if the light is active
	Enabled() bool

	// CastsShadows returns whether this light is eligible for shadow fitting.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - x, y, z: the new position
	SetPosition(x, y, z float32)

	// SetDirection sets the direction of the light and normalizes it.
	//
	// Parameters:
	//   - x, y, z: the new direction, any non-zero length
	SetDirection(x, y, z float32)

	// SetOpeningAngle sets the emission half-angle of a point light.
	//
	// Parameters:
	//   - radians: the half-angle in radians
	SetOpeningAngle(radians float32)

	// SetEnabled enables or disables the light.
	//
	// Parameters:
	//   - enabled: the new state
	SetEnabled(enabled bool)

	// SetCastsShadows sets whether the light is eligible for shadow fitting.
	//
	// Parameters:
	//   - castsShadows: the new state
	SetCastsShadows(castsShadows bool)
}

var _ Light = &lightImpl{}

// NewDirectionalLight creates a shadow-casting directional light pointing along direction.
//
// Parameters:
//   - direction: the direction the light travels, normalized on storage
//   - opts: optional configuration
//
// Returns:
//   - Light: the new light
func NewDirectionalLight(direction mgl32.Vec3, opts ...LightBuilderOption) Light {
	l := newLight(LightTypeDirectional)
	l.direction = normalize3(direction)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewPointLight creates a shadow-casting point light at position pointing along direction with
// the given emission half-angle.
//
// Parameters:
//   - position: world-space position of the light
//   - direction: the direction the cone points toward, normalized on storage
//   - openingAngle: the cone half-angle in radians, must be in (0, pi/2)
//   - opts: optional configuration
//
// Returns:
//   - Light: the new light
func NewPointLight(position, direction mgl32.Vec3, openingAngle float32, opts ...LightBuilderOption) Light {
	if openingAngle <= 0 {
		panic("light: NewPointLight requires a positive opening angle")
	}
	l := newLight(LightTypePoint)
	l.position = position
	l.direction = normalize3(direction)
	l.openingAngle = openingAngle
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newLight(lightType LightType) *lightImpl {
	return &lightImpl{
		lightType:    lightType,
		direction:    mgl32.Vec3{0, -1, 0},
		color:        mgl32.Vec3{1, 1, 1},
		intensity:    1.0,
		enabled:      true,
		castsShadows: true,
	}
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) OpeningAngle() float32 {
	return l.openingAngle
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) SetPosition(x, y, z float32) {
	l.position = mgl32.Vec3{x, y, z}
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.direction = normalize3(mgl32.Vec3{x, y, z})
}

func (l *lightImpl) SetOpeningAngle(radians float32) {
	l.openingAngle = radians
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.castsShadows = castsShadows
}
