// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// DepthImage is a CPU-side depth buffer. Samples are stored row-major with the samples of one
// texel adjacent, so texel (x, y) sample s lives at ((y*Width)+x)*Samples + s.
type DepthImage struct {
	// W and H are the buffer size in texels.
	W, H uint32
	// Samples is the number of samples per texel, at least 1.
	Samples uint32
	// Data holds W*H*Samples clip-space depth values in [0, 1].
	Data []float32
}

// NewDepthImage allocates a depth image cleared to the far plane.
//
// Parameters:
//   - width, height: size in texels
//   - samples: samples per texel, clamped to at least 1
//
// Returns:
//   - *DepthImage: the cleared image
func NewDepthImage(width, height, samples uint32) *DepthImage {
	samples = max(samples, 1)
	img := &DepthImage{W: width, H: height, Samples: samples, Data: make([]float32, int(width)*int(height)*int(samples))}
	img.Fill(1)
	return img
}

func (d *DepthImage) Width() uint32       { return d.W }
func (d *DepthImage) Height() uint32      { return d.H }
func (d *DepthImage) SampleCount() uint32 { return d.Samples }
func (d *DepthImage) Depths() []float32   { return d.Data }

// Fill sets every sample to depth.
func (d *DepthImage) Fill(depth float32) {
	for i := range d.Data {
		d.Data[i] = depth
	}
}

// Set writes depth to every sample of texel (x, y).
func (d *DepthImage) Set(x, y uint32, depth float32) {
	base := (int(y)*int(d.W) + int(x)) * int(d.Samples)
	for s := range int(d.Samples) {
		d.Data[base+s] = depth
	}
}
