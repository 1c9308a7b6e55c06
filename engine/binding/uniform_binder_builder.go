package binding

import "github.com/cogentcore/webgpu/wgpu"

// UniformBinderOption is a functional option for configuring a UniformBinder.
type UniformBinderOption func(*uniformBinderImpl)

// WithDevice sets the device buffers are created on. Without one the binder only stages data.
//
// Parameters:
//   - device: the GPU device
//
// Returns:
//   - UniformBinderOption: option function to apply
func WithDevice(device *wgpu.Device) UniformBinderOption {
	return func(b *uniformBinderImpl) {
		b.device = device
	}
}

// WithBufferUsage overrides the usage flags of created buffers. CopyDst is always added.
//
// Parameters:
//   - usage: the buffer usage flags
//
// Returns:
//   - UniformBinderOption: option function to apply
func WithBufferUsage(usage wgpu.BufferUsage) UniformBinderOption {
	return func(b *uniformBinderImpl) {
		b.usage = usage | wgpu.BufferUsageCopyDst
	}
}
