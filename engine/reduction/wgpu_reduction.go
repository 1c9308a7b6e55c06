package reduction

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// minMaxDepthSource reduces a single-sampled depth texture.
//
//go:embed assets/minmax_depth.wgsl
var minMaxDepthSource string

// minMaxDepthMSSource reduces every sample of a multisampled depth texture.
//
//go:embed assets/minmax_depth_ms.wgsl
var minMaxDepthMSSource string

const (
	workgroupSize = 16
	resultSize    = 8 // two u32 depth bit patterns: min, max
	emptyMinBits  = 0x7f800000
	maxMapPolls   = 64
)

// WGPUDepthSource is a depth buffer living in a GPU texture.
type WGPUDepthSource interface {
	DepthSource
	TextureView() *wgpu.TextureView
}

// DepthTexture is a Depth32Float texture usable as a render attachment and as a reduction input.
type DepthTexture struct {
	texture     *wgpu.Texture
	view        *wgpu.TextureView
	width       uint32
	height      uint32
	sampleCount uint32
}

var _ WGPUDepthSource = &DepthTexture{}

// NewDepthTexture creates a depth texture on device.
//
// Parameters:
//   - device: the GPU device
//   - width, height: texture size in texels
//   - sampleCount: samples per texel, 1 for a single-sampled texture
//
// Returns:
//   - *DepthTexture: the texture and its default view
//   - error: if either creation fails
func NewDepthTexture(device *wgpu.Device, width, height, sampleCount uint32) (*DepthTexture, error) {
	sampleCount = max(sampleCount, 1)
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Reduction Source",
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create depth texture: %w", err)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create depth texture view: %w", err)
	}

	return &DepthTexture{texture: tex, view: view, width: width, height: height, sampleCount: sampleCount}, nil
}

func (d *DepthTexture) Width() uint32                  { return d.width }
func (d *DepthTexture) Height() uint32                 { return d.height }
func (d *DepthTexture) SampleCount() uint32            { return d.sampleCount }
func (d *DepthTexture) TextureView() *wgpu.TextureView { return d.view }
func (d *DepthTexture) Texture() *wgpu.Texture         { return d.texture }

// Release frees the view and the texture.
func (d *DepthTexture) Release() {
	if d.view != nil {
		d.view.Release()
		d.view = nil
	}
	if d.texture != nil {
		d.texture.Release()
		d.texture = nil
	}
}

// wgpuSlot holds the GPU resources of one ring slot.
type wgpuSlot struct {
	result    *wgpu.Buffer
	staging   *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	view      *wgpu.TextureView
	pending   bool
}

// reductionQueue is the part of *wgpu.Queue a reduction submits work through.
type reductionQueue interface {
	WriteBuffer(buffer *wgpu.Buffer, bufferOffset uint64, data []byte) error
	Submit(commands ...*wgpu.CommandBuffer) wgpu.SubmissionIndex
}

// wgpuReductionImpl reduces depth textures with a compute shader and reads the extrema back
// through mappable staging buffers.
type wgpuReductionImpl struct {
	key    Key
	device *wgpu.Device
	queue  reductionQueue

	module          *wgpu.ShaderModule
	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	pipeline        *wgpu.ComputePipeline

	slots []*wgpuSlot
}

var _ MinMaxReduction = &wgpuReductionImpl{}

// NewWGPUReductionFactory returns a Factory whose reductions run on device.
//
// Parameters:
//   - device: the GPU device that owns the depth textures
//
// Returns:
//   - Factory: a factory creating GPU reductions
func NewWGPUReductionFactory(device *wgpu.Device) Factory {
	if device == nil {
		panic("reduction: NewWGPUReductionFactory requires a non-nil Device")
	}
	return func(key Key, slots int) (MinMaxReduction, error) {
		return newWGPUReduction(device, key, slots)
	}
}

func newWGPUReduction(device *wgpu.Device, key Key, slots int) (*wgpuReductionImpl, error) {
	r := &wgpuReductionImpl{
		key:    key,
		device: device,
		queue:  device.GetQueue(),
		slots:  make([]*wgpuSlot, slots),
	}
	if err := r.createPipeline(); err != nil {
		r.Release()
		return nil, err
	}
	for i := range r.slots {
		s, err := r.createSlot(i)
		if err != nil {
			r.Release()
			return nil, err
		}
		r.slots[i] = s
	}
	return r, nil
}

func (r *wgpuReductionImpl) createPipeline() error {
	module, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Depth MinMax " + r.key.String(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: shaderSourceFor(r.key.SampleCount),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create depth reduction shader: %w", err)
	}
	r.module = module

	entries := layoutEntries(r.key)
	r.bindGroupLayout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Depth MinMax Bind Group Layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth reduction bind group layout: %w", err)
	}

	r.pipelineLayout, err = r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Depth MinMax Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("failed to create depth reduction pipeline layout: %w", err)
	}

	r.pipeline, err = r.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "Depth MinMax Compute Pipeline",
		Layout: r.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     r.module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create depth reduction pipeline: %w", err)
	}
	return nil
}

func (r *wgpuReductionImpl) createSlot(i int) (*wgpuSlot, error) {
	result, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("Depth MinMax Result %d", i),
		Size:  resultSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create depth reduction result buffer: %w", err)
	}
	staging, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("Depth MinMax Staging %d", i),
		Size:  resultSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		result.Release()
		return nil, fmt.Errorf("failed to create depth reduction staging buffer: %w", err)
	}
	return &wgpuSlot{result: result, staging: staging}, nil
}

func (r *wgpuReductionImpl) Key() Key {
	return r.key
}

func (r *wgpuReductionImpl) Dispatch(slot int, src DepthSource) error {
	if src == nil {
		return ErrNilDepthSource
	}
	ws, ok := src.(WGPUDepthSource)
	if !ok || ws.TextureView() == nil {
		return fmt.Errorf("%w: %T has no texture view", ErrUnsupportedSource, src)
	}
	s := r.slots[slot]
	s.pending = false

	if err := r.queue.WriteBuffer(s.result, 0, encodeExtremaInit()); err != nil {
		return fmt.Errorf("failed to reset depth reduction result: %w", err)
	}

	if s.bindGroup == nil || s.view != ws.TextureView() {
		if err := r.bindSource(s, ws.TextureView()); err != nil {
			return err
		}
	}

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create depth reduction encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, s.bindGroup, nil)
	x, y := workgroupCounts(r.key)
	pass.DispatchWorkgroups(x, y, 1)
	err = pass.End()
	pass.Release()
	if err != nil {
		return fmt.Errorf("failed to end depth reduction pass: %w", err)
	}
	if err := encoder.CopyBufferToBuffer(s.result, 0, s.staging, 0, resultSize); err != nil {
		return fmt.Errorf("failed to copy depth reduction result: %w", err)
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish depth reduction encoder: %w", err)
	}
	r.queue.Submit(commandBuffer)
	commandBuffer.Release()

	s.pending = true
	return nil
}

// bindSource rebuilds the slot's bind group around a new depth texture view.
func (r *wgpuReductionImpl) bindSource(s *wgpuSlot, view *wgpu.TextureView) error {
	if s.bindGroup != nil {
		s.bindGroup.Release()
		s.bindGroup = nil
	}
	bindGroup, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Depth MinMax Bind Group",
		Layout: r.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Buffer: s.result, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create depth reduction bind group: %w", err)
	}
	s.bindGroup = bindGroup
	s.view = view
	return nil
}

func (r *wgpuReductionImpl) Resolve(slot int) (float32, float32, error) {
	s := r.slots[slot]
	if !s.pending {
		return 0, 0, ErrEmptyReduction
	}
	s.pending = false

	var status wgpu.BufferMapAsyncStatus
	mapped := false
	err := s.staging.MapAsync(wgpu.MapModeRead, 0, resultSize, func(st wgpu.BufferMapAsyncStatus) {
		status = st
		mapped = true
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to map depth readback: %w", err)
	}
	for i := 0; !mapped && i < maxMapPolls; i++ {
		r.device.Poll(true, nil)
	}
	if !mapped {
		return 0, 0, errors.New("reduction: depth readback never mapped")
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return 0, 0, fmt.Errorf("reduction: depth readback map failed with status %v", status)
	}

	lo, hi, err := decodeExtrema(s.staging.GetMappedRange(0, resultSize))
	if uerr := s.staging.Unmap(); uerr != nil {
		return 0, 0, fmt.Errorf("failed to unmap depth readback: %w", uerr)
	}
	return lo, hi, err
}

func (r *wgpuReductionImpl) Release() {
	for _, s := range r.slots {
		if s == nil {
			continue
		}
		if s.bindGroup != nil {
			s.bindGroup.Release()
		}
		if s.staging != nil {
			s.staging.Release()
		}
		if s.result != nil {
			s.result.Release()
		}
	}
	r.slots = nil
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	if r.pipelineLayout != nil {
		r.pipelineLayout.Release()
		r.pipelineLayout = nil
	}
	if r.bindGroupLayout != nil {
		r.bindGroupLayout.Release()
		r.bindGroupLayout = nil
	}
	if r.module != nil {
		r.module.Release()
		r.module = nil
	}
}

// shaderSourceFor picks the reduction shader matching the sample count.
func shaderSourceFor(sampleCount uint32) string {
	if sampleCount > 1 {
		return minMaxDepthMSSource
	}
	return minMaxDepthSource
}

// layoutEntries describes the depth texture and result buffer bindings for key.
func layoutEntries(key Key) []wgpu.BindGroupLayoutEntry {
	tex := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageCompute,
	}
	tex.Texture.SampleType = wgpu.TextureSampleTypeDepth
	tex.Texture.ViewDimension = wgpu.TextureViewDimension2D
	tex.Texture.Multisampled = key.SampleCount > 1

	buf := wgpu.BindGroupLayoutEntry{
		Binding:    1,
		Visibility: wgpu.ShaderStageCompute,
	}
	buf.Buffer.Type = wgpu.BufferBindingTypeStorage
	buf.Buffer.MinBindingSize = resultSize

	return []wgpu.BindGroupLayoutEntry{tex, buf}
}

// workgroupCounts returns how many workgroups cover the texture in X and Y.
func workgroupCounts(key Key) (uint32, uint32) {
	return (key.Width + workgroupSize - 1) / workgroupSize, (key.Height + workgroupSize - 1) / workgroupSize
}

// encodeExtremaInit returns the result buffer contents before a dispatch: min at +Inf, max at 0.
func encodeExtremaInit() []byte {
	buf := make([]byte, resultSize)
	binary.LittleEndian.PutUint32(buf[0:4], emptyMinBits)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	return buf
}

// decodeExtrema reads the min and max depth written by the shader.
func decodeExtrema(data []byte) (float32, float32, error) {
	if len(data) < resultSize {
		return 0, 0, fmt.Errorf("reduction: readback of %d bytes, want %d", len(data), resultSize)
	}
	loBits := binary.LittleEndian.Uint32(data[0:4])
	if loBits == emptyMinBits {
		return 0, 0, ErrEmptyReduction
	}
	return math.Float32frombits(loBits), math.Float32frombits(binary.LittleEndian.Uint32(data[4:8])), nil
}
