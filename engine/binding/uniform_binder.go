// Package binding owns the GPU buffers behind the uniform blocks the shadow stages produce.
package binding

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/stage"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoDevice is returned by Flush when the binder has no device to upload to.
var ErrNoDevice = errors.New("binding: no GPU device")

// BlockKey identifies one uniform block: the producing stage and the block label.
type BlockKey struct {
	Stage string
	Label string
}

// String returns the key as stage/label.
func (k BlockKey) String() string {
	return k.Stage + "/" + k.Label
}

// block is the CPU staging copy and GPU buffer of one uniform block.
type block struct {
	binding int
	data    []byte
	dirty   bool
	buffer  *wgpu.Buffer
	size    uint64
}

// uniformBinderImpl is the unexported implementation of UniformBinder.
type uniformBinderImpl struct {
	mu     sync.Mutex
	label  string
	device *wgpu.Device
	usage  wgpu.BufferUsage
	blocks map[BlockKey]*block
}

// UniformBinder collects the uniform writes of a frame and uploads them to GPU buffers.
//
// Usage pattern:
//  1. Pass Sink() as the FrameContext sink so stages stage their blocks
//  2. Call Flush once the pipeline has run to upload every changed block
//  3. Bind Buffer(key) in the matching shader pass
type UniformBinder interface {
	// Label returns the debug label for this binder.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Sink returns a uniform sink that stages writes into this binder.
	//
	// Returns:
	//   - stage.UniformSink: the sink
	Sink() stage.UniformSink

	// Staged returns the most recent bytes written for a block.
	//
	// Parameters:
	//   - key: the block key
	//
	// Returns:
	//   - []byte: a copy of the block data
	//   - int: the binding index the block was written with
	//   - bool: false if the block was never written
	Staged(key BlockKey) ([]byte, int, bool)

	// Keys returns the keys of every block written so far, sorted by stage then label.
	//
	// Returns:
	//   - []BlockKey: the keys
	Keys() []BlockKey

	// Dirty reports how many blocks changed since the last Flush.
	//
	// Returns:
	//   - int: the number of changed blocks
	Dirty() int

	// Flush uploads every changed block, creating or resizing its buffer as needed.
	//
	// Returns:
	//   - error: ErrNoDevice without a device, or a wrapped buffer creation error
	Flush() error

	// Buffer returns the GPU buffer of a block, or nil before its first Flush.
	//
	// Parameters:
	//   - key: the block key
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(key BlockKey) *wgpu.Buffer

	// Release releases every GPU buffer. Staged data is kept and re-uploaded by the next Flush.
	Release()
}

var _ UniformBinder = &uniformBinderImpl{}

// NewUniformBinder creates a new UniformBinder with the provided options.
//
// Parameters:
//   - label: a debug label used for buffer names
//   - options: a variadic list of options to configure the binder
//
// Returns:
//   - UniformBinder: a new instance of UniformBinder configured with the provided options
func NewUniformBinder(label string, options ...UniformBinderOption) UniformBinder {
	b := &uniformBinderImpl{
		label:  label,
		usage:  wgpu.BufferUsageUniform | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		blocks: make(map[BlockKey]*block),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *uniformBinderImpl) Label() string {
	return b.label
}

func (b *uniformBinderImpl) Sink() stage.UniformSink {
	return b.put
}

// put copies w into the block it names and marks the block dirty.
func (b *uniformBinderImpl) put(w stage.UniformWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := BlockKey{Stage: w.Stage, Label: w.Label}
	blk, ok := b.blocks[key]
	if !ok {
		blk = &block{}
		b.blocks[key] = blk
	}
	blk.binding = w.Binding
	blk.data = append(blk.data[:0], w.Data...)
	blk.dirty = true
}

func (b *uniformBinderImpl) Staged(key BlockKey) ([]byte, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blk, ok := b.blocks[key]
	if !ok {
		return nil, 0, false
	}
	return slices.Clone(blk.data), blk.binding, true
}

func (b *uniformBinderImpl) Keys() []BlockKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]BlockKey, 0, len(b.blocks))
	for k := range b.blocks {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y BlockKey) int {
		return cmp.Or(cmp.Compare(x.Stage, y.Stage), cmp.Compare(x.Label, y.Label))
	})
	return keys
}

func (b *uniformBinderImpl) Dirty() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, blk := range b.blocks {
		if blk.dirty {
			n++
		}
	}
	return n
}

func (b *uniformBinderImpl) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return ErrNoDevice
	}
	queue := b.device.GetQueue()

	for key, blk := range b.blocks {
		if !blk.dirty {
			continue
		}
		size := alignedSize(len(blk.data))
		if blk.buffer != nil && blk.size != size {
			blk.buffer.Release()
			blk.buffer = nil
		}
		if blk.buffer == nil {
			buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: b.label + ":" + key.String(),
				Size:  size,
				Usage: b.usage,
			})
			if err != nil {
				return fmt.Errorf("binding: create buffer %s: %w", key, err)
			}
			common.Logger().Debug("created uniform buffer", "binder", b.label, "block", key.String(), "size", size)
			blk.buffer, blk.size = buf, size
		}
		if err := writeBlock(queue, key, blk); err != nil {
			return err
		}
	}
	return nil
}

// bufferWriter is the part of *wgpu.Queue a binder uploads through.
type bufferWriter interface {
	WriteBuffer(buffer *wgpu.Buffer, bufferOffset uint64, data []byte) error
}

// writeBlock uploads blk into its buffer. A failed block stays dirty for the next Flush.
func writeBlock(q bufferWriter, key BlockKey, blk *block) error {
	if err := q.WriteBuffer(blk.buffer, 0, padded(blk.data, blk.size)); err != nil {
		return fmt.Errorf("binding: write buffer %s: %w", key, err)
	}
	blk.dirty = false
	return nil
}

func (b *uniformBinderImpl) Buffer(key BlockKey) *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if blk, ok := b.blocks[key]; ok {
		return blk.buffer
	}
	return nil
}

func (b *uniformBinderImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, blk := range b.blocks {
		if blk.buffer != nil {
			blk.buffer.Release()
			blk.buffer = nil
		}
		blk.dirty = true
	}
}

// alignedSize rounds n up to the 16-byte alignment of uniform buffers, with a 16-byte minimum.
func alignedSize(n int) uint64 {
	return uint64(max((n+15)&^15, 16))
}

// padded returns data extended with zeros to size bytes.
func padded(data []byte, size uint64) []byte {
	if uint64(len(data)) == size {
		return data
	}
	out := make([]byte, size)
	copy(out, data)
	return out
}
