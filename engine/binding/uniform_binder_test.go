package binding

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-csm/engine/stage"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestUniformBinderStagesWrites(t *testing.T) {
	b := NewUniformBinder("test")
	sink := b.Sink()

	data := []byte{1, 2, 3, 4}
	sink(stage.UniformWrite{Stage: "ShadowDepth", Label: "PerFrameCB", Binding: 0, Data: data})
	sink(stage.UniformWrite{Stage: "Indirect", Label: "SampleKernel", Binding: 1, Data: []byte{9}})
	data[0] = 42

	got, binding, ok := b.Staged(BlockKey{Stage: "ShadowDepth", Label: "PerFrameCB"})
	if !ok || binding != 0 || len(got) != 4 || got[0] != 1 {
		t.Errorf("Staged() = %v, %d, %v, want [1 2 3 4], 0, true", got, binding, ok)
	}
	if _, _, ok := b.Staged(BlockKey{Stage: "ShadowDepth", Label: "missing"}); ok {
		t.Error("Staged(missing) ok = true")
	}

	keys := b.Keys()
	if len(keys) != 2 || keys[0].Stage != "Indirect" || keys[1].String() != "ShadowDepth/PerFrameCB" {
		t.Errorf("Keys() = %v", keys)
	}
	if b.Dirty() != 2 {
		t.Errorf("Dirty() = %d, want 2", b.Dirty())
	}

	sink(stage.UniformWrite{Stage: "ShadowDepth", Label: "PerFrameCB", Binding: 0, Data: []byte{5}})
	if got, _, _ := b.Staged(BlockKey{Stage: "ShadowDepth", Label: "PerFrameCB"}); len(got) != 1 || got[0] != 5 {
		t.Errorf("rewritten block = %v, want [5]", got)
	}
	if len(b.Keys()) != 2 {
		t.Errorf("rewrite added a key: %v", b.Keys())
	}
}

func TestUniformBinderFlushWithoutDevice(t *testing.T) {
	b := NewUniformBinder("headless")
	b.Sink()(stage.UniformWrite{Stage: "s", Label: "l", Data: []byte{1}})
	if err := b.Flush(); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Flush() error = %v, want %v", err, ErrNoDevice)
	}
	if b.Buffer(BlockKey{Stage: "s", Label: "l"}) != nil {
		t.Error("Buffer() != nil without a device")
	}
	b.Release()
	if b.Dirty() != 1 {
		t.Errorf("Dirty() = %d after Release, want 1", b.Dirty())
	}
}

func TestAlignedSize(t *testing.T) {
	tests := map[int]uint64{0: 16, 1: 16, 16: 16, 17: 32, 208: 208, 224: 224, 1024: 1024}
	for n, want := range tests {
		if got := alignedSize(n); got != want {
			t.Errorf("alignedSize(%d) = %d, want %d", n, got, want)
		}
	}
	if got := padded([]byte{1}, 16); len(got) != 16 || got[0] != 1 {
		t.Errorf("padded() = %v", got)
	}
}

// recordingWriter records uploads and fails when err is set.
type recordingWriter struct {
	err    error
	writes [][]byte
}

func (w *recordingWriter) WriteBuffer(_ *wgpu.Buffer, _ uint64, data []byte) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, data)
	return nil
}

func TestWriteBlock(t *testing.T) {
	key := BlockKey{Stage: "Indirect", Label: "PerFrameCB"}
	blk := &block{data: []byte{1, 2, 3}, dirty: true, buffer: new(wgpu.Buffer), size: 16}

	failing := &recordingWriter{err: errors.New("device lost")}
	if err := writeBlock(failing, key, blk); !errors.Is(err, failing.err) {
		t.Fatalf("writeBlock() error = %v, want it to wrap %v", err, failing.err)
	}
	if !blk.dirty {
		t.Error("block marked clean after a failed write")
	}

	w := &recordingWriter{}
	if err := writeBlock(w, key, blk); err != nil {
		t.Fatalf("writeBlock() error = %v", err)
	}
	if blk.dirty || len(w.writes) != 1 || len(w.writes[0]) != 16 || w.writes[0][2] != 3 {
		t.Errorf("writeBlock() dirty = %v, writes = %v", blk.dirty, w.writes)
	}
}

func TestUniformBinderFlushOnDevice(t *testing.T) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		t.Skipf("no GPU adapter: %v", err)
	}
	defer adapter.Release()
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		t.Skipf("no GPU device: %v", err)
	}
	defer device.Release()

	b := NewUniformBinder("device", WithDevice(device))
	defer b.Release()
	key := BlockKey{Stage: "ShadowDepth", Label: "PerFrameCB"}
	b.Sink()(stage.UniformWrite{Stage: key.Stage, Label: key.Label, Data: make([]byte, 20)})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	first := b.Buffer(key)
	if first == nil || b.Dirty() != 0 {
		t.Fatalf("after Flush: Buffer() = %v, Dirty() = %d", first, b.Dirty())
	}

	b.Sink()(stage.UniformWrite{Stage: key.Stage, Label: key.Label, Data: make([]byte, 40)})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() after growth error = %v", err)
	}
	if b.Buffer(key) == first {
		t.Error("buffer not recreated after the block grew")
	}
}
