package reduction

import (
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-csm/common"
)

// CPUDepthSource is a depth buffer whose samples are readable from the CPU.
// Depths holds Width*Height*SampleCount values, row-major with the samples of a texel adjacent.
type CPUDepthSource interface {
	DepthSource
	Depths() []float32
}

// DefaultBands is the number of row bands a CPU reduction splits each dispatch into.
const DefaultBands = 8

// extrema is the partial result of one band.
type extrema struct {
	lo, hi float32
	n      int
}

// cpuSlot holds the snapshot and partial results of one ring slot.
type cpuSlot struct {
	wg      sync.WaitGroup
	depths  []float32
	partial []extrema
	pending bool
}

// cpuReductionImpl reduces CPU-side depth buffers on a shared worker pool.
type cpuReductionImpl struct {
	key   Key
	pool  worker.DynamicWorkerPool
	bands int
	slots []*cpuSlot
}

var _ MinMaxReduction = &cpuReductionImpl{}

// NewCPUReductionFactory returns a Factory whose reductions fan each dispatch out over pool in
// row bands. Each slot keeps a snapshot of the depth samples, so the caller may reuse its buffer
// as soon as Dispatch returns.
//
// Parameters:
//   - pool: the worker pool executing band tasks
//   - bands: the number of row bands per dispatch, DefaultBands when zero
//
// Returns:
//   - Factory: a factory creating CPU reductions
func NewCPUReductionFactory(pool worker.DynamicWorkerPool, bands int) Factory {
	bands = common.Coalesce(max(bands, 0), DefaultBands)
	return func(key Key, slots int) (MinMaxReduction, error) {
		return newCPUReduction(key, slots, pool, bands), nil
	}
}

func newCPUReduction(key Key, slots int, pool worker.DynamicWorkerPool, bands int) *cpuReductionImpl {
	size := int(key.Width) * int(key.Height) * int(key.SampleCount)
	r := &cpuReductionImpl{
		key:   key,
		pool:  pool,
		bands: max(min(bands, int(key.Height)), 1),
		slots: make([]*cpuSlot, slots),
	}
	for i := range r.slots {
		r.slots[i] = &cpuSlot{
			depths:  make([]float32, size),
			partial: make([]extrema, r.bands),
		}
	}
	return r
}

func (r *cpuReductionImpl) Key() Key {
	return r.key
}

func (r *cpuReductionImpl) Dispatch(slot int, src DepthSource) error {
	if src == nil {
		return ErrNilDepthSource
	}
	cs, ok := src.(CPUDepthSource)
	if !ok {
		return fmt.Errorf("%w: %T has no CPU samples", ErrUnsupportedSource, src)
	}
	s := r.slots[slot]
	depths := cs.Depths()
	if len(depths) < len(s.depths) {
		return fmt.Errorf("%w: %d samples for %s", ErrUnsupportedSource, len(depths), r.key)
	}

	s.wg.Wait()
	copy(s.depths, depths)
	s.pending = true

	rowLen := int(r.key.Width) * int(r.key.SampleCount)
	rows := int(r.key.Height)
	perBand := (rows + r.bands - 1) / r.bands
	for b := range r.bands {
		y0, y1 := min(b*perBand, rows), min((b+1)*perBand, rows)
		band := b
		s.wg.Add(1)
		r.pool.SubmitTask(worker.Task{
			ID: slot*r.bands + band,
			Do: func() (any, error) {
				defer s.wg.Done()
				s.partial[band] = reduceSpan(s.depths[y0*rowLen : y1*rowLen])
				return nil, nil
			},
		})
	}
	return nil
}

func (r *cpuReductionImpl) Resolve(slot int) (float32, float32, error) {
	s := r.slots[slot]
	s.wg.Wait()
	if !s.pending {
		return 0, 0, ErrEmptyReduction
	}
	s.pending = false

	total := extrema{lo: float32(math.Inf(1)), hi: float32(math.Inf(-1))}
	for _, p := range s.partial {
		if p.n == 0 {
			continue
		}
		total.lo = min(total.lo, p.lo)
		total.hi = max(total.hi, p.hi)
		total.n += p.n
	}
	if total.n == 0 {
		return 0, 0, ErrEmptyReduction
	}
	return total.lo, total.hi, nil
}

func (r *cpuReductionImpl) Release() {
	for _, s := range r.slots {
		s.wg.Wait()
		s.depths = nil
		s.partial = nil
	}
}

// reduceSpan returns the extrema of the non-NaN values in depths.
func reduceSpan(depths []float32) extrema {
	e := extrema{lo: float32(math.Inf(1)), hi: float32(math.Inf(-1))}
	for _, d := range depths {
		if d != d {
			continue
		}
		e.lo = min(e.lo, d)
		e.hi = max(e.hi, d)
		e.n++
	}
	return e
}
