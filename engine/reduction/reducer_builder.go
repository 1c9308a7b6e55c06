package reduction

// ReducerBuilderOption is a function that configures a Reducer during construction.
type ReducerBuilderOption func(*reducerImpl)

// WithReadbackLatency sets how many frames pass between dispatching a reduction and reading its
// result. Zero reads the result in the frame it was dispatched. Panics on negative values.
//
// Parameters:
//   - frames: the readback latency
//
// Returns:
//   - ReducerBuilderOption: a function that applies the latency to a reducerImpl
func WithReadbackLatency(frames int) ReducerBuilderOption {
	if frames < 0 {
		panic("reduction: WithReadbackLatency requires a non-negative latency")
	}
	return func(r *reducerImpl) {
		r.latency = frames
	}
}
