package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine/profiler"
	"github.com/Carmen-Shannon/oxy-csm/engine/stage"
)

// ErrAlreadyRunning is returned by Run when the render loop is already started.
var ErrAlreadyRunning = errors.New("engine: already running")

// FrameProvider supplies the inputs of a frame: camera, light, depth buffer, casters and sizes.
// The pipeline fills in the frame index and blackboard.
type FrameProvider func(dt time.Duration) *stage.FrameContext

// engine implements the Engine interface.
// Coordinates the tick and render goroutines around one shadow pipeline.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	pipeline stage.Pipeline
	provider FrameProvider

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate atomic.Int64 // time.Duration between ticks
	tickCallback   func(deltaTime float32)
	renderCallback func(frame uint64, deltaTime float32)

	renderFrameLimit atomic.Int64 // minimum time.Duration per frame; 0 = uncapped
	maxFrames        uint64       // frames to render before quitting; 0 = unbounded

	frames  atomic.Uint64
	errMu   sync.Mutex
	lastErr error
}

// Engine drives a shadow pipeline once per rendered frame.
// It runs a fixed-rate tick loop for scene updates and a render loop that executes the pipeline.
type Engine interface {
	// Pipeline returns the pipeline the engine drives.
	//
	// Returns:
	//   - stage.Pipeline: the pipeline
	Pipeline() stage.Pipeline

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this to move the camera and lights between frames.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the frame index and delta time in seconds
	SetRenderCallback(callback func(frame uint64, deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Step renders a single frame on the calling goroutine.
	//
	// Parameters:
	//   - dt: time since the previous frame
	//
	// Returns:
	//   - error: the pipeline error, if any
	Step(dt time.Duration) error

	// Run starts the tick and render goroutines and returns immediately.
	//
	// Returns:
	//   - error: ErrAlreadyRunning if Run was already called
	Run() error

	// Wait blocks until the engine goroutines have exited.
	//
	// Returns:
	//   - error: the error that stopped the render loop, if any
	Wait() error

	// Frames returns the number of frames rendered so far.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine driving pipeline.
//
// Parameters:
//   - pipeline: the shadow pipeline executed each frame
//   - options: functional options for engine configuration (profiling, tick rate, frame source, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(pipeline stage.Pipeline, options ...EngineBuilderOption) Engine {
	if pipeline == nil {
		panic("engine: NewEngine requires a non-nil Pipeline")
	}
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		pipeline:        pipeline,
		profiler:        profiler.NewProfiler(),
	}
	e.engineTickRate.Store(int64(time.Second / 60))

	for _, opt := range options {
		opt(e)
	}

	return e
}

func (e *engine) Pipeline() stage.Pipeline {
	return e.pipeline
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) Step(dt time.Duration) error {
	ctx := &stage.FrameContext{}
	if e.provider != nil {
		if c := e.provider(dt); c != nil {
			ctx = c
		}
	}
	ctx.DeltaTime = dt

	err := e.pipeline.Run(ctx)
	frame := e.frames.Add(1)

	if e.profilingEnabled.Load() && e.profiler != nil {
		data, _ := e.pipeline.Blackboard().Shadow()
		e.profiler.Tick(data.Range)
	}
	if e.renderCallback != nil {
		e.renderCallback(frame, float32(dt.Seconds()))
	}
	return err
}

func (e *engine) Run() error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.handle()
	return nil
}

func (e *engine) Wait() error {
	e.wg.Wait()
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// fail records err as the reason the render loop stopped.
func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.lastErr == nil {
		e.lastErr = err
	}
	e.errMu.Unlock()
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Duration(e.engineTickRate.Load()))
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate.Store(int64(newRate))
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each iteration runs the pipeline once. A pipeline error or a panic stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", r, "frame", e.frames.Load())
			e.fail(fmt.Errorf("engine: render panic: %v", r))
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := now.Sub(lastRender)
			lastRender = now

			if err := e.Step(dt); err != nil {
				common.Logger().Error("frame failed, stopping", "frame", e.frames.Load(), "err", err)
				e.fail(err)
				e.signalQuit()
				return
			}

			if e.maxFrames > 0 && e.frames.Load() >= e.maxFrames {
				e.signalQuit()
				return
			}

			// Frame rate limiting
			if limit := time.Duration(e.renderFrameLimit.Load()); limit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := limit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := frameDuration(fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate.Store(int64(newRate))
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called after each rendered frame.
func (e *engine) SetRenderCallback(callback func(frame uint64, deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit.Store(int64(frameDuration(fps)))
}

// frameDuration converts a rate in frames per second into a frame duration. Rates <= 0 yield 0.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
