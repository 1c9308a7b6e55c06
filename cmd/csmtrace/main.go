// Command csmtrace runs the cascaded shadow pipeline headless over a synthetic depth buffer and
// prints the fitted distance range, light matrix and cascade crops of every frame.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-csm/common"
	"github.com/Carmen-Shannon/oxy-csm/engine"
	"github.com/Carmen-Shannon/oxy-csm/engine/binding"
	"github.com/Carmen-Shannon/oxy-csm/engine/camera"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
	"github.com/Carmen-Shannon/oxy-csm/engine/reduction"
	"github.com/Carmen-Shannon/oxy-csm/engine/shadow"
	"github.com/Carmen-Shannon/oxy-csm/engine/stage"
	"github.com/go-gl/mathgl/mgl32"
)

// config holds the parsed command line.
type config struct {
	frames   uint64
	cascades int
	latency  int
	blend    float64
	near     float64
	far      float64
	minDepth float64
	maxDepth float64
	light    string
	width    uint
	height   uint
	verbose  bool
	shaders  bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "csmtrace:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("csmtrace", flag.ContinueOnError)
	fs.Uint64Var(&cfg.frames, "frames", 4, "number of frames to run")
	fs.IntVar(&cfg.cascades, "cascades", 3, "number of shadow cascades")
	fs.IntVar(&cfg.latency, "latency", light.DefaultReadbackLatency, "depth readback latency in frames")
	fs.Float64Var(&cfg.blend, "blend", float64(light.DefaultBlendMargin), "cascade blend margin as a fraction of the range")
	fs.Float64Var(&cfg.near, "near", 0.1, "camera near plane")
	fs.Float64Var(&cfg.far, "far", 200, "camera far plane")
	fs.Float64Var(&cfg.minDepth, "min-depth", 5, "closest visible distance in the synthetic depth buffer")
	fs.Float64Var(&cfg.maxDepth, "max-depth", 80, "farthest visible distance in the synthetic depth buffer")
	fs.StringVar(&cfg.light, "light", "directional", "light type: directional or point")
	fs.UintVar(&cfg.width, "width", 64, "depth buffer width")
	fs.UintVar(&cfg.height, "height", 36, "depth buffer height")
	fs.BoolVar(&cfg.verbose, "v", false, "log at debug level to stderr")
	fs.BoolVar(&cfg.shaders, "shaders", false, "print the composed WGSL header of every stage")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case cfg.cascades < 1 || cfg.cascades > light.MaxCascades:
		return cfg, fmt.Errorf("-cascades must be in [1, %d]", light.MaxCascades)
	case cfg.latency < 0:
		return cfg, fmt.Errorf("-latency must not be negative")
	case cfg.near <= 0 || cfg.far <= cfg.near:
		return cfg, fmt.Errorf("-near and -far must satisfy 0 < near < far")
	case cfg.minDepth > cfg.maxDepth:
		return cfg, fmt.Errorf("-min-depth must not exceed -max-depth")
	case cfg.width == 0 || cfg.height == 0:
		return cfg, fmt.Errorf("-width and -height must be positive")
	case cfg.light != "directional" && cfg.light != "point":
		return cfg, fmt.Errorf("-light must be directional or point, got %q", cfg.light)
	}
	return cfg, nil
}

func run(cfg config, out io.Writer) error {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// ── Camera + Light ──────────────────────────────────────────────────
	cam := camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{0, 10, 30}),
		camera.WithTarget(mgl32.Vec3{0, 0, 0}),
		camera.WithFov(float32(60.0*math.Pi/180.0)),
		camera.WithAspect(float32(cfg.width)/float32(cfg.height)),
		camera.WithNear(float32(cfg.near)),
		camera.WithFar(float32(cfg.far)),
	)
	var sun light.Light
	if cfg.light == "point" {
		sun = light.NewPointLight(mgl32.Vec3{20, 40, 20}, mgl32.Vec3{-0.3, -1, -0.3}, float32(math.Pi/3))
	} else {
		sun = light.NewDirectionalLight(mgl32.Vec3{0.4, -1, 0.2})
	}

	// ── Depth buffer ────────────────────────────────────────────────────
	depth := syntheticDepth(cam, uint32(cfg.width), uint32(cfg.height), float32(cfg.minDepth), float32(cfg.maxDepth))

	// ── Pipeline ────────────────────────────────────────────────────────
	pool := worker.NewDynamicWorkerPool(runtime.NumCPU(), 256, time.Second)
	reducer := reduction.NewReducer(
		reduction.NewCPUReductionFactory(pool, reduction.DefaultBands),
		reduction.WithReadbackLatency(cfg.latency),
	)
	defer reducer.Release()

	partitioner := shadow.NewPartitioner(
		shadow.WithCascadeCount(cfg.cascades),
		shadow.WithBlendMargin(float32(cfg.blend)),
		shadow.WithShadowMapSize(light.ShadowMapResolution, light.ShadowMapResolution),
	)
	writer := stage.NewShadowDepthStage(reducer, partitioner)
	p, err := stage.NewPipeline([]stage.Stage{writer, stage.NewReflectiveShadowStage(), stage.NewIndirectStage()})
	if err != nil {
		return err
	}

	binder := binding.NewUniformBinder("csmtrace")

	// ── Engine ──────────────────────────────────────────────────────────
	eng := engine.NewEngine(p,
		engine.WithProfiling(cfg.verbose),
		engine.WithFrameProvider(func(dt time.Duration) *stage.FrameContext {
			return &stage.FrameContext{
				Camera:        cam,
				Light:         sun,
				Depth:         depth,
				ScreenSize:    [2]uint32{uint32(cfg.width), uint32(cfg.height)},
				ShadowMapSize: [2]uint32{light.ShadowMapResolution, light.ShadowMapResolution},
				Sink:          binder.Sink(),
			}
		}),
	)
	eng.SetRenderCallback(func(frame uint64, _ float32) {
		if res, ok := writer.LastResult(); ok {
			printFrame(out, frame, res)
		}
	})

	for range cfg.frames {
		if err := eng.Step(time.Second / 60); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "uniform blocks:\n")
	for _, key := range binder.Keys() {
		data, bind, _ := binder.Staged(key)
		fmt.Fprintf(out, "  %-32s binding %d, %d bytes\n", key, bind, len(data))
	}

	if cfg.shaders {
		for _, s := range p.Stages() {
			src, _, err := stage.ShaderHeader(s.Name())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "// ---- %s ----\n%s\n", s.Name(), src)
		}
	}
	return nil
}

// syntheticDepth builds a depth buffer whose rows sweep linearly from maxDist at the top to
// minDist at the bottom, like a ground plane seen from above.
func syntheticDepth(cam camera.Camera, w, h uint32, minDist, maxDist float32) *common.DepthImage {
	img := common.NewDepthImage(w, h, 1)
	proj := cam.ProjectionMatrix()
	for y := range h {
		t := float32(y) / float32(max(h-1, 1))
		dist := common.Lerp(maxDist, minDist, t)
		d := common.ProjectPoint(proj, mgl32.Vec3{0, 0, -dist}).Z()
		for x := range w {
			img.Set(x, y, common.Clamp(d, 0, 1))
		}
	}
	return img
}

func printFrame(out io.Writer, frame uint64, res shadow.Result) {
	fmt.Fprintf(out, "frame %d: range [%.4f, %.4f]\n", frame, res.Range.Start, res.Range.End)
	fmt.Fprintf(out, "  global:\n")
	for r := range 4 {
		row := res.GlobalMat.Row(r)
		fmt.Fprintf(out, "    % .5f % .5f % .5f % .5f\n", row[0], row[1], row[2], row[3])
	}
	for _, c := range res.Cascades {
		fmt.Fprintf(out, "  cascade %d [%.4f, %.4f] dist [%.2f, %.2f] scale %v offset %v\n",
			c.Index, c.Start, c.End, c.NearDistance, c.FarDistance, c.Crop.Scale, c.Crop.Offset)
	}
}
