package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-csm/engine/camera"
	"github.com/Carmen-Shannon/oxy-csm/engine/light"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags(nil) error = %v", err)
	}
	if cfg.blend != float64(light.DefaultBlendMargin) {
		t.Errorf("blend = %v, want %v", cfg.blend, light.DefaultBlendMargin)
	}
	if cfg.latency != light.DefaultReadbackLatency || cfg.cascades != 3 || cfg.light != "directional" {
		t.Errorf("parseFlags(nil) = %+v", cfg)
	}

	cfg, err = parseFlags([]string{"-blend", "0.05"})
	if err != nil || cfg.blend != 0.05 {
		t.Errorf("parseFlags(-blend 0.05) = %v, %v", cfg.blend, err)
	}
}

func TestParseFlagsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too many cascades", []string{"-cascades", "9"}},
		{"negative latency", []string{"-latency", "-1"}},
		{"inverted planes", []string{"-near", "10", "-far", "1"}},
		{"inverted depths", []string{"-min-depth", "50", "-max-depth", "10"}},
		{"unknown light", []string{"-light", "spot"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args); err == nil {
				t.Errorf("parseFlags(%v) error = nil", tt.args)
			}
		})
	}
}

func TestRunPrintsEveryFittedFrame(t *testing.T) {
	for _, lightType := range []string{"directional", "point"} {
		t.Run(lightType, func(t *testing.T) {
			cfg, err := parseFlags([]string{"-frames", "3", "-cascades", "2", "-latency", "1", "-light", lightType, "-width", "8", "-height", "6"})
			if err != nil {
				t.Fatalf("parseFlags() error = %v", err)
			}
			var out bytes.Buffer
			if err := run(cfg, &out); err != nil {
				t.Fatalf("run() error = %v", err)
			}

			text := out.String()
			if got := strings.Count(text, "frame "); got != 3 {
				t.Errorf("printed %d frames, want 3:\n%s", got, text)
			}
			// The first frame has no readback yet and covers the full range.
			if !strings.Contains(text, "frame 1: range [0.0000, 1.0000]") {
				t.Errorf("frame 1 does not use the full range:\n%s", text)
			}
			if got := strings.Count(text, "cascade 1 "); got != 3 {
				t.Errorf("printed %d second cascades, want 3", got)
			}
		})
	}
}

func TestSyntheticDepthSweepsRows(t *testing.T) {
	cam := camera.NewCamera(camera.WithNear(0.1), camera.WithFar(100))
	img := syntheticDepth(cam, 4, 5, 10, 50)
	top, bottom := img.Depths()[0], img.Depths()[4*4]
	if top <= bottom {
		t.Errorf("top row depth %v should be farther than bottom row %v", top, bottom)
	}
	if top > 1 || bottom < 0 {
		t.Errorf("depths [%v, %v] outside [0, 1]", bottom, top)
	}
}

func TestRunPrintsShaderHeaders(t *testing.T) {
	cfg, err := parseFlags([]string{"-frames", "1", "-shaders"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	var out bytes.Buffer
	if err := run(cfg, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	text := out.String()
	for _, want := range []string{"// ---- ShadowDepth ----", "// ---- Indirect ----", "sample_kernel: array<vec4<f32>>"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
