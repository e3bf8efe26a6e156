package app

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guidoenr/loopscope/internal/audio"
	"github.com/guidoenr/loopscope/internal/render"
)

// stubSurface closes itself once the buffer has received samples.
type stubSurface struct {
	frames  int
	sawData atomic.Bool
	closed  bool
	onClose func()
}

func (s *stubSurface) Draw(points []float32) error {
	s.frames++
	for _, v := range points {
		if v != 0 {
			s.sawData.Store(true)
			break
		}
	}
	time.Sleep(time.Millisecond)
	return nil
}

func (s *stubSurface) PollEvents()       {}
func (s *stubSurface) ShouldClose() bool { return s.sawData.Load() || s.frames > 5000 }
func (s *stubSurface) Close() error {
	s.closed = true
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

func useStubSurface(t *testing.T) *stubSurface {
	t.Helper()
	stub := &stubSurface{}
	prev := newSurface
	newSurface = func(string, render.SurfaceConfig) (render.Surface, error) { return stub, nil }
	t.Cleanup(func() { newSurface = prev })
	return stub
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestNewAppliesDefaults(t *testing.T) {
	useStubSurface(t)
	a, err := New(Config{DisableAudio: true, Log: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.cfg.Points != defaultPoints || a.Buffer().Points() != defaultPoints {
		t.Fatalf("points=%d buffer=%d want %d", a.cfg.Points, a.Buffer().Points(), defaultPoints)
	}
	if a.cfg.Width != defaultWidth || a.cfg.Height != defaultHeight {
		t.Fatalf("size=%dx%d", a.cfg.Width, a.cfg.Height)
	}
	if a.cfg.Backend != render.BackendGL {
		t.Fatalf("backend=%q want gl", a.cfg.Backend)
	}
	if a.server != nil {
		t.Fatal("stream server should be off without -listen")
	}
}

func TestRunWithSyntheticAudio(t *testing.T) {
	stub := useStubSurface(t)
	profile := filepath.Join(t.TempDir(), "frames.csv")
	a, err := New(Config{DisableAudio: true, Points: 256, ProfilePath: profile, Log: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !stub.sawData.Load() {
		t.Fatal("surface never saw captured samples")
	}
	cursor := a.Buffer().Cursor()
	time.Sleep(20 * time.Millisecond)
	if a.Buffer().Cursor() != cursor {
		t.Fatal("capture kept writing after Run returned")
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if !stub.closed {
		t.Fatal("surface not closed")
	}
	data, err := os.ReadFile(profile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "frame_total") {
		t.Fatalf("profile missing frame rows: %q", data)
	}
	if info := a.info(); !strings.Contains(info.Device, "Synthetic") || info.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("info=%+v", info)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	useStubSurface(t)
	a, err := New(Config{DisableAudio: true, Points: 64, Log: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(Config{DisableAudio: true, Backend: "vulkan", Log: quietLogger()}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

// gatedBackend exposes one loopback device whose stream refuses to stop
// until the gate opens.
type gatedBackend struct {
	gate chan struct{}
}

func (b *gatedBackend) Devices() ([]audio.Device, error) {
	return []audio.Device{{Name: "Monitor of Speakers", MaxInput: 2, Loopback: true}}, nil
}

func (b *gatedBackend) OpenStream(_ audio.Device, _ audio.Format, process func([]int16)) (audio.Stream, error) {
	return &gatedStream{gate: b.gate, process: process}, nil
}

type gatedStream struct {
	gate    chan struct{}
	process func([]int16)
}

func (s *gatedStream) Start() error {
	s.process([]int16{16384, -16384})
	return nil
}

func (s *gatedStream) Stop() error {
	select {
	case <-s.gate:
		return nil
	case <-time.After(2 * time.Second):
		return errors.New("surface still open while capture was stopping")
	}
}

func (s *gatedStream) Close() error { return nil }

func TestRunClosesSurfaceBeforeCaptureStops(t *testing.T) {
	stub := useStubSurface(t)
	gate := make(chan struct{})
	stub.onClose = func() { close(gate) }

	a, err := New(Config{Points: 16, AudioBackend: &gatedBackend{gate: gate}, Log: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !stub.closed {
		t.Fatal("surface not closed by Run")
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
}
