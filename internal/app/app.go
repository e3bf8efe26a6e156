package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/guidoenr/loopscope/internal/audio"
	"github.com/guidoenr/loopscope/internal/render"
	"github.com/guidoenr/loopscope/internal/waveform"
	"github.com/guidoenr/loopscope/internal/web"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPoints = 4000
	defaultWidth  = 640
	defaultHeight = 480
)

// Config configures the application runtime.
type Config struct {
	DeviceName   string
	Points       int
	Backend      string
	Width        int
	Height       int
	Listen       string
	DisableAudio bool
	UseANSI      bool
	ProfilePath  string
	Log          *log.Logger

	// AudioBackend replaces the backend picked from DisableAudio when set.
	AudioBackend audio.Backend
}

// App ties together loopback capture, the shared buffer, and rendering.
type App struct {
	cfg     Config
	log     *log.Logger
	buffer  *waveform.Buffer
	session *audio.Session
	surface render.Surface
	server  *web.Server
	frames  *frameMonitor
}

var newSurface = render.New

// New allocates the buffer, prepares the capture session and opens the
// drawing surface. It must run on the thread that will call Run.
func New(cfg Config) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}
	if cfg.Points <= 0 {
		cfg.Points = defaultPoints
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	if cfg.Backend == "" {
		cfg.Backend = render.BackendGL
	}
	cfg.Backend = strings.ToLower(cfg.Backend)

	buffer, err := waveform.NewPoints(cfg.Points)
	if err != nil {
		return nil, err
	}

	var backend audio.Backend = audio.PortAudio{}
	if cfg.DisableAudio {
		backend = audio.NewSynthetic()
		cfg.Log.Println("audio disabled, using synthetic generator")
	}
	if cfg.AudioBackend != nil {
		backend = cfg.AudioBackend
	}

	session := audio.NewSession(audio.SessionConfig{
		Backend:    backend,
		Buffer:     buffer,
		DeviceName: cfg.DeviceName,
		Log:        cfg.Log,
	})

	surface, err := newSurface(cfg.Backend, render.SurfaceConfig{
		Title:   "loopscope",
		Width:   cfg.Width,
		Height:  cfg.Height,
		Points:  cfg.Points,
		UseANSI: cfg.UseANSI,
		Log:     cfg.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("render surface: %w", err)
	}

	a := &App{
		cfg:     cfg,
		log:     cfg.Log,
		buffer:  buffer,
		session: session,
		surface: surface,
		frames:  newFrameMonitor(cfg.ProfilePath, cfg.Log),
	}

	if cfg.Listen != "" {
		a.server = web.NewServer(web.Config{
			Source: buffer,
			Info:   a.info,
			Log:    cfg.Log,
		})
	}
	return a, nil
}

// Run captures on a background goroutine and renders on the calling one
// until the surface closes, ctx is cancelled, or capture fails to start.
// The surface is torn down as soon as rendering ends, without waiting for
// capture; the capture goroutine has finished with the buffer when Run
// returns.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := a.session.Start(); err != nil {
			return fmt.Errorf("audio capture: %w", err)
		}
		return nil
	})
	if a.server != nil {
		g.Go(func() error {
			err := a.server.Serve(gctx, a.cfg.Listen)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("stream server: %w", err)
			}
			return nil
		})
	}

	renderErr := render.Run(gctx, a.surface, a.buffer, render.Options{Observer: a.frames})
	surfaceErr := a.closeSurface()

	cancel()
	a.session.Stop()
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if renderErr != nil && !errors.Is(renderErr, context.Canceled) {
		return renderErr
	}
	if surfaceErr != nil {
		return fmt.Errorf("close surface: %w", surfaceErr)
	}
	return nil
}

// Close releases the surface, if Run has not already, and the profiler.
// Call it after Run returns.
func (a *App) Close() error {
	var errs []error
	errs = append(errs, a.closeSurface())
	if a.frames != nil {
		errs = append(errs, a.frames.Close())
	}
	return errors.Join(errs...)
}

func (a *App) closeSurface() error {
	if a.surface == nil {
		return nil
	}
	err := a.surface.Close()
	a.surface = nil
	return err
}

// Buffer exposes the shared waveform buffer.
func (a *App) Buffer() *waveform.Buffer { return a.buffer }

func (a *App) info() web.Info {
	info := web.Info{
		SampleRate: a.session.SampleRate(),
		FPS:        a.frames.FPS(),
	}
	if dev, ok := a.session.Device(); ok {
		info.Device = dev.Name
	}
	return info
}
