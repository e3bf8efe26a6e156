package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/guidoenr/loopscope/internal/app"
	"github.com/guidoenr/loopscope/internal/audio"
	"github.com/guidoenr/loopscope/internal/logging"
	"github.com/guidoenr/loopscope/internal/render"
)

// GLFW and SDL must be driven from the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	var (
		deviceName = flag.String("audio-device", "", "Optional loopback device name (substring match)")
		listDevs   = flag.Bool("list-audio-devices", false, "List available audio devices and exit")
		points     = flag.Int("points", 4000, "Number of stereo points kept and drawn")
		backend    = flag.String("backend", render.BackendGL, "Render backend ("+strings.Join(render.BackendNames(), "|")+")")
		width      = flag.Int("width", 640, "Window width")
		height     = flag.Int("height", 480, "Window height")
		listen     = flag.String("listen", "", "Serve the scope to browsers on this address (e.g. :8080)")
		noAudio    = flag.Bool("no-audio", false, "Run with a synthetic loopback device (for testing)")
		noColor    = flag.Bool("no-color", false, "Disable ANSI color on the terminal backend")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
		logFile    = flag.String("log-file", "", "Also write logs to this rotating file")
		profile    = flag.String("profile", "", "Append per-frame timings to this CSV file")
	)

	flag.Parse()

	if *points <= 0 {
		fmt.Fprintf(os.Stderr, "points must be positive (got %d)\n", *points)
		os.Exit(2)
	}
	if strings.EqualFold(*backend, render.BackendSDL) && !render.SupportsSDL() {
		fmt.Fprintln(os.Stderr, "sdl backend not compiled in; rebuild with -tags sdl")
		os.Exit(2)
	}
	if strings.EqualFold(*backend, render.BackendGL) && !render.SupportsGL() {
		fmt.Fprintln(os.Stderr, "gl backend not compiled in; rebuild without -tags nogl")
		os.Exit(2)
	}

	logger, closeLog := logging.New(logging.Config{
		Prefix: "[loopscope] ",
		Debug:  *debug,
		File:   *logFile,
	})
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	needAudio := !*noAudio || *listDevs
	if needAudio {
		if err := audio.Initialize(); err != nil {
			logger.Fatalf("failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
	}

	if *listDevs {
		devices, err := audio.ListDevices()
		if err != nil {
			logger.Fatalf("list devices: %v", err)
		}
		fmt.Printf("\n=== Audio Input Devices ===\n\n")
		for _, dev := range devices {
			if dev.MaxInput == 0 {
				continue
			}
			markers := ""
			if dev.Loopback {
				markers += " (loopback)"
			}
			if dev.IsDefaultInput {
				markers += " (default)"
			}
			fmt.Printf("- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz latency:%s\n",
				dev.Name, dev.HostAPI, markers, dev.MaxInput, dev.MaxOutput, dev.DefaultSampleHz, dev.DefaultLatency)
		}
		return
	}

	a, err := app.New(app.Config{
		DeviceName:   *deviceName,
		Points:       *points,
		Backend:      *backend,
		Width:        *width,
		Height:       *height,
		Listen:       *listen,
		DisableAudio: *noAudio,
		UseANSI:      !*noColor,
		ProfilePath:  *profile,
		Log:          logger,
	})
	if err != nil {
		logger.Fatalf("failed to create app: %v", err)
	}

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
	}

	if runErr != nil {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		if errors.Is(runErr, audio.ErrNoLoopbackDevice) {
			logger.Printf("no loopback device to visualize; try -list-audio-devices or -no-audio")
		}
		logger.Printf("runtime error: %v", runErr)
		// os.Exit skips deferred calls.
		audio.Terminate()
		closeLog()
		os.Exit(1)
	}
}
