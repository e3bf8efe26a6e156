package render

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"
)

// Keyboard hooks, swapped in tests.
var (
	keyboardOpen   = keyboard.Open
	keyboardClose  = keyboard.Close
	keyboardGetKey = keyboard.GetKey
)

// terminalSurface rasterizes the point cloud into character cells.
type terminalSurface struct {
	out     *bufio.Writer
	fd      int
	width   int
	height  int
	useANSI bool
	log     *log.Logger

	hits  []int
	lines []string

	quit        atomic.Bool
	cancelInput context.CancelFunc
	inputDone   chan struct{}
	closeOnce   sync.Once
}

func newTerminalSurface(cfg SurfaceConfig) (Surface, error) {
	logger := cfg.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &terminalSurface{
		out:     bufio.NewWriterSize(os.Stdout, 64*1024),
		fd:      int(os.Stdout.Fd()),
		width:   80,
		height:  24,
		useANSI: cfg.UseANSI,
		log:     logger,
	}
	s.ensureDimensions()

	enterAltScreen(s.out)
	clearScreen(s.out)
	hideCursor(s.out)
	_ = s.out.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelInput = cancel
	s.startInputListener(ctx)
	return s, nil
}

func (s *terminalSurface) Draw(points []float32) error {
	s.ensureDimensions()
	lines := s.raster(points)

	moveCursorHome(s.out)
	for i, line := range lines {
		s.out.WriteString(line)
		if i < len(lines)-1 {
			s.out.WriteString("\r\n")
		}
	}
	return s.out.Flush()
}

// raster builds one string per terminal row for the given points.
func (s *terminalSurface) raster(points []float32) []string {
	cells := s.width * s.height
	if cap(s.hits) < cells {
		s.hits = make([]int, cells)
	}
	s.hits = s.hits[:cells]
	for i := range s.hits {
		s.hits[i] = 0
	}

	maxHits := 0
	for i := 0; i+1 < len(points); i += 2 {
		col, row, ok := project(points[i], points[i+1], s.width, s.height)
		if !ok {
			continue
		}
		idx := row*s.width + col
		s.hits[idx]++
		if s.hits[idx] > maxHits {
			maxHits = s.hits[idx]
		}
	}

	if cap(s.lines) < s.height {
		s.lines = make([]string, s.height)
	}
	s.lines = s.lines[:s.height]

	var builder strings.Builder
	for y := 0; y < s.height; y++ {
		builder.Reset()
		builder.Grow(s.width * 8)
		lastLevel := -1
		for x := 0; x < s.width; x++ {
			level := densityLevel(s.hits[y*s.width+x], maxHits)
			if s.useANSI && level > 0 && level != lastLevel {
				builder.WriteString(colorCode(level))
				lastLevel = level
			}
			builder.WriteRune(densityPalette[level])
		}
		if s.useANSI {
			builder.WriteString(resetANSI)
		}
		s.lines[y] = builder.String()
	}
	return s.lines
}

// PollEvents is a no-op: keys are read on a separate goroutine.
func (s *terminalSurface) PollEvents() {}

func (s *terminalSurface) ShouldClose() bool { return s.quit.Load() }

func (s *terminalSurface) Close() error {
	s.closeOnce.Do(func() {
		if s.cancelInput != nil {
			s.cancelInput()
		}
		// The terminal must be out of raw mode before the screen is restored.
		if s.inputDone != nil {
			<-s.inputDone
		}
		showCursor(s.out)
		exitAltScreen(s.out)
		_ = s.out.Flush()
	})
	return nil
}

func (s *terminalSurface) ensureDimensions() {
	if s.fd < 0 {
		return
	}
	w, h, err := term.GetSize(s.fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}
	s.width = w
	s.height = h
}

// startInputListener reads quit keys until ctx is done. inputDone is closed
// once the keyboard has been released.
func (s *terminalSurface) startInputListener(ctx context.Context) {
	if err := keyboardOpen(); err != nil {
		s.log.Printf("keyboard input disabled: %v", err)
		return
	}

	done := make(chan struct{})
	s.inputDone = done
	var once sync.Once
	release := func() {
		once.Do(func() {
			_ = keyboardClose()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			release()
		case <-done:
		}
	}()

	go func() {
		defer release()
		for {
			char, key, err := keyboardGetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			if key == keyboard.KeyEsc || key == keyboard.KeyCtrlC || char == 'q' || char == 'Q' {
				s.quit.Store(true)
				return
			}
		}
	}()
}

func clearScreen(w io.Writer) {
	io.WriteString(w, "\x1b[2J")
	moveCursorHome(w)
}

func moveCursorHome(w io.Writer) {
	io.WriteString(w, "\x1b[H")
}

func hideCursor(w io.Writer) {
	io.WriteString(w, "\x1b[?25l")
}

func showCursor(w io.Writer) {
	io.WriteString(w, "\x1b[?25h")
}

func enterAltScreen(w io.Writer) {
	io.WriteString(w, "\x1b[?1049h")
}

func exitAltScreen(w io.Writer) {
	io.WriteString(w, "\x1b[?1049l\x1b[0m")
}
