package app

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const fpsSmoothing = 0.1

// frameMonitor implements render.FrameObserver. It keeps a smoothed FPS
// estimate for the status endpoint and, when a profile path is given,
// appends per-section timings to a CSV file.
type frameMonitor struct {
	fpsBits atomic.Uint64

	mu        sync.Mutex
	file      *os.File
	start     time.Time
	last      time.Time
	lastFrame time.Time
}

func newFrameMonitor(path string, logger *log.Logger) *frameMonitor {
	m := &frameMonitor{}
	if path == "" {
		return m
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return m
	}
	m.file = f
	fmt.Fprintln(m.file, "timestamp,section,delta_ms,points")
	return m
}

func (m *frameMonitor) BeginFrame() {
	now := time.Now()
	m.start = now
	m.last = now
}

func (m *frameMonitor) MarkSection(name string) {
	if m.file == nil {
		return
	}
	now := time.Now()
	delta := now.Sub(m.last).Seconds() * 1000
	m.last = now
	m.write(name, delta, 0)
}

func (m *frameMonitor) EndFrame(points []float32) {
	now := time.Now()
	if !m.lastFrame.IsZero() {
		if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
			fps := 1 / dt
			if prev := m.FPS(); prev > 0 {
				fps = prev + (fps-prev)*fpsSmoothing
			}
			m.fpsBits.Store(math.Float64bits(fps))
		}
	}
	m.lastFrame = now

	if m.file != nil {
		m.write("frame_total", now.Sub(m.start).Seconds()*1000, len(points)/2)
	}
}

// FPS is safe to call from any goroutine.
func (m *frameMonitor) FPS() float64 {
	return math.Float64frombits(m.fpsBits.Load())
}

func (m *frameMonitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

func (m *frameMonitor) write(section string, deltaMs float64, points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return
	}
	timestamp := time.Now().Format(time.RFC3339Nano)
	fmt.Fprintf(m.file, "%s,%s,%.3f,%d\n", timestamp, section, deltaMs, points)
}
