package audio

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guidoenr/loopscope/internal/waveform"
)

var (
	// ErrInitialization wraps every failure that keeps a session from
	// delivering samples.
	ErrInitialization = errors.New("capture initialization failed")
	// ErrNoLoopbackDevice is returned when no input device advertises loopback capture.
	ErrNoLoopbackDevice = errors.New("no loopback-capable audio device found")
	// ErrSessionStarted is returned when Start is called more than once.
	ErrSessionStarted = errors.New("capture session already started")
)

const defaultPollInterval = 5 * time.Millisecond

// SessionConfig controls how a Session selects and drives its device.
type SessionConfig struct {
	Backend Backend
	Buffer  *waveform.Buffer

	// DeviceName optionally narrows the loopback candidates (substring match).
	DeviceName string
	// PollInterval is how long the driving goroutine sleeps between stop checks.
	PollInterval time.Duration
	Log          *log.Logger
}

// Session captures a loopback device into a waveform buffer until stopped.
type Session struct {
	cfg SessionConfig
	log *log.Logger

	started   atomic.Bool
	stopped   atomic.Bool
	streaming atomic.Bool

	mu       sync.Mutex
	device   Device
	selected bool
}

// NewSession constructs a Session. Nothing is opened until Start.
func NewSession(cfg SessionConfig) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Session{cfg: cfg, log: logger}
}

// Start selects the first loopback device, opens a stereo stream on it and
// pushes every delivered frame into the buffer. It blocks until Stop has
// been observed, then stops and closes the stream before returning.
//
// Every error returned before capture begins wraps ErrInitialization.
func (s *Session) Start() (err error) {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionStarted
	}
	if s.cfg.Backend == nil || s.cfg.Buffer == nil {
		return fmt.Errorf("%w: session needs a backend and a buffer", ErrInitialization)
	}

	dev, err := s.selectDevice()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	s.log.Printf("capturing loopback device %q [%s]", dev.Name, dev.HostAPI)

	format := Format{Channels: StereoChannels, SampleRate: DefaultSampleRate}
	stream, err := s.cfg.Backend.OpenStream(dev, format, s.process)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	s.streaming.Store(true)
	if err := stream.Start(); err != nil {
		s.streaming.Store(false)
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	for !s.stopped.Load() {
		time.Sleep(s.cfg.PollInterval)
	}

	err = stream.Stop()
	s.streaming.Store(false)
	s.log.Printf("capture stopped on %q", dev.Name)
	return err
}

// Stop asks the driving goroutine to tear the stream down. It does not wait
// and may be called from any goroutine, any number of times.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

// Device returns the selected device once Start has picked one.
func (s *Session) Device() (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device, s.selected
}

// SampleRate returns the fixed rate every session requests from its device.
func (s *Session) SampleRate() float64 {
	return DefaultSampleRate
}

func (s *Session) selectDevice() (Device, error) {
	devices, err := s.cfg.Backend.Devices()
	if err != nil {
		return Device{}, err
	}

	name := strings.ToLower(s.cfg.DeviceName)
	for _, d := range devices {
		if d.MaxInput <= 0 || !d.Loopback {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(d.Name), name) {
			continue
		}
		s.mu.Lock()
		s.device = d
		s.selected = true
		s.mu.Unlock()
		return d, nil
	}

	if name != "" {
		return Device{}, fmt.Errorf("%w matching %q", ErrNoLoopbackDevice, s.cfg.DeviceName)
	}
	return Device{}, ErrNoLoopbackDevice
}

// process runs on the backend's audio thread: no locks, no allocation, no I/O.
func (s *Session) process(in []int16) {
	if !s.streaming.Load() {
		return
	}
	buf := s.cfg.Buffer
	for i := 0; i+1 < len(in); i += StereoChannels {
		buf.Push(waveform.ConvertFrame(in[i], in[i+1]))
	}
}
