package audio

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/guidoenr/loopscope/internal/waveform"
)

// scriptedBackend hands the callback back to the test instead of running a thread.
type scriptedBackend struct {
	devices []Device
	openErr error

	mu      sync.Mutex
	opened  *Device
	format  Format
	process func([]int16)
	calls   []string
	started chan struct{}
}

func newScriptedBackend(devices ...Device) *scriptedBackend {
	return &scriptedBackend{devices: devices, started: make(chan struct{})}
}

func (b *scriptedBackend) Devices() ([]Device, error) { return b.devices, nil }

func (b *scriptedBackend) OpenStream(dev Device, format Format, process func([]int16)) (Stream, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = &dev
	b.format = format
	b.process = process
	b.calls = append(b.calls, "open")
	return &scriptedStream{b: b}, nil
}

func (b *scriptedBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *scriptedBackend) deliver(in []int16) {
	b.mu.Lock()
	process := b.process
	b.mu.Unlock()
	process(in)
}

func (b *scriptedBackend) history() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

type scriptedStream struct{ b *scriptedBackend }

func (s *scriptedStream) Start() error {
	s.b.record("start")
	close(s.b.started)
	return nil
}
func (s *scriptedStream) Stop() error  { s.b.record("stop"); return nil }
func (s *scriptedStream) Close() error { s.b.record("close"); return nil }

func mic() Device      { return Device{Index: 0, Name: "Built-in Microphone", MaxInput: 2} }
func speakers() Device { return Device{Index: 1, Name: "Speakers", MaxOutput: 2} }
func monitor(name string) Device {
	return Device{Index: 2, Name: name, MaxInput: 2, Loopback: true}
}

func newBuffer(t *testing.T, points int) *waveform.Buffer {
	t.Helper()
	buf, err := waveform.NewPoints(points)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func runSession(t *testing.T, s *Session) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not return")
		return nil
	}
}

func TestStartWithoutLoopbackDevice(t *testing.T) {
	backend := newScriptedBackend(mic(), speakers())
	buf := newBuffer(t, 4)
	s := NewSession(SessionConfig{Backend: backend, Buffer: buf})

	err := s.Start()
	if !errors.Is(err, ErrNoLoopbackDevice) {
		t.Fatalf("err=%v want ErrNoLoopbackDevice", err)
	}
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("err=%v should also be an initialization failure", err)
	}
	if len(backend.history()) != 0 {
		t.Fatalf("no stream should be opened, got %v", backend.history())
	}
	for i, v := range buf.Snapshot() {
		if v != 0 {
			t.Fatalf("slot %d=%f want untouched buffer", i, v)
		}
	}
	if _, ok := s.Device(); ok {
		t.Fatal("no device should be selected")
	}
}

func TestStartOpenFailureIsInitialization(t *testing.T) {
	backend := newScriptedBackend(monitor("Monitor of Speakers"))
	backend.openErr = errors.New("device busy")
	s := NewSession(SessionConfig{Backend: backend, Buffer: newBuffer(t, 4)})

	err := s.Start()
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("err=%v want ErrInitialization", err)
	}
	if errors.Is(err, ErrNoLoopbackDevice) {
		t.Fatalf("open failure must not look like a missing device: %v", err)
	}
}

func TestSessionCapturesUntilStopped(t *testing.T) {
	backend := newScriptedBackend(mic(), monitor("Monitor of Speakers"))
	buf := newBuffer(t, 4)
	s := NewSession(SessionConfig{Backend: backend, Buffer: buf, PollInterval: time.Millisecond})

	done := runSession(t, s)
	<-backend.started

	if backend.format.Channels != 2 || backend.format.SampleRate != DefaultSampleRate {
		t.Fatalf("format=%+v want stereo @ %d", backend.format, DefaultSampleRate)
	}
	if s.SampleRate() != DefaultSampleRate {
		t.Fatalf("SampleRate()=%v want %d", s.SampleRate(), DefaultSampleRate)
	}
	if dev, ok := s.Device(); !ok || dev.Name != "Monitor of Speakers" {
		t.Fatalf("selected=%+v ok=%v", dev, ok)
	}

	backend.deliver([]int16{math.MaxInt16, 0, 0, -math.MaxInt16, 7})
	snap := buf.Snapshot()
	want := []float32{1, 0, 0, -1, 0, 0, 0, 0}
	for i := range want {
		if snap[i] != want[i] {
			t.Fatalf("snapshot=%v want=%v", snap, want)
		}
	}
	if buf.Cursor() != 4 {
		t.Fatalf("cursor=%d want=4 (partial frame ignored)", buf.Cursor())
	}

	s.Stop()
	if err := waitErr(t, done); err != nil {
		t.Fatalf("Start returned %v", err)
	}

	got := backend.history()
	order := []string{"open", "start", "stop", "close"}
	if len(got) != len(order) {
		t.Fatalf("calls=%v want=%v", got, order)
	}
	for i := range order {
		if got[i] != order[i] {
			t.Fatalf("calls=%v want=%v", got, order)
		}
	}

	backend.deliver([]int16{math.MaxInt16, math.MaxInt16})
	if buf.Cursor() != 4 {
		t.Fatal("callback after teardown must not push")
	}
}

func TestSessionDeviceNameFilter(t *testing.T) {
	backend := newScriptedBackend(
		monitor("Monitor of HDMI"),
		Device{Index: 3, Name: "Monitor of USB Headset", MaxInput: 2, Loopback: true},
	)
	s := NewSession(SessionConfig{Backend: backend, Buffer: newBuffer(t, 2), DeviceName: "usb"})

	done := runSession(t, s)
	<-backend.started
	s.Stop()
	if err := waitErr(t, done); err != nil {
		t.Fatal(err)
	}
	if backend.opened == nil || backend.opened.Name != "Monitor of USB Headset" {
		t.Fatalf("opened=%+v want USB monitor", backend.opened)
	}
}

func TestSessionDeviceNameFilterNoMatch(t *testing.T) {
	backend := newScriptedBackend(monitor("Monitor of HDMI"))
	s := NewSession(SessionConfig{Backend: backend, Buffer: newBuffer(t, 2), DeviceName: "usb"})
	if err := s.Start(); !errors.Is(err, ErrNoLoopbackDevice) {
		t.Fatalf("err=%v want ErrNoLoopbackDevice", err)
	}
}

func TestSessionStartsOnce(t *testing.T) {
	backend := newScriptedBackend()
	s := NewSession(SessionConfig{Backend: backend, Buffer: newBuffer(t, 2)})
	_ = s.Start()
	if err := s.Start(); !errors.Is(err, ErrSessionStarted) {
		t.Fatalf("second Start err=%v want ErrSessionStarted", err)
	}
}

func TestStopBeforeStartTearsDownImmediately(t *testing.T) {
	backend := newScriptedBackend(monitor("loopback"))
	s := NewSession(SessionConfig{Backend: backend, Buffer: newBuffer(t, 2)})
	s.Stop()
	s.Stop()
	if err := waitErr(t, runSession(t, s)); err != nil {
		t.Fatal(err)
	}
	if h := backend.history(); len(h) != 4 || h[3] != "close" {
		t.Fatalf("calls=%v", h)
	}
}

func TestSyntheticSession(t *testing.T) {
	buf := newBuffer(t, 512)
	s := NewSession(SessionConfig{Backend: NewSynthetic(), Buffer: buf, PollInterval: time.Millisecond})
	done := runSession(t, s)

	deadline := time.Now().Add(2 * time.Second)
	for buf.Cursor() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	if err := waitErr(t, done); err != nil {
		t.Fatal(err)
	}

	cursor := buf.Cursor()
	nonZero := false
	for _, v := range buf.Snapshot() {
		if v < -1 || v > 1 {
			t.Fatalf("sample %f outside [-1, 1]", v)
		}
		if v != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Fatal("synthetic device produced no samples")
	}
	time.Sleep(20 * time.Millisecond)
	if buf.Cursor() != cursor {
		t.Fatal("synthetic stream kept pushing after Start returned")
	}
}

func TestIsLoopbackName(t *testing.T) {
	cases := map[string]bool{
		"Monitor of Built-in Audio Analog Stereo": true,
		"Speakers (Realtek) [Loopback]":           true,
		"Stereo Mix (Realtek Audio)":              true,
		"BlackHole 2ch":                           true,
		"MacBook Pro Microphone":                  false,
		"USB Audio Device":                        false,
	}
	for name, want := range cases {
		if got := IsLoopbackName(name); got != want {
			t.Fatalf("IsLoopbackName(%q)=%v want=%v", name, got, want)
		}
	}
}

func TestSessionOpensFirstEnumeratedLoopback(t *testing.T) {
	pulse := Device{Index: 3, Name: "Monitor of Speakers", HostAPI: "PulseAudio", MaxInput: 2, Loopback: true}
	alsa := Device{Index: 5, Name: "Loopback PCM", HostAPI: "ALSA", MaxInput: 2, Loopback: true}
	backend := newScriptedBackend(mic(), pulse, alsa)
	s := NewSession(SessionConfig{Backend: backend, Buffer: newBuffer(t, 4), PollInterval: time.Millisecond})

	done := runSession(t, s)
	<-backend.started
	s.Stop()
	if err := waitErr(t, done); err != nil {
		t.Fatal(err)
	}
	if backend.opened == nil || backend.opened.Index != pulse.Index {
		t.Fatalf("opened=%+v want %q", backend.opened, pulse.Name)
	}

	// Display order is by host then name and must not leak into selection.
	listed := []Device{pulse, alsa}
	SortForDisplay(listed)
	if listed[0].Name != alsa.Name || listed[1].Name != pulse.Name {
		t.Fatalf("display order=%q,%q", listed[0].Name, listed[1].Name)
	}
}

func TestPortAudioListDevices(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Skipf("PortAudio not available: %v", err)
	}
	defer Terminate()

	devices, err := PortAudio{}.Devices()
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	for _, d := range devices {
		if d.Loopback && d.MaxInput == 0 {
			t.Errorf("device %q flagged loopback without inputs", d.Name)
		}
		t.Logf("Device %d: %s [%s] loopback=%v", d.Index, d.Name, d.HostAPI, d.Loopback)
	}
}
