package audio

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	syntheticDeviceName = "Synthetic Lissajous (loopback)"
	syntheticBlock      = 256
)

// Synthetic is a Backend without hardware. Its single loopback device plays a
// slowly drifting Lissajous figure with a little noise, which is handy for
// checking the renderers.
type Synthetic struct{}

// NewSynthetic returns the synthetic backend.
func NewSynthetic() Synthetic { return Synthetic{} }

// Devices returns the one synthetic loopback endpoint.
func (Synthetic) Devices() ([]Device, error) {
	return []Device{{
		Index:           0,
		Name:            syntheticDeviceName,
		HostAPI:         "synthetic",
		MaxInput:        StereoChannels,
		DefaultSampleHz: DefaultSampleRate,
		DefaultLatency:  syntheticBlock * time.Second / DefaultSampleRate,
		IsDefaultInput:  true,
		Loopback:        true,
	}}, nil
}

// OpenStream returns a stream that calls process from its own goroutine in
// blocks of syntheticBlock frames, paced to the sample rate.
func (Synthetic) OpenStream(dev Device, format Format, process func(in []int16)) (Stream, error) {
	if format.Channels != StereoChannels {
		return nil, errors.New("synthetic device only supports stereo")
	}
	rate := format.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &syntheticStream{
		gen:     newLissajous(rate),
		process: process,
		period:  time.Duration(float64(syntheticBlock) / rate * float64(time.Second)),
	}, nil
}

type syntheticStream struct {
	gen     *lissajous
	process func(in []int16)
	period  time.Duration

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	closed  bool
}

func (s *syntheticStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("synthetic stream closed")
	}
	if s.running {
		return nil
	}
	s.running = true
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.done)
	return nil
}

func (s *syntheticStream) run(done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	block := make([]int16, syntheticBlock*StereoChannels)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.gen.fill(block)
			s.process(block)
		}
	}
}

// Stop waits for the generator goroutine, so no callback runs after it returns.
func (s *syntheticStream) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *syntheticStream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type lissajous struct {
	rng        *rand.Rand
	sampleRate float64
	phaseLeft  float64
	phaseRight float64
	drift      float64
}

func newLissajous(sampleRate float64) *lissajous {
	return &lissajous{
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sampleRate: sampleRate,
	}
}

func (l *lissajous) fill(block []int16) {
	const (
		baseHz    = 220.0
		ratio     = 1.5
		driftHz   = 0.05
		amplitude = 0.8
		noise     = 0.01
	)
	step := 2 * math.Pi / l.sampleRate
	for i := 0; i+1 < len(block); i += StereoChannels {
		l.drift += step * driftHz
		l.phaseLeft += step * baseHz
		l.phaseRight += step * baseHz * ratio

		left := amplitude*math.Sin(l.phaseLeft) + (l.rng.Float64()*2-1)*noise
		right := amplitude*math.Sin(l.phaseRight+l.drift) + (l.rng.Float64()*2-1)*noise
		block[i] = toInt16(left)
		block[i+1] = toInt16(right)
	}
	l.phaseLeft = math.Mod(l.phaseLeft, 2*math.Pi)
	l.phaseRight = math.Mod(l.phaseRight, 2*math.Pi)
	l.drift = math.Mod(l.drift, 2*math.Pi)
}

func toInt16(v float64) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * math.MaxInt16)
}
