package audio

// Format is the capture format requested from a backend. Samples are always
// signed 16-bit and interleaved.
type Format struct {
	Channels   int
	SampleRate float64
}

const (
	// StereoChannels is the only channel count the capture path uses.
	StereoChannels = 2
	// DefaultSampleRate is the fixed rate every capture stream is opened at.
	DefaultSampleRate = 48000
)

// Backend is the audio subsystem boundary the capture session drives.
type Backend interface {
	// Devices lists the endpoints the backend knows about, including
	// output-only ones; callers filter on MaxInput and Loopback.
	Devices() ([]Device, error)

	// OpenStream opens an input stream on dev. process receives interleaved
	// frames on a thread owned by the backend and must not block.
	OpenStream(dev Device, format Format, process func(in []int16)) (Stream, error)
}

// Stream is an open capture stream.
type Stream interface {
	Start() error
	// Stop halts delivery and waits for any in-flight callback to return.
	Stop() error
	Close() error
}
