package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio keeps process-wide state, so every user shares one reference
// counted initialization.
var lifetime struct {
	mu   sync.Mutex
	refs int
}

// Initialize brings PortAudio up on first use. Each successful call must be
// balanced by a Terminate.
func Initialize() error {
	lifetime.mu.Lock()
	defer lifetime.mu.Unlock()

	if lifetime.refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("%w: portaudio: %w", ErrInitialization, err)
		}
	}
	lifetime.refs++
	return nil
}

// Terminate releases one reference and shuts PortAudio down with the last
// one. Streams opened through the PortAudio backend must be closed first.
// Extra calls are ignored.
func Terminate() {
	lifetime.mu.Lock()
	defer lifetime.mu.Unlock()

	if lifetime.refs == 0 {
		return
	}
	lifetime.refs--
	if lifetime.refs == 0 {
		_ = portaudio.Terminate()
	}
}
