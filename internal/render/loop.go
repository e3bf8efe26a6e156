package render

import (
	"context"
	"errors"
)

// Source is what the loop snapshots each frame.
type Source interface {
	SnapshotInto(dst []float32) []float32
	Cap() int
}

// FrameObserver is told about frame boundaries; used for profiling and FPS.
type FrameObserver interface {
	BeginFrame()
	MarkSection(name string)
	EndFrame(points []float32)
}

// Options tunes Run.
type Options struct {
	Observer FrameObserver
}

// Run draws src on surface once per frame until the surface asks to close,
// ctx is cancelled, or drawing fails. It never waits on the writer of src;
// a frame built from torn or stale data is drawn as is.
//
// A quit reported through ErrRendererQuit ends the loop without error.
func Run(ctx context.Context, surface Surface, src Source, opts Options) error {
	points := make([]float32, src.Cap())
	obs := opts.Observer

	for !surface.ShouldClose() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if obs != nil {
			obs.BeginFrame()
		}

		points = src.SnapshotInto(points)
		if obs != nil {
			obs.MarkSection("snapshot")
		}

		if err := surface.Draw(points); err != nil {
			if errors.Is(err, ErrRendererQuit) {
				return nil
			}
			return err
		}
		if obs != nil {
			obs.MarkSection("draw")
		}

		surface.PollEvents()
		if obs != nil {
			obs.MarkSection("events")
			obs.EndFrame(points)
		}
	}
	return nil
}
