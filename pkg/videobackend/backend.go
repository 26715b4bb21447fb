package videobackend

import (
	"context"
	"image"

	"github.com/tauraamui/framegrab/pkg/videoframe"
)

// Status reports how far along an asset is with loading. An asset
// starts off loading and becomes ready at most once, it never
// reverts back to loading again.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
)

func (s Status) String() string {
	if s == StatusReady {
		return "ready"
	}
	return "loading"
}

// Asset represents an open media source which frames can be
// captured from once it has finished loading.
type Asset interface {
	UUID() string
	Status() Status
	// Notify registers a callback to invoke on every status change.
	// If the asset is already ready the callback fires immediately.
	Notify(func(Status))
	// Seek requests a playhead move to the given time in seconds.
	// Zero tolerances request an exact-time biased seek. The done
	// callback receives false if the seek did not run to completion.
	Seek(to, toleranceBefore, toleranceAfter float64, done func(finished bool))
	// CopyFrame returns the most recent decoded frame at or near
	// the given time, or an error if none is available.
	CopyFrame(at float64) (videoframe.Frame, error)
	Close() error
}

// Converter turns raw decoded frames into displayable images. A
// zero region converts the full frame.
type Converter interface {
	Convert(frame videoframe.Frame, region image.Rectangle) (image.Image, error)
}

type Backend interface {
	// Open resolves the given address into an asset without blocking
	// on the load itself, readiness arrives via Asset.Notify.
	Open(context.Context, string) (Asset, error)
	NewConverter() Converter
}

func Default() Backend {
	return OpenCV()
}

func OpenCV() Backend {
	return &openCVBackend{}
}

func Mock() Backend {
	return &mockVideoBackend{}
}

func Resolve(t string) Backend {
	switch t {
	case "mock":
		return Mock()
	default:
		return Default()
	}
}
