package thumbnail

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// IndeterminateTime is reported in place of a real capture time when
// the pipeline can no longer vouch for which frame a result relates
// to, which currently only happens when image conversion fails.
const IndeterminateTime = math.MaxFloat64

var (
	// ErrSeekInterrupted reports that the requested seek did not run
	// to completion, usually because the asset superseded or refused it.
	ErrSeekInterrupted = errors.New("seek interrupted before completion")
	// ErrFrameUnavailable reports that no decodable frame buffer could
	// be obtained for the sought time.
	ErrFrameUnavailable = errors.New("no frame buffer available for requested time")
	// ErrConvertFailed reports that a frame buffer was obtained but
	// could not be converted into a displayable image.
	ErrConvertFailed = errors.New("unable to convert frame buffer into image")
)

// Result is the outcome of one requested timestamp. Exactly one is
// delivered per enqueued timestamp, either an image with the time it
// was actually captured at, or a nil image with one of the three
// capture error kinds.
type Result struct {
	Image image.Image
	Time  float64
	Err   error
}

// ResultHandler receives results on the generator's delivery queue,
// in the same order their timestamps were enqueued.
type ResultHandler func(Result)

// BatchResultHandler additionally receives the originally requested
// time for every item of a batch, along with how many items of that
// batch are still outstanding after this one.
type BatchResultHandler func(requested float64, res Result, remaining int)
