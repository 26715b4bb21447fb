package thumbnail

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/framegrab/pkg/log"
	"github.com/tauraamui/framegrab/pkg/videobackend"
)

// DefaultSettleDelay is how long the pipeline waits after a completed
// seek before copying a frame. Decoders tend to report seek completion
// slightly ahead of the frame buffer for that exact time actually
// existing, the delay is a best effort mitigation rather than a
// guarantee and can be tuned per decoder via WithSettleDelay.
const DefaultSettleDelay = 300 * time.Millisecond

type request struct {
	at      float64
	deliver ResultHandler
}

// Generator extracts still thumbnails from a single video asset at
// caller requested timestamps, strictly one seek/capture/convert
// cycle at a time, in FIFO order. It owns its collaborators for its
// whole lifetime and tears them down on Close.
type Generator struct {
	uuid        string
	asset       videobackend.Asset
	converter   videobackend.Converter
	region      image.Rectangle
	settleDelay time.Duration

	work    *serialQueue
	results *serialQueue

	mu       sync.Mutex
	ready    readiness
	pending  []request
	draining bool
}

type Option func(*Generator)

// WithSettleDelay overrides the pause between seek completion and
// frame capture.
func WithSettleDelay(d time.Duration) Option {
	return func(g *Generator) {
		g.settleDelay = d
	}
}

// WithRegion restricts conversion to a sub region of each captured
// frame. The zero rectangle converts the full frame.
func WithRegion(r image.Rectangle) Option {
	return func(g *Generator) {
		g.region = r
	}
}

func New(asset videobackend.Asset, converter videobackend.Converter, opts ...Option) *Generator {
	g := Generator{
		uuid:        uuid.NewString(),
		asset:       asset,
		converter:   converter,
		settleDelay: DefaultSettleDelay,
		work:        newSerialQueue(),
		results:     newSerialQueue(),
	}
	for _, opt := range opts {
		opt(&g)
	}
	asset.Notify(g.onStatusChanged)
	return &g
}

func (g *Generator) UUID() string { return g.uuid }

// onStatusChanged gates all capture work on the asset having loaded.
// Timestamps enqueued beforehand are kept and begin draining on the
// single loading to ready transition.
func (g *Generator) onStatusChanged(s videobackend.Status) {
	g.mu.Lock()
	transitioned := g.ready.observe(s)
	start := transitioned && len(g.pending) > 0 && !g.draining
	if start {
		g.draining = true
	}
	g.mu.Unlock()

	if transitioned {
		log.Debug("generator [%s] asset became ready", g.uuid)
	}
	if start {
		g.work.do(g.drainNext)
	}
}

// Enqueue appends the given timestamps to the pending queue in the
// order given, associating each with the handler for this call. It
// is safe to call from any goroutine, including while a previous
// batch is still draining. Timestamps are not validated or clamped,
// out of range values are left for the asset's seek to reject.
func (g *Generator) Enqueue(times []float64, deliver ResultHandler) {
	if len(times) == 0 {
		return
	}

	g.mu.Lock()
	for _, at := range times {
		g.pending = append(g.pending, request{at: at, deliver: deliver})
	}
	start := g.ready.isReady() && !g.draining
	if start {
		g.draining = true
	}
	g.mu.Unlock()

	if start {
		g.work.do(g.drainNext)
	}
}

// GenerateSingle requests one thumbnail at the given time.
func (g *Generator) GenerateSingle(at float64, deliver ResultHandler) {
	g.Enqueue([]float64{at}, deliver)
}

// GenerateBatch requests a thumbnail per given time, reporting each
// item's outcome against its originally requested time plus how many
// of the batch remain outstanding.
func (g *Generator) GenerateBatch(times []float64, deliver BatchResultHandler) {
	if len(times) == 0 {
		return
	}

	batchID := uuid.NewString()
	requested := append([]float64(nil), times...)

	// results for one handler arrive serially and in enqueue order
	// on the delivery queue, so a plain cursor is safe here
	i := 0
	g.Enqueue(requested, func(res Result) {
		at := requested[i]
		i++
		remaining := len(requested) - i
		log.Debug("generator [%s] batch [%s] delivered %d of %d", g.uuid, batchID, i, len(requested))
		deliver(at, res, remaining)
	})
}

// drainNext runs on the work queue. It pops the earliest pending
// timestamp and carries it through one full seek, settle, capture,
// convert, deliver cycle before looping around, so at most one cycle
// is ever in flight.
func (g *Generator) drainNext() {
	g.mu.Lock()
	if len(g.pending) == 0 {
		g.draining = false
		g.mu.Unlock()
		return
	}
	req := g.pending[0]
	g.pending = g.pending[1:]
	g.mu.Unlock()

	g.asset.Seek(req.at, 0, 0, func(finished bool) {
		g.work.do(func() { g.seekDone(req, finished) })
	})
}

func (g *Generator) seekDone(req request, finished bool) {
	if !finished {
		log.Warn("generator [%s] seek to %.3fs interrupted, abandoning", g.uuid, req.at)
		g.dispatch(req.deliver, Result{Time: req.at, Err: ErrSeekInterrupted})
		g.drainNext()
		return
	}

	time.AfterFunc(g.settleDelay, func() {
		g.work.do(func() { g.capture(req) })
	})
}

func (g *Generator) capture(req request) {
	defer g.drainNext()

	frame, err := g.asset.CopyFrame(req.at)
	if err != nil {
		log.Warn("generator [%s] no frame buffer at %.3fs: %v", g.uuid, req.at, err)
		g.dispatch(req.deliver, Result{Time: req.at, Err: ErrFrameUnavailable})
		return
	}
	defer frame.Close()

	img, err := g.converter.Convert(frame, g.region)
	if err != nil {
		log.Warn("generator [%s] convert failed for frame near %.3fs: %v", g.uuid, req.at, err)
		g.dispatch(req.deliver, Result{Time: IndeterminateTime, Err: ErrConvertFailed})
		return
	}

	g.dispatch(req.deliver, Result{Image: img, Time: frame.Timestamp()})
}

func (g *Generator) dispatch(deliver ResultHandler, res Result) {
	g.results.do(func() { deliver(res) })
}

// Close tears down both dispatch queues and the asset. Timestamps
// still pending when Close is called are discarded without delivery.
func (g *Generator) Close() error {
	g.work.close()
	g.results.close()
	return g.asset.Close()
}
