package videobackend

import (
	"context"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/framegrab/pkg/log"
	"github.com/tauraamui/framegrab/pkg/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type openCVFrame struct {
	isClosed  bool
	mat       gocv.Mat
	timestamp float64
}

func (frame *openCVFrame) Timestamp() float64 { return frame.timestamp }

func (frame *openCVFrame) DataRef() interface{} {
	return &frame.mat
}

func (frame *openCVFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: frame.mat.Cols(), H: frame.mat.Rows()}
}

func (frame *openCVFrame) Close() {
	if !frame.isClosed {
		frame.mat.Close()
		frame.isClosed = true
	}
}

type openCVBackend struct{}

func (b *openCVBackend) Open(cancel context.Context, addr string) (Asset, error) {
	asset := openCVAsset{addr: addr}
	asset.open(cancel)
	return &asset, nil
}

func (b *openCVBackend) NewConverter() Converter {
	return openCVConverter{}
}

type openCVConverter struct{}

func (c openCVConverter) Convert(frame videoframe.Frame, region image.Rectangle) (image.Image, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, xerror.New("must pass OpenCV frame to OpenCV converter")
	}

	if mat.Empty() {
		return nil, xerror.New("cannot convert empty frame matrix")
	}

	if !region.Empty() {
		sub := mat.Region(region)
		defer sub.Close()
		return sub.ToImage()
	}

	return mat.ToImage()
}

type openCVAsset struct {
	addr      string
	uuid      string
	mu        sync.Mutex
	status    Status
	observers []func(Status)
	vc        *gocv.VideoCapture
}

type openVideoStreamResult struct {
	vc  *gocv.VideoCapture
	err error
}

func openVideoStream(addr string, d chan openVideoStreamResult) {
	vc, err := openVideoCapture(addr)
	result := openVideoStreamResult{vc: vc, err: err}
	d <- result
}

var openVideoCapture = func(addr string) (*gocv.VideoCapture, error) {
	return gocv.OpenVideoCapture(addr)
}

var readFromVideoConnection = func(vc *gocv.VideoCapture, mat *gocv.Mat) bool {
	if vc.IsOpened() {
		return vc.Read(mat)
	}
	return false
}

// open resolves the capture on a background goroutine, the asset
// reports ready via its registered observers once the stream has
// actually opened.
func (a *openCVAsset) open(cancel context.Context) {
	connAndError := make(chan openVideoStreamResult)
	go openVideoStream(a.addr, connAndError)
	go func() {
		select {
		case r := <-connAndError:
			if r.err != nil {
				log.Error("unable to open video source [%s]: %v", a.addr, r.err)
				return
			}
			a.mu.Lock()
			a.vc = r.vc
			a.status = StatusReady
			observers := append([]func(Status){}, a.observers...)
			a.mu.Unlock()
			for _, observe := range observers {
				observe(StatusReady)
			}
		case <-cancel.Done():
			log.Warn("opening video source [%s] cancelled", a.addr)
		}
	}()
}

func (a *openCVAsset) UUID() string {
	if len(a.uuid) == 0 {
		a.uuid = uuid.NewString()
	}
	return a.uuid
}

func (a *openCVAsset) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *openCVAsset) Notify(observe func(Status)) {
	a.mu.Lock()
	a.observers = append(a.observers, observe)
	ready := a.status == StatusReady
	a.mu.Unlock()
	if ready {
		observe(StatusReady)
	}
}

func (a *openCVAsset) Seek(to, toleranceBefore, toleranceAfter float64, done func(finished bool)) {
	a.mu.Lock()
	vc := a.vc
	a.mu.Unlock()

	if vc == nil || !vc.IsOpened() {
		done(false)
		return
	}

	// OpenCV position seeks are already exact-time biased, the
	// tolerances only exist to satisfy the collaborator contract
	vc.Set(gocv.VideoCapturePosMsec, to*1000)
	done(true)
}

func (a *openCVAsset) CopyFrame(at float64) (videoframe.Frame, error) {
	a.mu.Lock()
	vc := a.vc
	a.mu.Unlock()

	if vc == nil {
		return nil, xerror.New("no open video source to copy frame from")
	}

	frame := openCVFrame{mat: gocv.NewMat()}
	if ok := readFromVideoConnection(vc, &frame.mat); !ok {
		frame.Close()
		return nil, xerror.Errorf("unable to read frame near %fs from video source", at)
	}

	frame.timestamp = vc.Get(gocv.VideoCapturePosMsec) / 1000
	return &frame, nil
}

func (a *openCVAsset) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.vc == nil {
		return nil
	}
	return a.vc.Close()
}
