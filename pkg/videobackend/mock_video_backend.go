package videobackend

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"github.com/tauraamui/framegrab/pkg/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

type mockVideoBackend struct{}

func (b *mockVideoBackend) Open(cancel context.Context, addr string) (Asset, error) {
	asset := mockVideoAsset{addr: addr}
	// readiness arrives async just like a real load would
	go asset.becomeReady()
	return &asset, nil
}

func (b *mockVideoBackend) NewConverter() Converter {
	return openCVConverter{}
}

type mockVideoAsset struct {
	addr                    string
	uuid                    string
	mu                      sync.Mutex
	status                  Status
	observers               []func(Status)
	playhead                float64
	renderedBaseFrameCanvas bool
	baseFrameCanvas         image.Image
}

func (mva *mockVideoAsset) becomeReady() {
	mva.mu.Lock()
	mva.status = StatusReady
	observers := append([]func(Status){}, mva.observers...)
	mva.mu.Unlock()
	for _, observe := range observers {
		observe(StatusReady)
	}
}

func (mva *mockVideoAsset) UUID() string {
	if len(mva.uuid) == 0 {
		mva.uuid = uuid.NewString()
	}
	return mva.uuid
}

func (mva *mockVideoAsset) Status() Status {
	mva.mu.Lock()
	defer mva.mu.Unlock()
	return mva.status
}

func (mva *mockVideoAsset) Notify(observe func(Status)) {
	mva.mu.Lock()
	mva.observers = append(mva.observers, observe)
	ready := mva.status == StatusReady
	mva.mu.Unlock()
	if ready {
		observe(StatusReady)
	}
}

func (mva *mockVideoAsset) Seek(to, toleranceBefore, toleranceAfter float64, done func(finished bool)) {
	mva.mu.Lock()
	mva.playhead = to
	mva.mu.Unlock()
	done(true)
}

func (mva *mockVideoAsset) CopyFrame(at float64) (videoframe.Frame, error) {
	mva.mu.Lock()
	playhead := mva.playhead
	if !mva.renderedBaseFrameCanvas {
		mva.baseFrameCanvas = renderBaseFrameCanvas()
		mva.renderedBaseFrameCanvas = true
	}
	base := mva.baseFrameCanvas
	mva.mu.Unlock()

	img, err := drawTextLayerOntoBaseFrameClone(base, mva.addr, playhead)
	if err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, xerror.Errorf("unable to convert Go image into OpenCV mat: %w", err)
	}

	return &openCVFrame{mat: mat, timestamp: playhead}, nil
}

func (mva *mockVideoAsset) Close() error {
	mva.mu.Lock()
	defer mva.mu.Unlock()
	mva.renderedBaseFrameCanvas = false
	mva.baseFrameCanvas = nil
	return nil
}

func drawTextLayerOntoBaseFrameClone(base image.Image, addr string, at float64) (image.Image, error) {
	baseClone := cloneImage(base)
	err := drawText(baseClone, 5, 50, "FG_MOCK_STREAM")
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem mock frame: %w", err)
	}

	err = drawText(baseClone, 5, 180, addr)
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem mock frame: %w", err)
	}
	err = drawText(baseClone, 5, 310, fmt.Sprintf("%.3fs", at))
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem mock frame: %w", err)
	}
	return baseClone, nil
}

func renderBaseFrameCanvas() image.Image {
	var w, h int = 600, 400
	var hw, hh float64 = float64(w / 2), float64(h / 2)
	r := 200.0
	θ := 2 * math.Pi / 3
	cr := &circle{hw - r*math.Sin(0), hh - r*math.Cos(0), 300}
	cg := &circle{hw - r*math.Sin(θ), hh - r*math.Cos(θ), 300}
	cb := &circle{hw - r*math.Sin(-θ), hh - r*math.Cos(-θ), 300}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			c := color.RGBA{
				cr.Brightness(float64(x), float64(y)),
				cg.Brightness(float64(x), float64(y)),
				cb.Brightness(float64(x), float64(y)),
				255,
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func drawText(canvas *image.RGBA, x, y int, text string) error {
	var (
		fgColor  image.Image
		fontFace *truetype.Font
		err      error
		fontSize = 64.0
	)
	fgColor = image.White
	fontFace, err = freetype.ParseFont(goregular.TTF)
	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: fgColor,
		Face: truetype.NewFace(fontFace, &truetype.Options{
			Size:    fontSize,
			Hinting: font.HintingFull,
		}),
	}
	textBounds, _ := fontDrawer.BoundString(text)
	textHeight := textBounds.Max.Y - textBounds.Min.Y
	yPosition := fixed.I((y)-textHeight.Ceil())/2 + fixed.I(textHeight.Ceil())
	fontDrawer.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: yPosition,
	}
	fontDrawer.DrawString(text)
	return err
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	d := math.Sqrt(dx*dx+dy*dy) / c.R
	if d > 1 {
		return 0
	}
	return 255
}
