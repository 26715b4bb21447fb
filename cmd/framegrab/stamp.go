package main

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/framegrab/pkg/thumbnail"
	"github.com/tauraamui/xerror"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// stampTimeLabel draws the achieved capture time into the top left
// corner of the thumbnail. An indeterminate time stamps a literal
// marker instead of a number.
func stampTimeLabel(src image.Image, at float64) (image.Image, error) {
	label := fmt.Sprintf("%.3fs", at)
	if at == thumbnail.IndeterminateTime {
		label = "??.???s"
	}

	b := src.Bounds()
	canvas := image.NewRGBA(b)
	draw.Draw(canvas, b, src, b.Min, draw.Src)

	if err := drawText(canvas, 5, 30, label); err != nil {
		return nil, xerror.Errorf("unable to stamp time label onto thumbnail: %w", err)
	}
	return canvas, nil
}

func drawText(canvas *image.RGBA, x, y int, text string) error {
	var (
		fgColor  image.Image
		fontFace *truetype.Font
		err      error
		fontSize = 24.0
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
