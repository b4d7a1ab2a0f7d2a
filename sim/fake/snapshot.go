package fake

import (
	"hash/fnv"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/goregular"
)

// Default snapshot dimensions, in pixels.
const (
	DefaultSnapshotWidth  = 320
	DefaultSnapshotHeight = 240
)

// pixelsPerMeter is the scale of the top-down view.
const pixelsPerMeter = 24

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// colorFor derives a stable color from an object name.
func colorFor(name string) color.Color {
	h := fnv.New32a()
	//nolint:errcheck
	h.Write([]byte(name))
	return colorful.Hsv(float64(h.Sum32()%360), 0.6, 0.9)
}

// render draws the scene from above, centered on the origin. Called with mu held.
func (e *Environment) render() image.Image {
	dc := gg.NewContext(e.snapshotW, e.snapshotH)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: 9}))

	toPixel := func(x, y float64) (float64, float64) {
		return float64(e.snapshotW)/2 + x*pixelsPerMeter, float64(e.snapshotH)/2 - y*pixelsPerMeter
	}

	for _, b := range e.bodies {
		px, py := toPixel(b.Position.X, b.Position.Y)
		if box := boxOf(b); box != nil {
			x0, y0 := toPixel(box.Min.X, box.Max.Y)
			dims := box.Dims()
			dc.SetColor(colorFor(b.Name))
			dc.DrawRectangle(x0, y0, dims.X*pixelsPerMeter, dims.Y*pixelsPerMeter)
			dc.Fill()
		} else {
			dc.SetColor(colorFor(b.Name))
			dc.DrawCircle(px, py, 3)
			dc.Fill()
		}
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(b.Name, px, py, 0.5, 0.5)
	}

	ax, ay := toPixel(e.agent.X, e.agent.Y)
	dc.SetColor(color.RGBA{255, 0, 0, 255})
	dc.DrawCircle(ax, ay, 5)
	dc.Fill()
	return dc.Image()
}
