package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

var (
	background = color.RGBA{R: 16, G: 16, B: 24, A: 255}
	gridColor  = color.RGBA{R: 64, G: 64, B: 72, A: 255}

	axisColors = [3]color.RGBA{
		{R: 235, G: 94, B: 82, A: 255},  // X / alpha
		{R: 106, G: 209, B: 115, A: 255}, // Y / beta
		{R: 99, G: 155, B: 255, A: 255}, // Z / gamma
	}
)

// Renderer draws a recording's motion traces as two stacked panels:
// acceleration on top, rotation rate below.
type Renderer struct {
	width, height int
}

func NewRenderer(width, height int) *Renderer {
	return &Renderer{width: width, height: height}
}

func (r *Renderer) Render(trace *TraceData) (*image.RGBA, error) {
	if trace.Points() == 0 {
		return nil, fmt.Errorf("recording has no motion readings to plot")
	}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	panelHeight := r.height / 2
	top := image.Rect(0, 0, r.width, panelHeight)
	bottom := image.Rect(0, panelHeight, r.width, r.height)

	r.renderPanel(img, top, trace, trace.Accel, trace.AccelBound)
	r.renderPanel(img, bottom, trace, trace.Rotation, trace.RotationBound)

	return img, nil
}

func (r *Renderer) renderPanel(img *image.RGBA, panel image.Rectangle, trace *TraceData, samples []axisSample, bound float64) {
	// Zero line through the panel middle.
	mid := panel.Min.Y + panel.Dy()/2
	for x := panel.Min.X; x < panel.Max.X; x++ {
		img.SetRGBA(x, mid, gridColor)
	}

	if len(samples) == 0 || bound == 0 {
		return
	}

	span := trace.End.Sub(trace.Start)
	if span <= 0 {
		span = 1
	}

	// Leave headroom so peaks do not touch the panel edge.
	scale := float64(panel.Dy()) / 2 * 0.9 / bound

	for axis := 0; axis < 3; axis++ {
		prevX, prevY := -1, 0
		for _, s := range samples {
			x := panel.Min.X + int(float64(panel.Dx()-1)*float64(s.At.Sub(trace.Start))/float64(span))
			y := mid - int(s.Values[axis]*scale)

			if prevX >= 0 {
				drawSegment(img, prevX, prevY, x, y, axisColors[axis])
			}
			prevX, prevY = x, y
		}
	}
}

// drawSegment draws a straight line between two points using integer
// DDA stepping. Trace segments are short, so this stays cheap.
func drawSegment(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := x1-x0, y1-y0
	steps := max(absInt(dx), absInt(dy))
	if steps == 0 {
		img.SetRGBA(x0, y0, c)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + dx*i/steps
		y := y0 + dy*i/steps
		img.SetRGBA(x, y, c)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
