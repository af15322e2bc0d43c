package app

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"

	"motion-recorder/internal/storage"
)

const (
	dpi     float64 = 72
	size    float64 = 14
	spacing float64 = 1.1
)

type Annotator struct {
	context *freetype.Context
}

// NewAnnotator loads a TTF font from the given path and prepares a
// drawing context for it.
func NewAnnotator(fontPath string) (*Annotator, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context}, nil
}

func (a *Annotator) Annotate(img *image.RGBA, trace *TraceData, rec *storage.Recording) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *TraceData, *storage.Recording) error
	}{
		{"drawing time scale", a.drawTimeScale},
		{"drawing value scales", a.drawValueScales},
		{"drawing info", a.drawInfo},
	}
	for _, op := range ops {
		if err := op.fn(img, trace, rec); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *Annotator) drawTimeScale(img *image.RGBA, trace *TraceData, _ *storage.Recording) error {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	count := width / 250
	if count == 0 {
		return nil
	}
	secsPerLabel := trace.Duration().Seconds() / float64(count)
	pxPerLabel := width / count

	for si := 0; si < count; si++ {
		at := trace.Start.Add(time.Duration(secsPerLabel*float64(si)) * time.Second)
		px := si * pxPerLabel

		// draw a guideline on the exact time
		for i := height - 30; i < height; i++ {
			img.Set(px, i, image.White)
		}

		pt := freetype.Pt(px+5, height-8)
		if _, err := a.context.DrawString(at.Format("15:04:05"), pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawValueScales(img *image.RGBA, trace *TraceData, _ *storage.Recording) error {
	panelHeight := img.Bounds().Dy() / 2

	panels := []struct {
		label string
		unit  string
		bound float64
		top   int
	}{
		{"acceleration", "m/s²", trace.AccelBound, 0},
		{"rotation rate", "°/s", trace.RotationBound, panelHeight},
	}

	for _, p := range panels {
		fract, suffix := humanize.ComputeSI(p.bound)
		label := fmt.Sprintf("%s ±%0.2f %s%s", p.label, fract, suffix, p.unit)

		pt := freetype.Pt(5, p.top+int(size)+4)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *Annotator) drawInfo(img *image.RGBA, trace *TraceData, rec *storage.Recording) error {
	lines := []string{
		fmt.Sprintf("Recording %d, started %s", rec.ID, rec.StartedAt.Local().Format(time.DateTime)),
		fmt.Sprintf("%s readings over %s", humanize.Comma(int64(trace.Points())), trace.Duration().Truncate(time.Second)),
	}

	imgSize := img.Bounds().Size()
	top := imgSize.Y/2 + int(size) + 4
	scaledSize := size * spacing
	lineHeight := int(scaledSize)

	for i, line := range lines {
		pt := freetype.Pt(imgSize.X-350, top+i*lineHeight)
		if _, err := a.context.DrawString(line, pt); err != nil {
			return err
		}
	}

	return nil
}
