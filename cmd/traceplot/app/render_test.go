package app

import (
	"image"
	"testing"
	"time"

	"motion-recorder/internal/sensor"
)

func buildTrace(t *testing.T) *TraceData {
	t.Helper()
	trace := NewTraceData()
	base := time.Now()
	for i := 0; i < 50; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Millisecond)
		trace.Update(sensor.Acceleration{X: float64(i%10) - 5, Z: 9.81, Wall: at})
		trace.Update(sensor.RotationRate{Alpha: float64(i % 7), Wall: at})
	}
	return trace
}

func TestTraceDataUpdate(t *testing.T) {
	trace := buildTrace(t)

	if got := trace.Points(); got != 100 {
		t.Errorf("Points = %d, want 100", got)
	}
	if trace.AccelBound != 9.81 {
		t.Errorf("AccelBound = %v, want 9.81", trace.AccelBound)
	}
	if trace.RotationBound != 6 {
		t.Errorf("RotationBound = %v, want 6", trace.RotationBound)
	}
	if got := trace.Duration(); got != 490*time.Millisecond {
		t.Errorf("Duration = %v, want 490ms", got)
	}

	// GPS fixes are not plotted.
	trace.Update(sensor.GpsFix{Latitude: 1, Longitude: 2, Accuracy: 3, Wall: time.Now()})
	if got := trace.Points(); got != 100 {
		t.Errorf("Points after GPS = %d, want 100", got)
	}
}

func TestRendererRender(t *testing.T) {
	img, err := NewRenderer(400, 200).Render(buildTrace(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if got := img.Bounds(); got != image.Rect(0, 0, 400, 200) {
		t.Fatalf("bounds = %v", got)
	}

	// Both panels must contain trace pixels that are neither
	// background nor grid.
	for _, panel := range []image.Rectangle{
		image.Rect(0, 0, 400, 100),
		image.Rect(0, 100, 400, 200),
	} {
		var found bool
		for y := panel.Min.Y; y < panel.Max.Y && !found; y++ {
			for x := panel.Min.X; x < panel.Max.X; x++ {
				if c := img.RGBAAt(x, y); c != background && c != gridColor {
					found = true
					break
				}
			}
		}
		if !found {
			t.Errorf("panel %v contains no trace pixels", panel)
		}
	}
}

func TestRendererRejectsEmptyTrace(t *testing.T) {
	if _, err := NewRenderer(400, 200).Render(NewTraceData()); err == nil {
		t.Error("rendering an empty trace succeeded")
	}
}
