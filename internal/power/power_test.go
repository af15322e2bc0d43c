package power

import (
	"errors"
	"testing"
)

func TestMonitorDeliversChangesOnly(t *testing.T) {
	levels := []float64{0.8, 0.8, 0.7, 0.7, 0.3}
	var pos int
	read := func() (float64, error) {
		l := levels[pos]
		pos++
		return l, nil
	}

	var got []float64
	m := NewMonitor(read, func(level float64) { got = append(got, level) })

	for range levels {
		m.poll()
	}

	want := []float64{0.8, 0.7, 0.3}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivered[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMonitorClampsLevel(t *testing.T) {
	var got float64
	m := NewMonitor(
		func() (float64, error) { return 1.2, nil },
		func(level float64) { got = level },
	)
	m.poll()

	if got != 1 {
		t.Errorf("level = %v, want clamped to 1", got)
	}
}

func TestMonitorSkipsFailedReads(t *testing.T) {
	var calls int
	m := NewMonitor(
		func() (float64, error) { return 0, errors.New("no battery") },
		func(float64) { calls++ },
	)
	m.poll()

	if calls != 0 {
		t.Errorf("sink called %d times on read failure", calls)
	}
}
