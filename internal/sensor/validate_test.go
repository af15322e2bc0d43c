package sensor

import (
	"math"
	"testing"
	"time"
)

func TestValidateAcceleration(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		x, y, z float64
		want    bool
	}{
		{"at rest", 0.01, -0.02, 9.81, true},
		{"upper bound", 50, 50, 50, true},
		{"x out of range", 51, 0, 9.81, false},
		{"negative out of range", 0, -50.5, 9.81, false},
		{"NaN axis", math.NaN(), 0, 9.81, false},
		{"positive infinity", 0, math.Inf(1), 9.81, false},
		{"negative infinity", 0, 0, math.Inf(-1), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Acceleration{X: tc.x, Y: tc.y, Z: tc.z, Wall: now}
			if got := Validate(r); got != tc.want {
				t.Errorf("Validate(%+v) = %v, want %v", r, got, tc.want)
			}
		})
	}
}

func TestValidateRotationRate(t *testing.T) {
	tests := []struct {
		name                string
		alpha, beta, gamma  float64
		want                bool
	}{
		{"slow rotation", 10, -5, 0.5, true},
		{"upper bound", 2000, -2000, 2000, true},
		{"alpha out of range", 2001, 0, 0, false},
		{"NaN", 0, math.NaN(), 0, false},
		{"infinity", 0, 0, math.Inf(1), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := RotationRate{Alpha: tc.alpha, Beta: tc.beta, Gamma: tc.gamma}
			if got := Validate(r); got != tc.want {
				t.Errorf("Validate(%+v) = %v, want %v", r, got, tc.want)
			}
		})
	}
}

func TestValidateGpsFix(t *testing.T) {
	alt := 120.5
	badAlt := math.NaN()
	speed := 1.4

	tests := []struct {
		name string
		fix  GpsFix
		want bool
	}{
		{"minimal fix", GpsFix{Latitude: -33.86, Longitude: 151.2, Accuracy: 5}, true},
		{"full fix", GpsFix{Latitude: -33.86, Longitude: 151.2, Accuracy: 5, Altitude: &alt, Speed: &speed}, true},
		{"NaN latitude", GpsFix{Latitude: math.NaN(), Longitude: 151.2, Accuracy: 5}, false},
		{"infinite accuracy", GpsFix{Latitude: -33.86, Longitude: 151.2, Accuracy: math.Inf(1)}, false},
		{"NaN optional altitude", GpsFix{Latitude: -33.86, Longitude: 151.2, Accuracy: 5, Altitude: &badAlt}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(tc.fix); got != tc.want {
				t.Errorf("Validate(%+v) = %v, want %v", tc.fix, got, tc.want)
			}
		})
	}
}

// Validate is a pure predicate: same input, same answer, no mutation.
func TestValidateDeterministic(t *testing.T) {
	r := Acceleration{X: 1.5, Y: -2.5, Z: 9.81}
	for i := 0; i < 3; i++ {
		if !Validate(r) {
			t.Fatalf("Validate flipped on call %d", i+1)
		}
	}

	bad := RotationRate{Alpha: math.NaN()}
	for i := 0; i < 3; i++ {
		if Validate(bad) {
			t.Fatalf("Validate accepted NaN on call %d", i+1)
		}
	}
}
