// Package analytics provides the statistics the detectors and reports are built on.
// Every function is pure and takes a window of samples oldest first; degenerate
// inputs return 0 instead of NaN or Inf.
package analytics

import (
	"math"

	"github.com/soltixdb/telewatch/internal/models"
)

// Window is a chronologically ordered run of samples of one metric
type Window = []models.Sample

// Values extracts just the values from the window
func Values(w Window) []float64 {
	values := make([]float64, len(w))
	for i, s := range w {
		values[i] = s.Value
	}
	return values
}

// Mean calculates the mean of all values, 0 for an empty window
func Mean(w Window) float64 {
	if len(w) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range w {
		sum += s.Value
	}
	return sum / float64(len(w))
}

// StdDev calculates the population standard deviation, 0 for fewer than 2 points.
// Values are shifted by the first sample so a constant window yields exactly 0.
func StdDev(w Window) float64 {
	if len(w) < 2 {
		return 0
	}
	shift := w[0].Value
	var sum, sumSq float64
	for _, s := range w {
		d := s.Value - shift
		sum += d
		sumSq += d * d
	}
	n := float64(len(w))
	variance := (sumSq - sum*sum/n) / n
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// Trend returns the average rate of change between the first and last sample in units per second.
func Trend(w Window) float64 {
	if len(w) < 2 {
		return 0
	}
	first, last := w[0], w[len(w)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return (last.Value - first.Value) / elapsed
}

// ZScore calculates how many standard deviations value lies from the window mean
func ZScore(value float64, w Window) float64 {
	return CalculateZScore(value, Mean(w), StdDev(w))
}

// CalculateZScore calculates Z-Score for a single value given mean and stdDev
func CalculateZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// RateOfChange is the instantaneous rate between the two newest samples.
// ok is false with fewer than 2 samples or a non-positive time step.
func RateOfChange(w Window) (rate float64, ok bool) {
	if len(w) < 2 {
		return 0, false
	}
	prev, latest := w[len(w)-2], w[len(w)-1]
	dt := latest.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return (latest.Value - prev.Value) / dt, true
}
