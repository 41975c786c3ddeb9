package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/soltixdb/telewatch/internal/models"
)

func createTestWindow(values []float64, step time.Duration) Window {
	w := make(Window, len(values))
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		w[i] = models.Sample{
			Metric:    "speed",
			Timestamp: baseTime.Add(time.Duration(i) * step),
			Value:     v,
		}
	}
	return w
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{7}, 7},
		{"several", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 5},
		{"negative", []float64{-3, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(createTestWindow(tt.values, time.Second)); got != tt.want {
				t.Errorf("Mean = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	// Population standard deviation of the textbook series is exactly 2
	got := StdDev(createTestWindow([]float64{2, 4, 4, 4, 5, 5, 7, 9}, time.Second))
	if math.Abs(got-2.0) > 1e-12 {
		t.Errorf("StdDev = %v, want 2", got)
	}

	if got := StdDev(createTestWindow([]float64{42}, time.Second)); got != 0 {
		t.Errorf("StdDev of one point = %v, want 0", got)
	}
	if got := StdDev(nil); got != 0 {
		t.Errorf("StdDev of empty window = %v, want 0", got)
	}
}

func TestStdDev_ConstantWindowIsZero(t *testing.T) {
	for n := 2; n <= 50; n++ {
		values := make([]float64, n)
		for i := range values {
			values[i] = 13.37
		}
		if got := StdDev(createTestWindow(values, time.Second)); got != 0.0 {
			t.Fatalf("StdDev of constant window of length %d = %v, want exactly 0", n, got)
		}
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		step   time.Duration
		want   float64
	}{
		{"rising", []float64{10, 20, 30}, time.Second, 10},
		{"falling over minutes", []float64{100, 40}, time.Minute, -1},
		{"single point", []float64{5}, time.Second, 0},
		{"zero elapsed", []float64{5, 9}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Trend(createTestWindow(tt.values, tt.step)); got != tt.want {
				t.Errorf("Trend = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZScore(t *testing.T) {
	w := createTestWindow([]float64{2, 4, 4, 4, 5, 5, 7, 9}, time.Second)

	if got := ZScore(9, w); got != 2 {
		t.Errorf("ZScore(9) = %v, want 2", got)
	}
	if got := ZScore(Mean(w), w); got != 0.0 {
		t.Errorf("ZScore(mean) = %v, want exactly 0", got)
	}

	flat := createTestWindow([]float64{3, 3, 3}, time.Second)
	if got := ZScore(100, flat); got != 0 {
		t.Errorf("ZScore against zero stddev = %v, want 0", got)
	}
	if got := ZScore(1, nil); got != 0 {
		t.Errorf("ZScore against empty window = %v, want 0", got)
	}
}

func TestZScore_MeanIsZeroForArbitraryWindows(t *testing.T) {
	series := [][]float64{
		{1, 2, 3},
		{10, 12, 35},
		{0.1, 0.7, 0.3, 0.9, 12.5},
		{-4, 8, -15, 16, 23, 42},
	}
	for _, values := range series {
		w := createTestWindow(values, time.Second)
		if got := ZScore(Mean(w), w); got != 0.0 {
			t.Errorf("ZScore(mean(%v)) = %v, want 0", values, got)
		}
	}
}

func TestRateOfChange(t *testing.T) {
	rate, ok := RateOfChange(createTestWindow([]float64{10, 12, 35}, time.Second))
	if !ok || rate != 23 {
		t.Errorf("RateOfChange = %v, %v; want 23, true", rate, ok)
	}

	if _, ok := RateOfChange(createTestWindow([]float64{10}, time.Second)); ok {
		t.Error("RateOfChange with one point should not be ok")
	}

	if _, ok := RateOfChange(createTestWindow([]float64{10, 50}, 0)); ok {
		t.Error("RateOfChange with duplicate timestamps should not be ok")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("speed", createTestWindow([]float64{10, 12, 35}, time.Second))

	if s.Count != 3 || s.Min != 10 || s.Max != 35 || s.Latest != 35 || s.Mean != 19 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.Trend != 12.5 {
		t.Errorf("Trend = %v, want 12.5", s.Trend)
	}

	empty := Summarize("speed", nil)
	if empty.Count != 0 || empty.Mean != 0 || empty.Metric != "speed" {
		t.Errorf("unexpected empty summary: %+v", empty)
	}
}

func TestValues(t *testing.T) {
	v := Values(createTestWindow([]float64{1, 2, 3}, time.Second))
	if len(v) != 3 || v[0] != 1 || v[2] != 3 {
		t.Errorf("Values = %v", v)
	}
}
