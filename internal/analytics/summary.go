package analytics

import "github.com/soltixdb/telewatch/internal/models"

// Summary describes one metric window for reporting
type Summary struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Latest float64 `json:"latest"`
	Trend  float64 `json:"trend"`
}

// Summarize computes a Summary for a window. An empty window yields a zero Summary.
func Summarize(metric string, w []models.Sample) Summary {
	sum := Summary{Metric: metric, Count: len(w)}
	if len(w) == 0 {
		return sum
	}

	sum.Min, sum.Max = w[0].Value, w[0].Value
	for _, s := range w[1:] {
		if s.Value < sum.Min {
			sum.Min = s.Value
		}
		if s.Value > sum.Max {
			sum.Max = s.Value
		}
	}
	sum.Mean = Mean(w)
	sum.StdDev = StdDev(w)
	sum.Latest = w[len(w)-1].Value
	sum.Trend = Trend(w)
	return sum
}
