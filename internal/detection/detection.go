// Package detection classifies driving and sensor patterns from a metric window.
//
// Evaluation is stateless: every call looks only at the window it is given.
// Each metric kind has a Profile that enables a subset of the patterns:
//
//	Pattern             Condition                         Needs
//	harsh deceleration  rate of change < HarshDeceleration  2 points
//	rapid acceleration  rate of change > RapidAcceleration  2 points
//	erratic variance    stddev(window) > Variance           VarianceMinPoints
//	reading anomaly     |zscore| > AnomalyZScore            AnomalyMinPoints baseline
//
// The anomaly z-score compares the newest value against the baseline: the
// window without that newest sample. AnomalyMinPoints counts baseline samples.
// A zero threshold disables the pattern.
package detection

import (
	"fmt"
	"math"

	"github.com/soltixdb/telewatch/internal/alert"
	"github.com/soltixdb/telewatch/internal/analytics"
	"github.com/soltixdb/telewatch/internal/models"
)

// Event is one triggered pattern
type Event struct {
	Kind      alert.Kind
	Severity  alert.Severity
	Metric    string
	Value     float64 // the measured quantity that crossed the threshold
	Threshold float64
	Message   string
}

// Detector evaluates windows against per-kind profiles
type Detector struct {
	profiles [models.KindEngineHours + 1]Profile
}

// New creates a detector from configuration. Kinds missing from the
// configuration keep their defaults.
func New(cfg Config) (*Detector, error) {
	d := &Detector{}
	defaults := DefaultConfig()
	for kind := models.KindGeneric; kind <= models.KindEngineHours; kind++ {
		p, ok := cfg.Profiles[kind.String()]
		if !ok {
			p = defaults.Profiles[kind.String()]
		}
		p = p.withDefaults()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("detection profile %s: %w", kind, err)
		}
		d.profiles[kind] = p
	}
	return d, nil
}

// Profile returns the thresholds used for a metric kind
func (d *Detector) Profile(kind models.MetricKind) Profile {
	if int(kind) >= len(d.profiles) {
		kind = models.KindGeneric
	}
	return d.profiles[kind]
}

// Evaluate runs every enabled pattern for the kind against the window.
// The newest sample is the one being evaluated. Patterns fire independently;
// insufficient history simply yields fewer events.
func (d *Detector) Evaluate(kind models.MetricKind, w []models.Sample) []Event {
	if len(w) == 0 {
		return nil
	}
	p := d.Profile(kind)
	metric := w[len(w)-1].Metric

	var events []Event
	if ev, ok := d.checkRate(p, metric, w); ok {
		events = append(events, ev)
	}
	if ev, ok := d.checkVariance(p, metric, w); ok {
		events = append(events, ev)
	}
	if ev, ok := d.checkAnomaly(p, metric, w); ok {
		events = append(events, ev)
	}
	return events
}

func (d *Detector) checkRate(p Profile, metric string, w []models.Sample) (Event, bool) {
	if p.HarshDeceleration == 0 && p.RapidAcceleration == 0 {
		return Event{}, false
	}
	rate, ok := analytics.RateOfChange(w)
	if !ok {
		// Fewer than 2 points or a duplicate timestamp
		return Event{}, false
	}

	switch {
	case p.HarshDeceleration != 0 && rate < p.HarshDeceleration:
		sev := alert.SeverityWarning
		msg := fmt.Sprintf("harsh deceleration on %s: %.2f/s (threshold %.2f/s)", metric, rate, p.HarshDeceleration)
		if p.CollisionDeceleration != 0 && rate < p.CollisionDeceleration {
			sev = alert.SeverityEmergency
			msg = fmt.Sprintf("possible collision on %s: deceleration %.2f/s (limit %.2f/s)", metric, rate, p.CollisionDeceleration)
		}
		return Event{
			Kind:      alert.KindHarshDeceleration,
			Severity:  sev,
			Metric:    metric,
			Value:     rate,
			Threshold: p.HarshDeceleration,
			Message:   msg,
		}, true

	case p.RapidAcceleration != 0 && rate > p.RapidAcceleration:
		return Event{
			Kind:      alert.KindRapidAcceleration,
			Severity:  alert.SeverityWarning,
			Metric:    metric,
			Value:     rate,
			Threshold: p.RapidAcceleration,
			Message:   fmt.Sprintf("rapid acceleration on %s: %.2f/s (threshold %.2f/s)", metric, rate, p.RapidAcceleration),
		}, true
	}
	return Event{}, false
}

func (d *Detector) checkVariance(p Profile, metric string, w []models.Sample) (Event, bool) {
	if p.Variance == 0 || len(w) < p.VarianceMinPoints {
		return Event{}, false
	}
	sd := analytics.StdDev(w)
	if sd <= p.Variance {
		return Event{}, false
	}
	return Event{
		Kind:      alert.KindErraticVariance,
		Severity:  alert.SeverityInfo,
		Metric:    metric,
		Value:     sd,
		Threshold: p.Variance,
		Message:   fmt.Sprintf("erratic %s: stddev %.2f over %d samples exceeds %.2f", metric, sd, len(w), p.Variance),
	}, true
}

func (d *Detector) checkAnomaly(p Profile, metric string, w []models.Sample) (Event, bool) {
	baseline := w[:len(w)-1]
	if p.AnomalyZScore == 0 || len(baseline) < p.AnomalyMinPoints {
		return Event{}, false
	}
	latest := w[len(w)-1].Value
	z := analytics.ZScore(latest, baseline)
	if math.Abs(z) <= p.AnomalyZScore {
		return Event{}, false
	}

	sev := alert.SeverityWarning
	if p.AnomalyCriticalZScore != 0 && math.Abs(z) >= p.AnomalyCriticalZScore {
		sev = alert.SeverityCritical
	}
	direction := "spike"
	if z < 0 {
		direction = "drop"
	}
	return Event{
		Kind:      alert.KindReadingAnomaly,
		Severity:  sev,
		Metric:    metric,
		Value:     z,
		Threshold: p.AnomalyZScore,
		Message: fmt.Sprintf("anomalous %s %s: value %.2f is %.2f standard deviations from baseline mean %.2f",
			metric, direction, latest, z, analytics.Mean(baseline)),
	}, true
}
