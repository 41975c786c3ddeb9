// Package maintenance derives service items from usage counters.
//
// Items are never stored: every Evaluate recomputes them from the latest
// odometer and engine-hours readings against the configured schedule.
package maintenance

import (
	"fmt"
	"strings"

	"github.com/soltixdb/telewatch/internal/models"
)

// Priority ranks how urgent a maintenance item is
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Entry is one schedule line, e.g. an oil change every 10000 odometer units
type Entry struct {
	Subject       string  `mapstructure:"subject" json:"subject"`
	ServiceType   string  `mapstructure:"service_type" json:"service_type"`
	CounterMetric string  `mapstructure:"counter_metric" json:"counter_metric"`
	Interval      float64 `mapstructure:"interval" json:"interval"`
	WarnBefore    float64 `mapstructure:"warn_before" json:"warn_before"`
	LastService   float64 `mapstructure:"last_service" json:"last_service"` // counter reading at the last service
}

// Key identifies the entry within a schedule
func (e Entry) Key() string {
	return e.Subject + "/" + e.ServiceType
}

// Config is the maintenance schedule
type Config struct {
	Schedule []Entry `mapstructure:"schedule"`
}

// DefaultConfig returns a basic passenger-vehicle schedule
func DefaultConfig() Config {
	return Config{
		Schedule: []Entry{
			{Subject: "engine", ServiceType: "oil_change", CounterMetric: "odometer", Interval: 10000, WarnBefore: 500},
			{Subject: "tires", ServiceType: "rotation", CounterMetric: "odometer", Interval: 8000, WarnBefore: 500},
			{Subject: "engine", ServiceType: "inspection", CounterMetric: "engine_hours", Interval: 250, WarnBefore: 10},
		},
	}
}

// Validate checks every schedule entry
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Schedule))
	for i, e := range c.Schedule {
		if strings.TrimSpace(e.Subject) == "" || strings.TrimSpace(e.ServiceType) == "" {
			return fmt.Errorf("schedule[%d]: subject and service_type are required", i)
		}
		if e.CounterMetric == "" {
			return fmt.Errorf("schedule[%d]: counter_metric is required", i)
		}
		if e.Interval <= 0 {
			return fmt.Errorf("schedule[%d]: interval must be positive", i)
		}
		if e.WarnBefore < 0 || e.WarnBefore >= e.Interval {
			return fmt.Errorf("schedule[%d]: warn_before must be within [0, interval)", i)
		}
		if seen[e.Key()] {
			return fmt.Errorf("schedule[%d]: duplicate entry %s", i, e.Key())
		}
		seen[e.Key()] = true
	}
	return nil
}

// Item is the derived state of one schedule entry
type Item struct {
	Subject       string   `json:"subject"`
	ServiceType   string   `json:"service_type"`
	CounterMetric string   `json:"counter_metric"`
	Counter       float64  `json:"counter"`
	DueAtMetric   float64  `json:"due_at_metric"`
	Remaining     float64  `json:"remaining"`
	IsOverdue     bool     `json:"is_overdue"`
	Priority      Priority `json:"priority"`
}

// Key identifies the item's schedule entry
func (i Item) Key() string {
	return i.Subject + "/" + i.ServiceType
}

// Planner evaluates a fixed schedule
type Planner struct {
	schedule []Entry
}

// NewPlanner creates a planner
func NewPlanner(cfg Config) *Planner {
	schedule := make([]Entry, 0, len(cfg.Schedule))
	for _, e := range cfg.Schedule {
		if e.Interval > 0 {
			e.CounterMetric = models.NormalizeMetric(e.CounterMetric)
			schedule = append(schedule, e)
		}
	}
	return &Planner{schedule: schedule}
}

// Tracks reports whether any entry is driven by the metric
func (p *Planner) Tracks(metric string) bool {
	metric = models.NormalizeMetric(metric)
	for _, e := range p.schedule {
		if e.CounterMetric == metric {
			return true
		}
	}
	return false
}

// Evaluate derives items in schedule order. Entries whose counter has no
// reading yet are skipped.
func (p *Planner) Evaluate(counters map[string]float64) []Item {
	items := make([]Item, 0, len(p.schedule))
	for _, e := range p.schedule {
		counter, ok := counters[e.CounterMetric]
		if !ok {
			continue
		}
		due := e.LastService + e.Interval
		remaining := due - counter

		item := Item{
			Subject:       e.Subject,
			ServiceType:   e.ServiceType,
			CounterMetric: e.CounterMetric,
			Counter:       counter,
			DueAtMetric:   due,
			Remaining:     remaining,
			IsOverdue:     remaining <= 0,
			Priority:      PriorityLow,
		}
		switch {
		case item.IsOverdue:
			item.Priority = PriorityHigh
		case remaining <= e.WarnBefore:
			item.Priority = PriorityMedium
		}
		items = append(items, item)
	}
	return items
}
