package alert

import (
	"time"

	"github.com/google/uuid"
	"github.com/soltixdb/telewatch/internal/models"
)

// Config controls alert lifetime and escalation
type Config struct {
	// TTL is how long an alert stays active after creation
	TTL time.Duration `mapstructure:"ttl"`

	// CriticalThreshold is the number of active Critical+Emergency alerts
	// at which the vehicle is reported to be in a critical state
	CriticalThreshold int `mapstructure:"critical_threshold"`
}

// DefaultConfig returns the default alert configuration
func DefaultConfig() Config {
	return Config{
		TTL:               5 * time.Minute,
		CriticalThreshold: 3,
	}
}

// Manager creates, expires and counts alerts. It is not safe for concurrent use;
// the owning monitor serialises access.
type Manager struct {
	config  Config
	alerts  []Alert // creation order
	created int
	newID   func() string
}

// NewManager creates an alert manager
func NewManager(config Config) *Manager {
	defaults := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.CriticalThreshold <= 0 {
		config.CriticalThreshold = defaults.CriticalThreshold
	}
	return &Manager{
		config: config,
		alerts: make([]Alert, 0, 16),
		newID:  uuid.NewString,
	}
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.config
}

// Create records a new active alert and returns it
func (m *Manager) Create(at time.Time, kind Kind, severity Severity, message string, value float64, position *models.Position) Alert {
	return m.CreateInZone(at, "", kind, severity, message, value, position)
}

// CreateInZone is Create with the name of the zone the vehicle was in
func (m *Manager) CreateInZone(at time.Time, zone string, kind Kind, severity Severity, message string, value float64, position *models.Position) Alert {
	var pos *models.Position
	if position != nil {
		p := *position
		pos = &p
	}

	a := Alert{
		ID:        m.newID(),
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Value:     value,
		CreatedAt: at,
		Position:  pos,
		Zone:      zone,
	}
	m.alerts = append(m.alerts, a)
	m.created++
	return a
}

// Tick drops every alert whose TTL has elapsed at now and returns how many were removed
func (m *Manager) Tick(now time.Time) int {
	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if now.Before(a.ExpiresAt(m.config.TTL)) {
			kept = append(kept, a)
		}
	}
	removed := len(m.alerts) - len(kept)
	// Clear the tail so expired alerts can be collected
	for i := len(kept); i < len(m.alerts); i++ {
		m.alerts[i] = Alert{}
	}
	m.alerts = kept
	return removed
}

// Active returns a copy of the active alerts in creation order
func (m *Manager) Active() []Alert {
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Get returns an active alert by ID
func (m *Manager) Get(id string) (Alert, bool) {
	for _, a := range m.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return Alert{}, false
}

// CountBySeverity counts active alerts per tier. Every tier is present in the result.
func (m *Manager) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		counts[s] = 0
	}
	for _, a := range m.alerts {
		counts[a.Severity]++
	}
	return counts
}

// FleetCriticalState reports whether enough Critical or Emergency alerts are
// active to flag the vehicle. It is recomputed on every call.
func (m *Manager) FleetCriticalState() bool {
	counts := m.CountBySeverity()
	return counts[SeverityCritical]+counts[SeverityEmergency] >= m.config.CriticalThreshold
}

// TotalCreated returns the number of alerts ever created, expired ones included
func (m *Manager) TotalCreated() int {
	return m.created
}
