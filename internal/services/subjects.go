package services

import "github.com/soltixdb/telewatch/internal/config"

// Subjects names the bus subjects the services use
type Subjects struct {
	Samples   string
	Positions string
	Alerts    string
	Reports   string
}

// SubjectsFromConfig reads the subjects from the queue section
func SubjectsFromConfig(cfg config.QueueConfig) Subjects {
	return Subjects{
		Samples:   cfg.SampleSubject,
		Positions: cfg.PositionSubject,
		Alerts:    cfg.AlertSubject,
		Reports:   cfg.ReportSubject,
	}
}
