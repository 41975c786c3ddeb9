package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/soltixdb/telewatch/internal/geofence"
)

var (
	// ErrZoneNotFound is returned when no zone record has the requested name
	ErrZoneNotFound = errors.New("zone not found")

	// ErrZoneExists is returned by CreateZone when the name is taken
	ErrZoneExists = errors.New("zone already exists")
)

// ZoneCatalog stores geofence zone reference data outside the process
type ZoneCatalog interface {
	CreateZone(ctx context.Context, zone geofence.Zone) error
	PutZone(ctx context.Context, zone geofence.Zone) error
	GetZone(ctx context.Context, name string) (*geofence.Zone, error)
	ListZones(ctx context.Context) ([]geofence.Zone, error)
	DeleteZone(ctx context.Context, name string) error
	Close() error
}

// ZoneLister is the read side of a catalog
type ZoneLister interface {
	ListZones(ctx context.Context) ([]geofence.Zone, error)
}

// LoadEngine builds a geofence engine from the catalog's zones using the
// tolerance policy of cfg. Zones in cfg are ignored.
func LoadEngine(ctx context.Context, catalog ZoneLister, cfg geofence.Config) (*geofence.Engine, error) {
	zones, err := catalog.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	engine := geofence.NewEngine(cfg.Tolerance, cfg.MajorExcess)
	for _, z := range zones {
		if err := engine.Register(z); err != nil {
			return nil, fmt.Errorf("zone %s: %w", z.Name, err)
		}
	}
	return engine, nil
}
