package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soltixdb/telewatch/internal/config"
	"github.com/soltixdb/telewatch/internal/geofence"
	"github.com/soltixdb/telewatch/internal/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdZoneCatalog keeps one JSON record per zone under a key prefix, e.g.
// /telewatch/zones/midtown. Listing returns zones in key order, which is the
// order they are registered in and therefore their lookup precedence.
type EtcdZoneCatalog struct {
	client *clientv3.Client
	prefix string
	logger *logging.Logger
}

// NewEtcdZoneCatalog connects to the configured etcd cluster
func NewEtcdZoneCatalog(cfg config.EtcdConfig, logger *logging.Logger) (*EtcdZoneCatalog, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return NewEtcdZoneCatalogWithClient(client, cfg.ZonePrefix, logger), nil
}

// NewEtcdZoneCatalogWithClient wraps an existing client. Close closes it.
func NewEtcdZoneCatalogWithClient(client *clientv3.Client, prefix string, logger *logging.Logger) *EtcdZoneCatalog {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &EtcdZoneCatalog{
		client: client,
		prefix: prefix,
		logger: logger.Component("zone-catalog"),
	}
}

func (c *EtcdZoneCatalog) key(name string) string {
	return c.prefix + name
}

func encodeZone(zone geofence.Zone) (string, error) {
	if zone.Kind == "" {
		zone.Kind = geofence.KindGeneral
	}
	if strings.Contains(zone.Name, "/") {
		return "", fmt.Errorf("%w: %s contains '/'", geofence.ErrInvalidZone, zone.Name)
	}
	if err := zone.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(zone)
	if err != nil {
		return "", fmt.Errorf("failed to marshal zone: %w", err)
	}
	return string(data), nil
}

// CreateZone stores zone only if no record with its name exists
func (c *EtcdZoneCatalog) CreateZone(ctx context.Context, zone geofence.Zone) error {
	value, err := encodeZone(zone)
	if err != nil {
		return err
	}

	key := c.key(zone.Name)
	resp, err := c.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, value)).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to store zone in etcd: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("%w: %s", ErrZoneExists, zone.Name)
	}
	return nil
}

// PutZone creates or replaces zone
func (c *EtcdZoneCatalog) PutZone(ctx context.Context, zone geofence.Zone) error {
	value, err := encodeZone(zone)
	if err != nil {
		return err
	}
	if _, err := c.client.Put(ctx, c.key(zone.Name), value); err != nil {
		return fmt.Errorf("failed to store zone in etcd: %w", err)
	}
	return nil
}

// GetZone returns the named zone
func (c *EtcdZoneCatalog) GetZone(ctx context.Context, name string) (*geofence.Zone, error) {
	resp, err := c.client.Get(ctx, c.key(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get zone from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, name)
	}

	var zone geofence.Zone
	if err := json.Unmarshal(resp.Kvs[0].Value, &zone); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zone %s: %w", name, err)
	}
	return &zone, nil
}

// ListZones returns every zone under the prefix in key order. Records that do
// not decode or validate are skipped with a warning.
func (c *EtcdZoneCatalog) ListZones(ctx context.Context) ([]geofence.Zone, error) {
	resp, err := c.client.Get(ctx, c.prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones from etcd: %w", err)
	}

	zones := make([]geofence.Zone, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var zone geofence.Zone
		if err := json.Unmarshal(kv.Value, &zone); err != nil {
			c.logger.Warn("Skipping malformed zone record", "key", string(kv.Key), "error", err)
			continue
		}
		if err := zone.Validate(); err != nil {
			c.logger.Warn("Skipping invalid zone record", "key", string(kv.Key), "error", err)
			continue
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

// DeleteZone removes the named zone
func (c *EtcdZoneCatalog) DeleteZone(ctx context.Context, name string) error {
	resp, err := c.client.Delete(ctx, c.key(name))
	if err != nil {
		return fmt.Errorf("failed to delete zone from etcd: %w", err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, name)
	}
	return nil
}

// Close closes the etcd client
func (c *EtcdZoneCatalog) Close() error {
	return c.client.Close()
}
