package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soltixdb/telewatch/internal/config"
	"github.com/soltixdb/telewatch/internal/logging"
	"github.com/soltixdb/telewatch/internal/metadata"
	"github.com/soltixdb/telewatch/internal/models"
	"github.com/soltixdb/telewatch/internal/queue"
	"github.com/soltixdb/telewatch/internal/services"
	"github.com/soltixdb/telewatch/internal/utils"
)

// SimConfig holds simulation settings
type SimConfig struct {
	ConfigPath  string
	Vehicles    int
	Steps       int
	Interval    time.Duration
	Realtime    bool
	Seed        int64
	SeedZones   bool
	BrakeChance float64
	Origin      models.Position
}

func main() {
	sim := SimConfig{}
	flag.StringVar(&sim.ConfigPath, "config", "", "Path to configuration file (queue, etcd, zones)")
	flag.IntVar(&sim.Vehicles, "vehicles", 10, "Number of simulated vehicles")
	flag.IntVar(&sim.Steps, "steps", 300, "Readings per vehicle")
	flag.DurationVar(&sim.Interval, "interval", time.Second, "Simulated time between readings")
	flag.BoolVar(&sim.Realtime, "realtime", false, "Sleep for the interval between steps")
	flag.Int64Var(&sim.Seed, "seed", 1, "Random seed")
	flag.BoolVar(&sim.SeedZones, "seed-zones", false, "Write geofence.zones from the config into the etcd catalog first")
	flag.Float64Var(&sim.BrakeChance, "brake-chance", 0.01, "Probability of a harsh brake per step")
	flag.Float64Var(&sim.Origin.Latitude, "lat", 40.75, "Starting latitude")
	flag.Float64Var(&sim.Origin.Longitude, "lon", -74.0, "Starting longitude")
	flag.Parse()

	cfg, err := config.Load(sim.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if sim.SeedZones {
		if err := seedZones(ctx, cfg, logger); err != nil {
			logger.Fatal("Failed to seed zones", "error", err)
		}
	}

	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "error", err)
	}
	defer func() { _ = q.Close() }()

	codec, err := services.NewCodec(cfg.Queue.Compression)
	if err != nil {
		logger.Fatal("Invalid queue compression", "error", err)
	}

	start := time.Now()
	sent, failed := run(ctx, sim, q, codec, services.SubjectsFromConfig(cfg.Queue), logger)
	logger.Info("Simulation finished",
		"vehicles", sim.Vehicles,
		"messages", sent,
		"failed", failed,
		"elapsed", time.Since(start),
	)
}

func seedZones(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	catalog, err := metadata.NewEtcdZoneCatalog(cfg.Etcd, logger)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	for _, z := range cfg.Geofence.Zones {
		if err := catalog.PutZone(ctx, z); err != nil {
			return fmt.Errorf("zone %s: %w", z.Name, err)
		}
	}
	logger.Info("Zones written to catalog", "zones", len(cfg.Geofence.Zones), "prefix", cfg.Etcd.ZonePrefix)
	return nil
}

// vehicle is the state of one simulated drive
type vehicle struct {
	id       string
	pos      models.Position
	heading  float64 // radians
	speed    float64 // km/h
	temp     float64
	fuel     float64
	odometer float64
}

// step advances the drive by dt and returns the step's messages
func (v *vehicle) step(rng *rand.Rand, at time.Time, dt time.Duration, brakeChance float64) ([]services.SampleMessage, services.PositionMessage) {
	switch {
	case rng.Float64() < brakeChance:
		v.speed = math.Max(0, v.speed-30)
	default:
		v.speed = math.Min(130, math.Max(0, v.speed+rng.NormFloat64()*2))
	}
	v.heading += rng.NormFloat64() * 0.05

	km := v.speed * dt.Hours()
	// 1 degree of latitude is about 111 km
	v.pos.Latitude += km / 111 * math.Cos(v.heading)
	v.pos.Longitude += km / (111 * math.Cos(v.pos.Latitude*math.Pi/180)) * math.Sin(v.heading)
	v.odometer += km
	v.fuel = math.Max(0, v.fuel-km*0.08)
	v.temp += (90 - v.temp) * 0.1
	v.temp += rng.NormFloat64() * 0.5

	samples := []services.SampleMessage{
		{VehicleID: v.id, Metric: models.MetricSpeed, Value: v.speed, Time: at},
		{VehicleID: v.id, Metric: models.MetricEngineTemp, Value: v.temp, Time: at},
		{VehicleID: v.id, Metric: models.MetricFuelLevel, Value: v.fuel, Time: at},
		{VehicleID: v.id, Metric: models.MetricOdometer, Value: v.odometer, Time: at},
	}
	pos := services.PositionMessage{
		VehicleID: v.id,
		Latitude:  v.pos.Latitude,
		Longitude: v.pos.Longitude,
		Speed:     v.speed,
		Time:      at,
	}
	return samples, pos
}

func run(ctx context.Context, sim SimConfig, pub queue.Publisher, codec *services.Codec, subjects services.Subjects, logger *logging.Logger) (sent, failed int) {
	rng := rand.New(rand.NewSource(sim.Seed))

	fleet := make([]*vehicle, sim.Vehicles)
	for i := range fleet {
		fleet[i] = &vehicle{
			id:       fmt.Sprintf("vehicle-%03d", i+1),
			pos:      sim.Origin,
			heading:  rng.Float64() * 2 * math.Pi,
			speed:    30 + rng.Float64()*30,
			temp:     70,
			fuel:     60 + rng.Float64()*40,
			odometer: rng.Float64() * 50000,
		}
	}

	at := time.Now().Add(-time.Duration(sim.Steps) * sim.Interval)
	for step := 0; step < sim.Steps; step++ {
		if ctx.Err() != nil {
			break
		}
		at = at.Add(sim.Interval)

		batch := make([]queue.Message, 0, len(fleet)*5)
		for _, v := range fleet {
			samples, pos := v.step(rng, at, sim.Interval, sim.BrakeChance)
			for _, s := range samples {
				data, err := codec.Encode(s)
				if err != nil {
					logger.Error("Failed to encode sample", "vehicle_id", v.id, "error", err)
					continue
				}
				batch = append(batch, queue.Message{Subject: subjects.Samples, Key: v.id, Data: data})
			}
			data, err := codec.Encode(pos)
			if err != nil {
				logger.Error("Failed to encode position", "vehicle_id", v.id, "error", err)
				continue
			}
			batch = append(batch, queue.Message{Subject: subjects.Positions, Key: v.id, Data: data})
		}

		pubCtx, cancel := context.WithTimeout(ctx, utils.PublishTimeout)
		n, err := pub.PublishBatch(pubCtx, batch)
		cancel()
		sent += n
		failed += len(batch) - n
		if err != nil {
			logger.Warn("Batch partially published", "step", step, "published", n, "total", len(batch), "error", err)
		}

		if (step+1)%50 == 0 {
			logger.Info("Progress", "step", step+1, "steps", sim.Steps, "messages", sent)
		}

		if sim.Realtime {
			select {
			case <-time.After(sim.Interval):
			case <-ctx.Done():
			}
		}
	}
	return sent, failed
}
