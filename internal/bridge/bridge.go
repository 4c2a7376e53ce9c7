package bridge

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"xplorawatch/internal/config"
	"xplorawatch/internal/ha"
	"xplorawatch/internal/observability"
	"xplorawatch/internal/sensor"
	"xplorawatch/internal/watch"
)

// Geocoder is the session-scoped reverse geocoding surface the bridge
// uses to resolve watch positions to addresses.
type Geocoder interface {
	WithSession(ctx context.Context, fn func(context.Context) error) error
	ReverseGeocode(ctx context.Context, lat, lng float64, extra url.Values) ([]any, error)
}

// Bridge polls the watch cloud on the scan interval and publishes
// binary sensor states and addresses into Home Assistant.
type Bridge struct {
	haClient   ha.HAClient
	controller watch.Controller
	geocoder   Geocoder
	evaluator  *sensor.Evaluator
	config     *config.Config
	kinds      []sensor.Kind
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      clockwork.Clock

	timers map[string]*sensor.UpdateTimer

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates a bridge. geocoder may be nil, in which case address
// resolution is skipped regardless of configuration.
func New(
	haClient ha.HAClient,
	controller watch.Controller,
	geocoder Geocoder,
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
	clock clockwork.Clock,
) *Bridge {
	kinds := make([]sensor.Kind, 0, len(cfg.EnabledSensors()))
	for _, k := range cfg.EnabledSensors() {
		kinds = append(kinds, sensor.Kind(k))
	}

	timers := make(map[string]*sensor.UpdateTimer, len(cfg.Watches))
	for _, id := range cfg.Watches {
		timers[id] = sensor.NewUpdateTimer(cfg.Interval(), clock)
	}

	return &Bridge{
		haClient:   haClient,
		controller: controller,
		geocoder:   geocoder,
		evaluator:  sensor.NewEvaluator(controller, logger),
		config:     cfg,
		kinds:      kinds,
		metrics:    metrics,
		logger:     logger.Named("bridge"),
		clock:      clock,
		timers:     timers,
		done:       make(chan struct{}),
	}
}

// Start begins the poll loop. The first cycle runs immediately.
func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.metrics.BridgeUp.Set(1)
	if b.geocodingEnabled() {
		b.metrics.GeocodeEnabled.Set(1)
	}

	b.logger.Info("Starting watch bridge",
		zap.Int("watches", len(b.config.Watches)),
		zap.Duration("scan_interval", b.config.Interval()),
		zap.Bool("geocoding", b.geocodingEnabled()))

	go b.run(ctx)
}

// Stop halts the poll loop and waits for the current cycle to finish.
func (b *Bridge) Stop() {
	b.once.Do(func() {
		b.logger.Info("Stopping watch bridge")
		if b.cancel != nil {
			b.cancel()
			<-b.done
		}
		b.metrics.BridgeUp.Set(0)
	})
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	ticker := b.clock.NewTicker(b.config.Interval())
	defer ticker.Stop()

	b.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			b.pollOnce(ctx)
		}
	}
}

// pollOnce runs one poll cycle over all configured watches. Failures
// are logged and counted, never retried; the next cycle starts fresh.
func (b *Bridge) pollOnce(ctx context.Context) {
	start := time.Now()
	failed := false

	for _, id := range b.config.Watches {
		if !b.timers[id].ShouldUpdate() {
			continue
		}
		if err := b.updateWatch(ctx, id); err != nil {
			b.logger.Error("Watch update failed", zap.String("watch_id", id), zap.Error(err))
			failed = true
		}
	}

	b.metrics.PollCycles.Inc()
	b.metrics.PollDuration.Observe(time.Since(start).Seconds())
	if failed {
		b.metrics.PollErrors.Inc()
	}
}

// updateWatch evaluates and publishes every enabled sensor for one
// watch, then resolves and publishes its address.
func (b *Bridge) updateWatch(ctx context.Context, id string) error {
	var firstErr error

	for _, kind := range b.kinds {
		reading, err := b.evaluator.Evaluate(ctx, kind, id)
		if err != nil {
			b.metrics.SensorPublishes.WithLabelValues(string(kind), "error").Inc()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := b.haClient.SetInputBoolean(sensor.EntityName(kind, id), reading.On); err != nil {
			b.metrics.SensorPublishes.WithLabelValues(string(kind), "error").Inc()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		b.metrics.SensorPublishes.WithLabelValues(string(kind), "success").Inc()
		b.logger.Debug("Published sensor",
			zap.String("watch_id", id),
			zap.String("kind", string(kind)),
			zap.Bool("on", reading.On))
	}

	if b.geocodingEnabled() {
		if err := b.publishAddress(ctx, id); err != nil {
			b.metrics.GeocodeRequests.WithLabelValues("error").Inc()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			b.metrics.GeocodeRequests.WithLabelValues("success").Inc()
		}
	}

	return firstErr
}

// publishAddress reverse geocodes the watch position and pushes the
// formatted address into Home Assistant. One session scope per watch.
func (b *Bridge) publishAddress(ctx context.Context, id string) error {
	loc, err := b.controller.LastKnownLocation(ctx, id)
	if err != nil {
		return err
	}

	var address string
	err = b.geocoder.WithSession(ctx, func(ctx context.Context) error {
		results, err := b.geocoder.ReverseGeocode(ctx, loc.Lat, loc.Lng, nil)
		if err != nil {
			return err
		}
		address = formattedAddress(results)
		return nil
	})
	if err != nil {
		return err
	}

	return b.haClient.SetInputText(sensor.AddressEntityName(id), address)
}

func (b *Bridge) geocodingEnabled() bool {
	return b.geocoder != nil && b.config.Geocoding
}

// formattedAddress picks the formatted address out of a geocode result
// list. An empty result list yields "unknown".
func formattedAddress(results []any) string {
	for _, r := range results {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if formatted, ok := m["formatted"].(string); ok && formatted != "" {
			return formatted
		}
	}
	return "unknown"
}
