package sensor

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"xplorawatch/internal/watch"
)

// Kind identifies a binary sensor exposed per watch.
type Kind string

const (
	// KindCharging is ON while the watch sits on its charger.
	KindCharging Kind = "charging"
	// KindSafeZone is ON while the watch is OUTSIDE every safe zone.
	KindSafeZone Kind = "safezone"
	// KindState is ON while the watch is reachable from the cloud.
	KindState Kind = "state"
)

// AllKinds lists every supported sensor kind.
var AllKinds = []Kind{KindCharging, KindSafeZone, KindState}

// Description carries the Home Assistant metadata for a sensor kind.
type Description struct {
	Kind        Kind
	DeviceClass string
}

// Descriptions maps each kind to its device class.
var Descriptions = map[Kind]Description{
	KindCharging: {Kind: KindCharging, DeviceClass: "battery_charging"},
	KindSafeZone: {Kind: KindSafeZone, DeviceClass: "safety"},
	KindState:    {Kind: KindState, DeviceClass: "connectivity"},
}

// Reading is one evaluated sensor value, ready to publish.
type Reading struct {
	Kind     Kind
	WatchID  string
	On       bool
	Name     string
	UniqueID string
	Icon     string
}

// Evaluator computes sensor readings from the watch controller.
type Evaluator struct {
	controller watch.Controller
	logger     *zap.Logger
}

// NewEvaluator creates an evaluator over the given controller.
func NewEvaluator(controller watch.Controller, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		controller: controller,
		logger:     logger.Named("sensor"),
	}
}

// Evaluate computes the reading for one sensor kind on one watch.
func (e *Evaluator) Evaluate(ctx context.Context, kind Kind, id string) (Reading, error) {
	reading := Reading{Kind: kind, WatchID: id}

	var err error
	switch kind {
	case KindState:
		reading.On, reading.Icon, err = e.isOnline(ctx, id)
	case KindSafeZone:
		var inZone bool
		inZone, err = e.controller.InSafeZone(ctx, id)
		reading.On = !inZone
	case KindCharging:
		reading.On, err = e.controller.Charging(ctx, id)
	default:
		return reading, fmt.Errorf("unknown sensor kind %q", kind)
	}
	if err != nil {
		return reading, fmt.Errorf("evaluate %s for watch %s: %w", kind, id, err)
	}

	user, err := e.controller.UserName(ctx, id)
	if err != nil {
		return reading, fmt.Errorf("resolve user name for watch %s: %w", id, err)
	}
	reading.Name = title(fmt.Sprintf("%s watch %s %s", user, kind, id))
	reading.UniqueID = id + reading.Name

	e.logger.Debug("Evaluated sensor",
		zap.String("kind", string(kind)),
		zap.String("watch_id", id),
		zap.Bool("on", reading.On))

	return reading, nil
}

// isOnline reports connectivity. A watch counts as online when it
// acknowledges a locate request, has an active tracking session, or
// the cloud reports it ONLINE.
func (e *Evaluator) isOnline(ctx context.Context, id string) (bool, string, error) {
	ack, err := e.controller.AskLocate(ctx, id)
	if err != nil {
		return false, iconOffline, err
	}
	interval, err := e.controller.TrackInterval(ctx, id)
	if err != nil {
		return false, iconOffline, err
	}
	if ack || interval != watch.NoTracking {
		return true, iconOnline, nil
	}

	status, err := e.controller.OnlineStatus(ctx, id)
	if err != nil {
		return false, iconOffline, err
	}
	if status == watch.StatusOnline {
		return true, iconOnline, nil
	}
	return false, iconOffline, nil
}

const (
	iconOnline  = "mdi:lan-check"
	iconOffline = "mdi:lan-disconnect"
)

// EntityName builds the Home Assistant object ID for a sensor kind on
// a watch, e.g. "watch_charging_0123".
func EntityName(kind Kind, id string) string {
	return fmt.Sprintf("watch_%s_%s", kind, sanitizeID(id))
}

// AddressEntityName builds the object ID of the input_text holding
// the geocoded watch address.
func AddressEntityName(id string) string {
	return "watch_address_" + sanitizeID(id)
}

// sanitizeID lowercases an ID and replaces anything outside
// [a-z0-9_] so it is usable as an HA object ID segment.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// title uppercases the first letter of every space-separated word.
func title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
