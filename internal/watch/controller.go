package watch

import "context"

// OnlineStatus values reported by the vendor cloud API.
const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
	StatusUnknown = "UNKNOWN"
)

// NoTracking is the interval value the vendor API reports when no
// live tracking session is running for a watch.
const NoTracking = -1

// Location is a watch position as reported by the vendor cloud.
type Location struct {
	Lat float64
	Lng float64
}

// Controller is the surface of the vendor watch cloud API the bridge
// depends on. The concrete implementation is supplied externally (a
// vendor SDK); the bridge only orchestrates calls against it.
type Controller interface {
	// AskLocate requests a fresh locate from the watch. True means the
	// watch acknowledged the request.
	AskLocate(ctx context.Context, id string) (bool, error)

	// TrackInterval returns the live tracking interval in seconds, or
	// NoTracking when no tracking session is active.
	TrackInterval(ctx context.Context, id string) (int, error)

	// OnlineStatus returns the cloud's connectivity status string.
	OnlineStatus(ctx context.Context, id string) (string, error)

	// InSafeZone reports whether the watch is inside a configured safe zone.
	InSafeZone(ctx context.Context, id string) (bool, error)

	// Charging reports whether the watch is on the charger.
	Charging(ctx context.Context, id string) (bool, error)

	// BatteryLevel returns the battery percentage (0-100).
	BatteryLevel(ctx context.Context, id string) (int, error)

	// UserName returns the display name of the watch wearer.
	UserName(ctx context.Context, id string) (string, error)

	// LastKnownLocation returns the most recent position the cloud has.
	LastKnownLocation(ctx context.Context, id string) (Location, error)
}
