package watch

import (
	"context"
	"fmt"
	"sync"
)

// MockState holds the simulated state of one watch.
type MockState struct {
	LocateAck     bool
	TrackInterval int
	Online        string
	InSafeZone    bool
	Charging      bool
	Battery       int
	UserName      string
	Location      Location
}

// MockController implements Controller in memory for tests and for
// running the bridge without vendor credentials.
type MockController struct {
	mu      sync.RWMutex
	watches map[string]MockState
	failErr error
}

// NewMockController creates an empty mock controller.
func NewMockController() *MockController {
	return &MockController{
		watches: make(map[string]MockState),
	}
}

// SetWatch installs or replaces the state for a watch ID.
func (m *MockController) SetWatch(id string, state MockState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches[id] = state
}

// FailWith makes every subsequent call return err. Pass nil to clear.
func (m *MockController) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MockController) get(id string) (MockState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failErr != nil {
		return MockState{}, m.failErr
	}
	state, ok := m.watches[id]
	if !ok {
		return MockState{}, fmt.Errorf("watch %s not found", id)
	}
	return state, nil
}

func (m *MockController) AskLocate(_ context.Context, id string) (bool, error) {
	state, err := m.get(id)
	return state.LocateAck, err
}

func (m *MockController) TrackInterval(_ context.Context, id string) (int, error) {
	state, err := m.get(id)
	if err != nil {
		return NoTracking, err
	}
	return state.TrackInterval, nil
}

func (m *MockController) OnlineStatus(_ context.Context, id string) (string, error) {
	state, err := m.get(id)
	if err != nil {
		return StatusUnknown, err
	}
	return state.Online, nil
}

func (m *MockController) InSafeZone(_ context.Context, id string) (bool, error) {
	state, err := m.get(id)
	return state.InSafeZone, err
}

func (m *MockController) Charging(_ context.Context, id string) (bool, error) {
	state, err := m.get(id)
	return state.Charging, err
}

func (m *MockController) BatteryLevel(_ context.Context, id string) (int, error) {
	state, err := m.get(id)
	return state.Battery, err
}

func (m *MockController) UserName(_ context.Context, id string) (string, error) {
	state, err := m.get(id)
	return state.UserName, err
}

func (m *MockController) LastKnownLocation(_ context.Context, id string) (Location, error) {
	state, err := m.get(id)
	return state.Location, err
}
