package ha

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockClient implements HAClient interface for testing
type MockClient struct {
	states       map[string]*State
	statesMu     sync.RWMutex
	connected    bool
	connMu       sync.RWMutex
	serviceCalls []ServiceCall
	callsMu      sync.Mutex
	failErr      error
}

// ServiceCall records a service call for testing
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

// NewMockClient creates a new mock HA client
func NewMockClient() *MockClient {
	return &MockClient{
		states:       make(map[string]*State),
		serviceCalls: make([]ServiceCall, 0),
	}
}

// FailWith makes every subsequent service call return err. Pass nil to clear.
func (m *MockClient) FailWith(err error) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.failErr = err
}

// Connect simulates connecting to Home Assistant
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.connected = false
	return nil
}

// IsConnected returns the simulated connection state
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// SetState installs a state for testing
func (m *MockClient) SetState(state *State) {
	m.statesMu.Lock()
	defer m.statesMu.Unlock()
	m.states[state.EntityID] = state
}

// GetState retrieves a simulated entity state
func (m *MockClient) GetState(entityID string) (*State, error) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	state, ok := m.states[entityID]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", entityID)
	}
	return state, nil
}

// GetAllStates retrieves all simulated states
func (m *MockClient) GetAllStates() ([]*State, error) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	states := make([]*State, 0, len(m.states))
	for _, state := range m.states {
		states = append(states, state)
	}
	return states, nil
}

// CallService records a service call
func (m *MockClient) CallService(domain, service string, data map[string]interface{}) error {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}

	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})
	return nil
}

// SetInputBoolean records an input_boolean change
func (m *MockClient) SetInputBoolean(name string, value bool) error {
	service := "turn_off"
	if value {
		service = "turn_on"
	}

	return m.CallService("input_boolean", service, map[string]interface{}{
		"entity_id": fmt.Sprintf("input_boolean.%s", name),
	})
}

// SetInputText records an input_text change
func (m *MockClient) SetInputText(name string, value string) error {
	return m.CallService("input_text", "set_value", map[string]interface{}{
		"entity_id": fmt.Sprintf("input_text.%s", name),
		"value":     value,
	})
}

// ServiceCalls returns a copy of the recorded service calls
func (m *MockClient) ServiceCalls() []ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// CallsForEntity returns recorded calls whose entity_id matches
func (m *MockClient) CallsForEntity(entityID string) []ServiceCall {
	var matched []ServiceCall
	for _, call := range m.ServiceCalls() {
		if id, ok := call.Data["entity_id"].(string); ok && strings.EqualFold(id, entityID) {
			matched = append(matched, call)
		}
	}
	return matched
}

// ClearCalls forgets all recorded service calls
func (m *MockClient) ClearCalls() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = m.serviceCalls[:0]
}
