// Package testutil provides testing utilities for the watch bridge.
// This package contains a mock Home Assistant WebSocket server for
// writing integration tests against the real client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MockHAServer simulates the Home Assistant WebSocket API: the auth
// handshake, get_states, and call_service. Service calls are recorded
// and applied to an in-memory state table so tests can verify what the
// bridge published.
type MockHAServer struct {
	server       *httptest.Server
	token        string
	states       map[string]*EntityState
	statesMu     sync.RWMutex
	serviceCalls []ServiceCall
	callsMu      sync.Mutex
}

// EntityState represents a Home Assistant entity state
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Message represents a WebSocket message
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// AuthMessage represents authentication request
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// request is the union of the client requests the server understands.
type request struct {
	ID          int                    `json:"id"`
	Type        string                 `json:"type"`
	Domain      string                 `json:"domain"`
	Service     string                 `json:"service"`
	ServiceData map[string]interface{} `json:"service_data"`
}

// NewMockHAServer starts a mock HA server accepting the given token.
// Callers must Close it.
func NewMockHAServer(token string) *MockHAServer {
	s := &MockHAServer{
		token:  token,
		states: make(map[string]*EntityState),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", s.handleWebSocket)
	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the ws:// URL clients should dial.
func (s *MockHAServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/websocket"
}

// Close shuts the server down.
func (s *MockHAServer) Close() {
	s.server.Close()
}

// SetState installs an entity state
func (s *MockHAServer) SetState(entityID, state string, attributes map[string]interface{}) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	now := time.Now()
	s.states[entityID] = &EntityState{
		EntityID:    entityID,
		State:       state,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
}

// GetState retrieves an entity state, nil when absent
func (s *MockHAServer) GetState(entityID string) *EntityState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()
	return s.states[entityID]
}

// ServiceCalls returns a copy of all recorded service calls
func (s *MockHAServer) ServiceCalls() []ServiceCall {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()

	calls := make([]ServiceCall, len(s.serviceCalls))
	copy(calls, s.serviceCalls)
	return calls
}

// CallsForEntity returns recorded calls targeting the given entity_id
func (s *MockHAServer) CallsForEntity(entityID string) []ServiceCall {
	var matched []ServiceCall
	for _, call := range s.ServiceCalls() {
		if id, ok := call.Data["entity_id"].(string); ok && id == entityID {
			matched = append(matched, call)
		}
	}
	return matched
}

func (s *MockHAServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if !s.authenticate(conn) {
		return
	}

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		switch req.Type {
		case "get_states":
			s.replyStates(conn, req.ID)
		case "call_service":
			s.recordCall(req)
			s.replySuccess(conn, req.ID)
		default:
			s.replySuccess(conn, req.ID)
		}
	}
}

func (s *MockHAServer) authenticate(conn *websocket.Conn) bool {
	if err := conn.WriteJSON(Message{Type: "auth_required"}); err != nil {
		return false
	}

	var auth AuthMessage
	if err := conn.ReadJSON(&auth); err != nil {
		return false
	}

	if auth.AccessToken != s.token {
		conn.WriteJSON(Message{Type: "auth_invalid"})
		return false
	}

	return conn.WriteJSON(Message{Type: "auth_ok"}) == nil
}

func (s *MockHAServer) replyStates(conn *websocket.Conn, id int) {
	s.statesMu.RLock()
	states := make([]*EntityState, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, state)
	}
	s.statesMu.RUnlock()

	result, _ := json.Marshal(states)
	success := true
	conn.WriteJSON(Message{
		ID:      id,
		Type:    "result",
		Success: &success,
		Result:  result,
	})
}

func (s *MockHAServer) replySuccess(conn *websocket.Conn, id int) {
	success := true
	conn.WriteJSON(Message{
		ID:      id,
		Type:    "result",
		Success: &success,
	})
}

// recordCall stores the call and mirrors its effect into the state table
func (s *MockHAServer) recordCall(req request) {
	s.callsMu.Lock()
	s.serviceCalls = append(s.serviceCalls, ServiceCall{
		Domain:  req.Domain,
		Service: req.Service,
		Data:    req.ServiceData,
	})
	s.callsMu.Unlock()

	entityID, _ := req.ServiceData["entity_id"].(string)
	if entityID == "" {
		return
	}

	switch {
	case req.Domain == "input_boolean" && req.Service == "turn_on":
		s.SetState(entityID, "on", nil)
	case req.Domain == "input_boolean" && req.Service == "turn_off":
		s.SetState(entityID, "off", nil)
	case req.Domain == "input_text" && req.Service == "set_value":
		if value, ok := req.ServiceData["value"].(string); ok {
			s.SetState(entityID, value, nil)
		}
	}
}
