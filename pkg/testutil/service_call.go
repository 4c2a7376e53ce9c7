package testutil

// ServiceCall records a call_service request for verification
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
}

// FilterServiceCalls filters service calls by domain and service
func FilterServiceCalls(calls []ServiceCall, domain, service string) []ServiceCall {
	var filtered []ServiceCall
	for _, call := range calls {
		if call.Domain == domain && call.Service == service {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// FindServiceCallWithEntityID finds the most recent call for an entity
func FindServiceCallWithEntityID(calls []ServiceCall, domain, service, entityID string) *ServiceCall {
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if call.Domain == domain && call.Service == service {
			if id, ok := call.Data["entity_id"].(string); ok && id == entityID {
				return &call
			}
		}
	}
	return nil
}
