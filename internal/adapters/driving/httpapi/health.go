package httpapi

import (
	"encoding/json"
	"net/http"
)

// HealthChecker reports the readiness of one backing component.
type HealthChecker interface {
	Health() map[string]error
}

// HealthHandler aggregates component health into one readiness
// endpoint. Any unhealthy component turns the response into a 503.
type HealthHandler struct {
	components map[string]HealthChecker
}

// NewHealthHandler creates a handler over named components.
func NewHealthHandler(components map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{components: components}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	healthy := true
	report := make(map[string]map[string]string, len(h.components))
	for name, component := range h.components {
		statuses := make(map[string]string)
		for key, err := range component.Health() {
			if err != nil {
				healthy = false
				statuses[key] = err.Error()
			} else {
				statuses[key] = "ok"
			}
		}
		report[name] = statuses
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(report)
}
