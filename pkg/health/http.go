package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Response is the JSON body of the probe endpoints.
type Response struct {
	Status  string                 `json:"status"`
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// CheckStatus is one check in a Response. Status is "ok" or "error".
type CheckStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// LivenessHandler answers 200 when alive and 503 otherwise.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return c.handler(c.Liveness)
}

// ReadinessHandler answers 200 when every dependency is usable and 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return c.handler(c.Readiness)
}

func (c *Checker) handler(probe func(context.Context) (Status, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := probe(r.Context())

		resp := Response{Status: "healthy", Checks: make(map[string]CheckStatus, len(status.Checks))}
		code := http.StatusOK
		if !status.Healthy {
			resp.Status, code = "unhealthy", http.StatusServiceUnavailable
			if err != nil {
				resp.Message = err.Error()
			}
		}
		for _, res := range status.Checks {
			cs := CheckStatus{Status: "ok", Latency: res.Latency.String()}
			if !res.Healthy {
				cs.Status, cs.Error = "error", res.Error
			}
			resp.Checks[res.Name] = cs
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
