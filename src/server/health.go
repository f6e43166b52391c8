package server

import (
	"net/http"
)

func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, RootResponse{
		Message: "E-Commerce Graph Sync API",
		Endpoints: map[string]string{
			"/health":                         "Health check",
			"/v1/sync/run":                    "Trigger a sync run (POST)",
			"/v1/sync/report":                 "Last sync report",
			"/v1/graph/counts":                "Node/relationship counts",
			"/v1/customers/{id}/purchases":    "Purchase history",
			"/v1/products/{id}/co-occurrence": "Products bought together",
		},
	})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"source": "ok",
		"graph":  "ok",
	}
	healthy := true

	if err := s.pinger.PingSource(r.Context()); err != nil {
		checks["source"] = err.Error()
		healthy = false
	}
	if err := s.pinger.PingGraph(r.Context()); err != nil {
		checks["graph"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	statusText := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	s.writeJSON(w, status, HealthResponse{
		OK:     healthy,
		Status: statusText,
		Checks: checks,
	})
}
