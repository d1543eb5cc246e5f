package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// probeTimeout bounds each backend health probe.
const probeTimeout = 5 * time.Second

// Per-service states reported by /health. The endpoint is unauthenticated,
// so the report never carries backend error details, only these values.
const (
	serviceHealthy     = "healthy"
	serviceUnhealthy   = "unhealthy"
	serviceUnavailable = "unavailable"
)

// Probe checks one named downstream service (an STT or diarization backend).
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ServiceReport is the JSON body of the public /health endpoint. Status is
// "healthy" when every service probe passes and "degraded" otherwise; the
// endpoint itself always answers 200, because a degraded API is still
// serving.
type ServiceReport struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// ServiceHandler serves the public /health endpoint: overall status plus a
// per-service breakdown of the compute backends.
type ServiceHandler struct {
	version string
	probes  []Probe
}

// NewServiceHandler creates a ServiceHandler reporting the given version.
func NewServiceHandler(version string, probes ...Probe) *ServiceHandler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &ServiceHandler{version: version, probes: p}
}

// ServeHTTP probes all services in parallel and writes the report.
func (h *ServiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := ServiceReport{
		Status:   "healthy",
		Version:  h.version,
		Services: make(map[string]string, len(h.probes)),
	}

	type outcome struct {
		name string
		err  error
	}
	results := make([]outcome, len(h.probes))

	var wg sync.WaitGroup
	for i, p := range h.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()
			results[i] = outcome{name: p.Name, err: p.Check(ctx)}
		}()
	}
	wg.Wait()

	for _, res := range results {
		report.Services[res.name] = serviceState(res.err)
		if res.err != nil {
			report.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(report)
}

// serviceState maps a probe result onto the reported state: a probe that
// timed out or was cut off by the client means the backend could not be
// reached at all, any other failure means it was reached but is failing.
func serviceState(err error) string {
	switch {
	case err == nil:
		return serviceHealthy
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return serviceUnavailable
	default:
		return serviceUnhealthy
	}
}
