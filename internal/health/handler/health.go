// Package handler serves liveness and readiness over HTTP and mirrors readiness into the
// standard gRPC health service.
package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

// Pinger checks the durable store. Implemented by store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the transfer policy engine. Implemented by *engine.OPAEvaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker aggregates the readiness checks. Nil dependencies are skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker. pinger and policy may be nil.
func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy}
}

// Check returns the name and error of the first failing dependency, or "", nil when ready.
func (c *Checker) Check(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if c.pinger != nil {
		if err := c.pinger.Ping(ctx); err != nil {
			return "store", err
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			return "policy", err
		}
	}
	return "", nil
}

// Live handles GET /healthz. It only reports that the process is serving.
func (c *Checker) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz: 200 when every dependency answers, 503 otherwise.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	if name, err := c.Check(r.Context()); err != nil {
		log.Printf("health: %s not ready: %v", name, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "failing": name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// NewGRPCServer returns a gRPC health server whose overall status starts as NOT_SERVING.
func NewGRPCServer() *health.Server {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return srv
}

// Sync sets srv's overall status from one readiness check.
func (c *Checker) Sync(ctx context.Context, srv *health.Server) {
	status := healthpb.HealthCheckResponse_SERVING
	if name, err := c.Check(ctx); err != nil {
		log.Printf("health: %s not ready: %v", name, err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	srv.SetServingStatus("", status)
}

// RunProbe calls Sync every interval until ctx is done, then marks srv NOT_SERVING.
func (c *Checker) RunProbe(ctx context.Context, srv *health.Server, interval time.Duration) {
	c.Sync(ctx, srv)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			srv.Shutdown()
			return
		case <-ticker.C:
			c.Sync(ctx, srv)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("health: encode response: %v", err)
	}
}
