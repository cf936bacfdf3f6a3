package balancer

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/OldStager01/capacity-manager/internal/logger"
)

// healthResponse is the contract every instance must honor on GET /health.
type healthResponse struct {
	Status string `json:"status"`
}

// StartHealthChecks begins the periodic probe loop. Idempotent.
func (lb *LoadBalancer) StartHealthChecks() {
	lb.runMu.Lock()
	defer lb.runMu.Unlock()

	if lb.running {
		return
	}
	lb.running = true
	lb.stopCh = make(chan struct{})

	lb.wg.Add(1)
	go lb.healthLoop(lb.stopCh)

	logger.Info("Health checks started")
}

// StopHealthChecks halts probing. An in-flight probe cycle finishes.
func (lb *LoadBalancer) StopHealthChecks() {
	lb.runMu.Lock()
	if !lb.running {
		lb.runMu.Unlock()
		return
	}
	lb.running = false
	close(lb.stopCh)
	lb.runMu.Unlock()

	lb.wg.Wait()
	logger.Info("Health checks stopped")
}

func (lb *LoadBalancer) healthLoop(stopCh <-chan struct{}) {
	defer lb.wg.Done()

	ticker := time.NewTicker(lb.config.HealthCheckInterval)
	defer ticker.Stop()

	lb.checkAllInstances()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			lb.checkAllInstances()
		}
	}
}

func (lb *LoadBalancer) checkAllInstances() {
	// Snapshot under the table lock, probe outside it: probes are network
	// calls and must not block selection.
	lb.mu.Lock()
	targets := make([]Instance, 0, len(lb.instances))
	for _, inst := range lb.instances {
		targets = append(targets, *inst)
	}
	lb.mu.Unlock()

	for _, target := range targets {
		lb.setHealthy(target.ID, lb.probe(target))
	}
}

// probe performs one bounded-timeout health check. Any failure mode maps to
// unhealthy; nothing is returned as an error.
func (lb *LoadBalancer) probe(target Instance) bool {
	ctx, cancel := context.WithTimeout(context.Background(), lb.config.HealthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.BaseURL+lb.config.HealthCheckPath, nil)
	if err != nil {
		return false
	}

	resp, err := lb.client.Do(req)
	if err != nil {
		logger.WithInstance(target.ID).Debugf("Health probe failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "healthy" || body.Status == "ok"
}
