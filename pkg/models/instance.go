package models

import "time"

// InstanceDescriptor describes one running unit of the managed service as
// reported by the container orchestrator. The orchestrator holds no cache;
// descriptors are derived from the runtime on demand.
type InstanceDescriptor struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Port      int               `json:"port"`
	Index     int               `json:"index"`
	Healthy   bool              `json:"healthy"`
	Running   bool              `json:"running"`
	Labels    map[string]string `json:"labels,omitempty"`
	StartedAt time.Time         `json:"started_at,omitempty"`
}
