package health

import "context"

// StorePinger is the record store as seen by health checks.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Checker probes one gateway (vision, embedding or captioning).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
