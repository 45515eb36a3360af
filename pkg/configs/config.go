// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package configs

import "time"

// DistributorConfig carries every tunable of the trust-bundle distributor,
// populated from command-line flags.
type DistributorConfig struct {
	// ResyncInterval is the sleep between passes; ignored with Once.
	ResyncInterval time.Duration
	// Once runs a single pass and exits, for use as a batch job.
	Once bool

	// SourceTimeout bounds one source read, credential acquisition included.
	SourceTimeout time.Duration
	// ApplyTimeout bounds one delivery attempt to one target.
	ApplyTimeout time.Duration

	// WorkerPoolSize bounds concurrent per-target deliveries within a pass.
	WorkerPoolSize int
	// DeliveryRetries is the within-pass retry budget per target.
	DeliveryRetries int
	// DeliveryInterval seeds the exponential backoff between retries.
	DeliveryInterval time.Duration
	// MaxConsecutiveFailures is the cross-pass budget before a target is
	// surfaced as permanently failed.
	MaxConsecutiveFailures int

	EnablePprof bool
	LogLevel    string

	QPS   float32
	Burst int
}
