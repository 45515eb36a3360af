// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/bundle"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/distribution"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/hub"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/inventory"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/sources"
)

// ErrNoSourcesAvailable is returned when every source failed in one pass. The
// pass then writes nothing: blanking the trust store during a total outage is
// worse than keeping a stale one.
var ErrNoSourcesAvailable = errors.New("no certificate sources available")

// Options bound the reconciler's retry and concurrency behavior. They generalize
// the fixed attempt-count/interval polling of the original workflow into a
// capped exponential backoff.
type Options struct {
	// WorkerPoolSize bounds concurrent per-target deliveries.
	WorkerPoolSize int
	// DeliveryRetries is the per-pass retry budget of one target's delivery.
	DeliveryRetries uint64
	// DeliveryInterval seeds the exponential backoff between delivery retries.
	DeliveryInterval time.Duration
	// MaxConsecutiveFailures is the cross-pass budget after which a target is
	// surfaced as permanently failed.
	MaxConsecutiveFailures int
	// ApplyTimeout bounds one delivery attempt.
	ApplyTimeout time.Duration
}

// Run records one reconciliation pass. It exists for the duration of the pass
// and is kept only for logging and the compliance report.
type Run struct {
	ID        string
	StartedAt time.Time
	Bundle    *bundle.TrustBundle
	Outcomes  map[string]error
}

// Reconciler drives the canonical trust bundle to convergence across the fleet.
// One RunPass call performs one full pass: re-derive the bundle from all
// reachable sources, install it on the hub, and re-issue distribution for every
// target whose last applied fingerprint differs.
type Reconciler struct {
	HubClient    client.Client
	Collector    *sources.Collector
	Configurator *hub.Configurator
	Transport    distribution.Transport
	Options      Options

	// targets survives across passes; each record is mutated only by the worker
	// handling that cluster within a pass.
	targets map[string]*DistributionTarget

	// lastBundle is the last successfully merged bundle, preserved across a
	// total source outage.
	lastBundle *bundle.TrustBundle

	reportMu   sync.RWMutex
	lastReport *Report
}

func NewReconciler(hubClient client.Client, collector *sources.Collector,
	configurator *hub.Configurator, transport distribution.Transport, opts Options,
) *Reconciler {
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = 5
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 60
	}
	if opts.DeliveryInterval <= 0 {
		opts.DeliveryInterval = time.Second
	}
	if opts.ApplyTimeout <= 0 {
		opts.ApplyTimeout = 30 * time.Second
	}
	return &Reconciler{
		HubClient:    hubClient,
		Collector:    collector,
		Configurator: configurator,
		Transport:    transport,
		Options:      opts,
		targets:      map[string]*DistributionTarget{},
	}
}

// RunPass performs one reconciliation pass over all sources and all targets.
func (r *Reconciler) RunPass(ctx context.Context) (*Run, error) {
	log := logger.ZapLogger("fleet-reconciler")
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Outcomes:  map[string]error{},
	}
	log.Infow("starting reconciliation pass", "run", run.ID)

	snapshot, err := inventory.TakeSnapshot(ctx, r.HubClient)
	if err != nil {
		return run, err
	}

	contributions, failures := r.Collector.Collect(ctx, snapshot.Sources())
	for id, readErr := range failures {
		run.Outcomes["source/"+id] = readErr
	}
	if len(contributions) == 0 {
		// total outage: keep the last-known-good bundle untouched
		log.Errorw("every source failed, preserving previously installed bundle",
			"run", run.ID, "failedSources", len(failures))
		r.publishReport(run)
		return run, fmt.Errorf("%w: all %d sources failed", ErrNoSourcesAvailable, len(failures))
	}

	canonical := bundle.Merge(contributions)
	run.Bundle = canonical
	r.lastBundle = canonical
	log.Infow("merged canonical bundle", "run", run.ID,
		"certificates", canonical.Len(), "fingerprint", canonical.Fingerprint(),
		"sources", len(contributions), "failedSources", len(failures))

	// the hub is configured directly; its failure is isolated like any target's
	if err := r.Configurator.Apply(ctx, canonical); err != nil {
		log.Errorw("failed to configure hub trust store", "run", run.ID, "error", err)
		run.Outcomes["hub"] = err
	}

	manifest, err := distribution.Describe(canonical)
	if err != nil {
		r.publishReport(run)
		return run, err
	}

	r.syncTargets(ctx, snapshot)
	signal, err := r.Transport.Check(ctx)
	if err != nil {
		log.Warnw("compliance signal unavailable this pass", "run", run.ID, "error", err)
	}

	r.distribute(ctx, run, manifest, signal)
	r.publishReport(run)

	log.Infow("completed reconciliation pass", "run", run.ID,
		"targets", len(r.targets), "failures", countFailures(run.Outcomes))
	return run, nil
}

// syncTargets reconciles the target records with the inventory: new clusters get
// a record in Unknown, decommissioned clusters are retired from the transport
// and dropped.
func (r *Reconciler) syncTargets(ctx context.Context, snapshot *inventory.Snapshot) {
	log := logger.ZapLogger("fleet-reconciler")

	current := map[string]bool{}
	for _, name := range snapshot.ClusterNames() {
		current[name] = true
		if _, ok := r.targets[name]; !ok {
			log.Infow("tracking new distribution target", "cluster", name)
			r.targets[name] = newTarget(name)
		}
	}
	for name := range r.targets {
		if current[name] {
			continue
		}
		log.Infow("removing decommissioned distribution target", "cluster", name)
		if err := r.Transport.Retire(ctx, name); err != nil {
			log.Warnw("failed to retire target from transport", "cluster", name, "error", err)
		}
		delete(r.targets, name)
	}
}

// distribute runs the per-target state machine over a bounded worker pool.
// Workers share only the read-only manifest and compliance signal; each target
// record is owned by exactly one worker. Cancellation is honored between
// targets, never in the middle of a delivery.
func (r *Reconciler) distribute(ctx context.Context, run *Run,
	manifest *distribution.Manifest, signal distribution.ComplianceSignal,
) {
	pending := make(chan *DistributionTarget, len(r.targets))
	for _, target := range r.targets {
		pending <- target
	}
	close(pending)

	var (
		wg sync.WaitGroup
		mu sync.Mutex // guards run.Outcomes
	)
	for i := 0; i < r.Options.WorkerPoolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range pending {
				select {
				case <-ctx.Done():
					return
				default:
				}
				err := r.reconcileTarget(ctx, target, manifest, signal)
				mu.Lock()
				run.Outcomes[target.ClusterID] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func (r *Reconciler) reconcileTarget(ctx context.Context, target *DistributionTarget,
	manifest *distribution.Manifest, signal distribution.ComplianceSignal,
) error {
	log := logger.ZapLogger("fleet-reconciler")

	if target.LastAppliedFingerprint == manifest.Fingerprint {
		if target.State == StateCompliant {
			// stable: no apply call at all
			return nil
		}
		if signal.IsCompliant(target.ClusterID, manifest.Fingerprint) {
			target.markCompliant()
			log.Infow("target converged", "cluster", target.ClusterID,
				"fingerprint", manifest.Fingerprint)
			return nil
		}
		if target.State == StateApplied {
			// delivered, waiting for the engine to converge remotely
			return nil
		}
	}

	if target.LastAttemptedFingerprint != manifest.Fingerprint {
		// a changed bundle resets the failure budget
		target.ConsecutiveFailures = 0
		target.PermanentlyFailed = false
	}
	if target.PermanentlyFailed {
		err := fmt.Errorf("target %s exhausted its retry budget (%d consecutive failures), requires operator attention",
			target.ClusterID, target.ConsecutiveFailures)
		log.Errorw("target permanently failed", "cluster", target.ClusterID,
			"consecutiveFailures", target.ConsecutiveFailures)
		return err
	}

	target.State = StatePending
	target.LastAttemptedFingerprint = manifest.Fingerprint
	if err := r.deliverWithBackoff(ctx, target, manifest); err != nil {
		target.markFailing(r.Options.MaxConsecutiveFailures)
		log.Errorw("failed to deliver manifest to target", "cluster", target.ClusterID,
			"attempt", target.ConsecutiveFailures, "error", err)
		return err
	}
	target.markApplied(manifest.Fingerprint)

	if signal.IsCompliant(target.ClusterID, manifest.Fingerprint) {
		target.markCompliant()
	}
	return nil
}

// deliverWithBackoff retries one target's delivery with capped exponential
// backoff. Each attempt gets its own timeout and is detached from pass
// cancellation so an in-flight write always runs to completion or timeout.
func (r *Reconciler) deliverWithBackoff(ctx context.Context, target *DistributionTarget,
	manifest *distribution.Manifest,
) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.Options.DeliveryInterval

	return backoff.Retry(func() error {
		applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.Options.ApplyTimeout)
		defer cancel()
		return r.Transport.Deliver(applyCtx, manifest, target.ClusterID)
	}, backoff.WithMaxRetries(policy, r.Options.DeliveryRetries))
}

func countFailures(outcomes map[string]error) int {
	failed := 0
	for _, err := range outcomes {
		if err != nil {
			failed++
		}
	}
	return failed
}
