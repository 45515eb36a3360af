// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package fleet

import "time"

// State of one managed cluster in the distribution state machine.
//
//	Unknown -> Pending -> Applied -> Compliant
//
// Failing is reachable from Pending or Applied on error; Compliant is stable
// until the canonical bundle changes or the cluster leaves the inventory.
type State string

const (
	StateUnknown   State = "Unknown"
	StatePending   State = "Pending"
	StateApplied   State = "Applied"
	StateCompliant State = "Compliant"
	StateFailing   State = "Failing"
)

// DistributionTarget tracks the distribution progress of one managed cluster. A
// record is created when the cluster first appears in inventory, mutated only by
// the worker handling that cluster during a pass, and removed when the cluster
// is decommissioned.
type DistributionTarget struct {
	ClusterID              string
	State                  State
	LastAppliedFingerprint string
	LastAttempt            time.Time
	ConsecutiveFailures    int

	// LastAttemptedFingerprint is the fingerprint the failure budget counts
	// against; a changed canonical bundle resets the budget.
	LastAttemptedFingerprint string

	// PermanentlyFailed is set once ConsecutiveFailures exhausts the retry
	// budget; the target keeps being reported so an operator can intervene, but
	// it is no longer retried until the canonical bundle changes.
	PermanentlyFailed bool
}

func newTarget(clusterID string) *DistributionTarget {
	return &DistributionTarget{ClusterID: clusterID, State: StateUnknown}
}

func (t *DistributionTarget) markApplied(fingerprint string) {
	t.State = StateApplied
	t.LastAppliedFingerprint = fingerprint
	t.LastAttempt = time.Now()
	t.ConsecutiveFailures = 0
	t.PermanentlyFailed = false
}

func (t *DistributionTarget) markCompliant() {
	t.State = StateCompliant
	t.ConsecutiveFailures = 0
	t.PermanentlyFailed = false
}

func (t *DistributionTarget) markFailing(maxConsecutiveFailures int) {
	t.State = StateFailing
	t.LastAttempt = time.Now()
	t.ConsecutiveFailures++
	if t.ConsecutiveFailures >= maxConsecutiveFailures {
		t.PermanentlyFailed = true
	}
}
