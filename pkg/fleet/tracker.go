package fleet

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/yaml"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
)

// TargetStatus is the observable state of one target after a completed pass.
type TargetStatus struct {
	ClusterID           string    `json:"clusterId"`
	State               State     `json:"state"`
	FingerprintMatch    bool      `json:"fingerprintMatch"`
	LastFingerprint     string    `json:"lastFingerprint,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastAttempt         time.Time `json:"lastAttempt,omitempty"`
}

// Report is the aggregate status of the most recent completed pass.
type Report struct {
	RunID       string         `json:"runId"`
	CompletedAt time.Time      `json:"completedAt"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Targets     []TargetStatus `json:"targets"`
}

// publishReport snapshots the target records at the end of a pass. Readers only
// ever see a fully built report, never in-progress mutation.
func (r *Reconciler) publishReport(run *Run) {
	report := &Report{
		RunID:       run.ID,
		CompletedAt: time.Now(),
	}
	if run.Bundle != nil {
		report.Fingerprint = run.Bundle.Fingerprint()
	} else if r.lastBundle != nil {
		// degraded pass: report against the preserved last-known-good bundle
		report.Fingerprint = r.lastBundle.Fingerprint()
	}
	for _, target := range r.targets {
		report.Targets = append(report.Targets, TargetStatus{
			ClusterID:           target.ClusterID,
			State:               target.State,
			FingerprintMatch:    report.Fingerprint != "" && target.LastAppliedFingerprint == report.Fingerprint,
			LastFingerprint:     target.LastAppliedFingerprint,
			ConsecutiveFailures: target.ConsecutiveFailures,
			LastAttempt:         target.LastAttempt,
		})
	}
	sort.Slice(report.Targets, func(i, j int) bool {
		return report.Targets[i].ClusterID < report.Targets[j].ClusterID
	})

	r.reportMu.Lock()
	r.lastReport = report
	r.reportMu.Unlock()
}

// Report returns the status snapshot of the most recent completed pass, or nil
// before the first pass finishes.
func (r *Reconciler) Report() *Report {
	r.reportMu.RLock()
	defer r.reportMu.RUnlock()
	return r.lastReport
}

// AllCompliant reports whether every tracked target of the last pass converged.
// Downstream gates (e.g. enabling an automated sync) key off this.
func (r *Reconciler) AllCompliant() bool {
	report := r.Report()
	if report == nil || len(report.Targets) == 0 {
		return false
	}
	for _, target := range report.Targets {
		if target.State != StateCompliant {
			return false
		}
	}
	return true
}

// PublishStatus writes the last report into the distributor's status ConfigMap
// for operator tooling. A write failure is logged by the caller, never fatal.
func (r *Reconciler) PublishStatus(ctx context.Context) error {
	report := r.Report()
	if report == nil {
		return nil
	}
	raw, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal status report: %w", err)
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.StatusConfigMapName,
			Namespace: constants.DefaultNamespace,
		},
	}
	_, err = controllerutil.CreateOrUpdate(ctx, r.HubClient, cm, func() error {
		if cm.Labels == nil {
			cm.Labels = map[string]string{}
		}
		cm.Labels[constants.OwnedLabel] = constants.OwnedLabelValue
		cm.Data = map[string]string{"report.yaml": string(raw)}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish status report: %w", err)
	}
	logger.ZapLogger("compliance-tracker").Debugw("published status report",
		"run", report.RunID, "targets", len(report.Targets))
	return nil
}
