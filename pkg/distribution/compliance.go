package distribution

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	policyv1 "open-cluster-management.io/governance-policy-propagator/api/v1"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
)

// ComplianceSignal is the advisory feedback the policy engine reports after a
// distribution: which bundle fingerprint the delivered policy carries and, per
// cluster, whether the remote cluster converged on it.
type ComplianceSignal struct {
	Fingerprint string
	Compliant   map[string]bool
}

// IsCompliant reports whether the named cluster converged on the given
// fingerprint. An unknown cluster, or a signal for a different fingerprint, is
// not compliance.
func (s ComplianceSignal) IsCompliant(cluster, fingerprint string) bool {
	return s.Fingerprint == fingerprint && s.Compliant[cluster]
}

// Check reads the distribution policy's status off the hub. The engine fills the
// status asynchronously; a policy with no status yet yields an empty signal, not
// an error.
func (t *PolicyTransport) Check(ctx context.Context) (ComplianceSignal, error) {
	policy := &policyv1.Policy{}
	err := t.Client.Get(ctx, types.NamespacedName{
		Namespace: constants.DefaultNamespace,
		Name:      constants.DistributionPolicyName,
	}, policy)
	if apierrors.IsNotFound(err) {
		return ComplianceSignal{Compliant: map[string]bool{}}, nil
	}
	if err != nil {
		return ComplianceSignal{}, fmt.Errorf("failed to read distribution policy status: %w", err)
	}

	signal := ComplianceSignal{
		Fingerprint: policy.Annotations[constants.BundleFingerprintAnnotation],
		Compliant:   map[string]bool{},
	}
	for _, clusterStatus := range policy.Status.Status {
		if clusterStatus == nil {
			continue
		}
		signal.Compliant[clusterStatus.ClusterName] = clusterStatus.ComplianceState == policyv1.Compliant
	}
	return signal, nil
}
