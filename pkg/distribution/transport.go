package distribution

import (
	"context"
	"errors"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"
	policyv1 "open-cluster-management.io/governance-policy-propagator/api/v1"
	placementrulev1 "open-cluster-management.io/multicloud-operators-subscription/pkg/apis/apps/placementrule/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
)

// ErrTransportRejected signals that the policy transport would not accept the
// manifest for delivery.
var ErrTransportRejected = errors.New("policy transport rejected the manifest")

// Transport hands a manifest to the policy-distribution collaborator, one target
// cluster at a time so a rejected target never blocks the others. Delivery is
// asynchronous: acceptance only means the transport took ownership, convergence
// is confirmed later via Check.
type Transport interface {
	Deliver(ctx context.Context, manifest *Manifest, cluster string) error
	Retire(ctx context.Context, cluster string) error
	Check(ctx context.Context) (ComplianceSignal, error)
}

// PolicyTransport realizes Transport on the governance policy engine. The
// manifest's Policy and its PlacementBinding are kept on the hub; each delivered
// cluster is added to the shared PlacementRule, from where the engine replicates
// and enforces the policy remotely and reports per-cluster compliance in the
// policy status. Concurrent deliveries to disjoint clusters contend only on the
// placement rule, which is updated with conflict retries.
type PolicyTransport struct {
	Client client.Client
}

func (t *PolicyTransport) Deliver(ctx context.Context, manifest *Manifest, cluster string) error {
	if err := t.ensurePolicy(ctx, manifest); err != nil {
		return err
	}
	if err := t.ensureBinding(ctx, manifest); err != nil {
		return err
	}
	if err := t.setPlacement(ctx, cluster, true); err != nil {
		return fmt.Errorf("failed to place policy on cluster %s: %w", cluster, err)
	}

	logger.ZapLogger("policy-transport").Debugw("handed manifest to policy transport",
		"fingerprint", manifest.Fingerprint, "cluster", cluster)
	return nil
}

// Retire removes a decommissioned cluster from the placement rule so the engine
// stops reconciling it.
func (t *PolicyTransport) Retire(ctx context.Context, cluster string) error {
	err := t.setPlacement(ctx, cluster, false)
	if err != nil {
		return fmt.Errorf("failed to retire cluster %s from placement: %w", cluster, err)
	}
	return nil
}

func (t *PolicyTransport) ensurePolicy(ctx context.Context, manifest *Manifest) error {
	policy := &policyv1.Policy{
		ObjectMeta: metav1.ObjectMeta{
			Name:      manifest.Policy.Name,
			Namespace: manifest.Policy.Namespace,
		},
	}
	_, err := controllerutil.CreateOrUpdate(ctx, t.Client, policy, func() error {
		if owner, ok := policy.Labels[constants.OwnedLabel]; ok && owner != constants.OwnedLabelValue {
			return fmt.Errorf("%w: policy %s is owned by %q", ErrTransportRejected, policy.Name, owner)
		}
		if policy.Annotations[constants.BundleFingerprintAnnotation] == manifest.Fingerprint {
			return nil
		}
		policy.Labels = manifest.Policy.Labels
		policy.Annotations = manifest.Policy.Annotations
		policy.Spec = manifest.Policy.Spec
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to deliver distribution policy: %w", err)
	}
	return nil
}

func (t *PolicyTransport) ensureBinding(ctx context.Context, manifest *Manifest) error {
	binding := &policyv1.PlacementBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.DistributionPlacementName,
			Namespace: manifest.Policy.Namespace,
		},
	}
	_, err := controllerutil.CreateOrUpdate(ctx, t.Client, binding, func() error {
		binding.Labels = map[string]string{constants.OwnedLabel: constants.OwnedLabelValue}
		binding.PlacementRef = policyv1.PlacementSubject{
			APIGroup: "apps.open-cluster-management.io",
			Kind:     "PlacementRule",
			Name:     constants.DistributionPlacementName,
		}
		binding.Subjects = []policyv1.Subject{
			{
				APIGroup: "policy.open-cluster-management.io",
				Kind:     "Policy",
				Name:     manifest.Policy.Name,
			},
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to deliver placement binding: %w", err)
	}
	return nil
}

func (t *PolicyTransport) setPlacement(ctx context.Context, cluster string, include bool) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		placement := &placementrulev1.PlacementRule{
			ObjectMeta: metav1.ObjectMeta{
				Name:      constants.DistributionPlacementName,
				Namespace: constants.DefaultNamespace,
			},
		}
		_, err := controllerutil.CreateOrUpdate(ctx, t.Client, placement, func() error {
			placement.Labels = map[string]string{constants.OwnedLabel: constants.OwnedLabelValue}
			refs := placement.Spec.Clusters
			placement.Spec = placementrulev1.PlacementRuleSpec{
				GenericPlacementFields: placementrulev1.GenericPlacementFields{
					Clusters: updateClusterRefs(refs, cluster, include),
				},
			}
			return nil
		})
		return err
	})
}

func updateClusterRefs(refs []placementrulev1.GenericClusterReference,
	cluster string, include bool,
) []placementrulev1.GenericClusterReference {
	kept := make([]placementrulev1.GenericClusterReference, 0, len(refs)+1)
	for _, ref := range refs {
		if ref.Name != cluster {
			kept = append(kept, ref)
		}
	}
	if include {
		kept = append(kept, placementrulev1.GenericClusterReference{Name: cluster})
	}
	return kept
}
