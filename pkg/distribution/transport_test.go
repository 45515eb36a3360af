package distribution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/types"
	policyv1 "open-cluster-management.io/governance-policy-propagator/api/v1"
	placementrulev1 "open-cluster-management.io/multicloud-operators-subscription/pkg/apis/apps/placementrule/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/configs"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
)

func placementKey() types.NamespacedName {
	return types.NamespacedName{
		Namespace: constants.DefaultNamespace,
		Name:      constants.DistributionPlacementName,
	}
}

func placedClusters(t *testing.T, transport *PolicyTransport) []string {
	t.Helper()
	placement := &placementrulev1.PlacementRule{}
	assert.NoError(t, transport.Client.Get(context.Background(), placementKey(), placement))
	names := []string{}
	for _, ref := range placement.Spec.Clusters {
		names = append(names, ref.Name)
	}
	return names
}

func TestDeliverWritesPolicyPlacementAndBinding(t *testing.T) {
	ctx := context.Background()
	transport := &PolicyTransport{
		Client: fake.NewClientBuilder().WithScheme(configs.GetRuntimeScheme()).Build(),
	}
	manifest, err := Describe(testBundle("cert-a"))
	assert.NoError(t, err)

	assert.NoError(t, transport.Deliver(ctx, manifest, "managed-1"))
	assert.NoError(t, transport.Deliver(ctx, manifest, "managed-2"))

	policy := &policyv1.Policy{}
	assert.NoError(t, transport.Client.Get(ctx, types.NamespacedName{
		Namespace: constants.DefaultNamespace,
		Name:      constants.DistributionPolicyName,
	}, policy))
	assert.Equal(t, manifest.Fingerprint,
		policy.Annotations[constants.BundleFingerprintAnnotation])
	assert.Len(t, policy.Spec.PolicyTemplates, 2)

	binding := &policyv1.PlacementBinding{}
	assert.NoError(t, transport.Client.Get(ctx, placementKey(), binding))
	assert.Equal(t, constants.DistributionPolicyName, binding.Subjects[0].Name)
	assert.Equal(t, constants.DistributionPlacementName, binding.PlacementRef.Name)

	assert.ElementsMatch(t, []string{"managed-1", "managed-2"}, placedClusters(t, transport))
}

func TestDeliverIsIdempotentPerCluster(t *testing.T) {
	ctx := context.Background()
	transport := &PolicyTransport{
		Client: fake.NewClientBuilder().WithScheme(configs.GetRuntimeScheme()).Build(),
	}
	manifest, err := Describe(testBundle("cert-a"))
	assert.NoError(t, err)

	assert.NoError(t, transport.Deliver(ctx, manifest, "managed-1"))
	assert.NoError(t, transport.Deliver(ctx, manifest, "managed-1"))

	assert.Equal(t, []string{"managed-1"}, placedClusters(t, transport))
}

func TestDeliverRefusesForeignPolicy(t *testing.T) {
	ctx := context.Background()
	manifest, err := Describe(testBundle("cert-a"))
	assert.NoError(t, err)

	foreign := manifest.Policy.DeepCopy()
	foreign.Labels = map[string]string{constants.OwnedLabel: "someone-else"}
	transport := &PolicyTransport{
		Client: fake.NewClientBuilder().WithScheme(configs.GetRuntimeScheme()).
			WithObjects(foreign).Build(),
	}

	err = transport.Deliver(ctx, manifest, "managed-1")
	assert.ErrorIs(t, err, ErrTransportRejected)
}

func TestRetireRemovesClusterFromPlacement(t *testing.T) {
	ctx := context.Background()
	transport := &PolicyTransport{
		Client: fake.NewClientBuilder().WithScheme(configs.GetRuntimeScheme()).Build(),
	}
	manifest, err := Describe(testBundle("cert-a"))
	assert.NoError(t, err)

	assert.NoError(t, transport.Deliver(ctx, manifest, "managed-1"))
	assert.NoError(t, transport.Deliver(ctx, manifest, "managed-2"))
	assert.NoError(t, transport.Retire(ctx, "managed-1"))

	assert.Equal(t, []string{"managed-2"}, placedClusters(t, transport))
}

func TestCheckReadsComplianceSignal(t *testing.T) {
	ctx := context.Background()
	manifest, err := Describe(testBundle("cert-a"))
	assert.NoError(t, err)

	delivered := manifest.Policy.DeepCopy()
	delivered.Status = policyv1.PolicyStatus{
		Status: []*policyv1.CompliancePerClusterStatus{
			{ClusterName: "managed-1", ComplianceState: policyv1.Compliant},
			{ClusterName: "managed-2", ComplianceState: policyv1.NonCompliant},
		},
	}
	transport := &PolicyTransport{
		Client: fake.NewClientBuilder().WithScheme(configs.GetRuntimeScheme()).
			WithObjects(delivered).Build(),
	}

	signal, err := transport.Check(ctx)
	assert.NoError(t, err)
	assert.Equal(t, manifest.Fingerprint, signal.Fingerprint)
	assert.True(t, signal.IsCompliant("managed-1", manifest.Fingerprint))
	assert.False(t, signal.IsCompliant("managed-2", manifest.Fingerprint))
	assert.False(t, signal.IsCompliant("managed-1", "some-other-fingerprint"))
	assert.False(t, signal.IsCompliant("never-seen", manifest.Fingerprint))
}

func TestCheckBeforeFirstDelivery(t *testing.T) {
	transport := &PolicyTransport{
		Client: fake.NewClientBuilder().WithScheme(configs.GetRuntimeScheme()).Build(),
	}

	signal, err := transport.Check(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, signal.Fingerprint)
	assert.False(t, signal.IsCompliant("managed-1", "anything"))
}
