package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	clusterv1 "open-cluster-management.io/api/cluster/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/configs"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/sources"
)

func managedCluster(name string, available bool) *clusterv1.ManagedCluster {
	status := metav1.ConditionFalse
	if available {
		status = metav1.ConditionTrue
	}
	return &clusterv1.ManagedCluster{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: clusterv1.ManagedClusterStatus{
			Conditions: []metav1.Condition{
				{
					Type:   constants.ManagedClusterConditionAvailable,
					Status: status,
					Reason: "Probe",
				},
			},
		},
	}
}

func TestTakeSnapshot(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(configs.GetRuntimeScheme()).
		WithObjects(
			managedCluster("zoo", true),
			managedCluster("alpha", false),
			managedCluster("mid", true),
		).Build()

	snapshot, err := TakeSnapshot(context.Background(), c)
	assert.NoError(t, err)

	// sorted by name for deterministic inventory order
	assert.Equal(t, []string{"alpha", "mid", "zoo"}, snapshot.ClusterNames())
	assert.False(t, snapshot.Clusters[0].Available)
	assert.True(t, snapshot.Clusters[1].Available)
}

func TestSnapshotSourcesHubFirst(t *testing.T) {
	snapshot := &Snapshot{Clusters: []Cluster{
		{Name: "one", Available: true},
		{Name: "two", Available: false},
	}}

	srcs := snapshot.Sources()
	assert.Len(t, srcs, 3)
	assert.Equal(t, sources.HubSource, srcs[0].Kind)
	assert.Equal(t, "managed-cluster/one", srcs[1].ID)
	assert.True(t, srcs[1].Reachable)
	assert.Equal(t, "managed-cluster/two", srcs[2].ID)
	assert.False(t, srcs[2].Reachable)
}
