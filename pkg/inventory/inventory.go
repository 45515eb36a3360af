// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package inventory

import (
	"context"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/api/meta"
	clusterv1 "open-cluster-management.io/api/cluster/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/sources"
)

// Cluster is one managed cluster as the inventory collaborator reports it.
type Cluster struct {
	Name      string
	Available bool
}

// Snapshot is the read-only fleet view one pass works against. It is taken once
// at the start of the pass; clusters joining or leaving mid-pass are picked up by
// the next one.
type Snapshot struct {
	Clusters []Cluster
}

// TakeSnapshot lists the ManagedCluster inventory on the hub. Clusters are
// sorted by name so inventory order, and with it bundle serialization order, is
// deterministic across passes.
func TakeSnapshot(ctx context.Context, c client.Client) (*Snapshot, error) {
	clusterList := &clusterv1.ManagedClusterList{}
	if err := c.List(ctx, clusterList); err != nil {
		return nil, fmt.Errorf("failed to list managed clusters: %w", err)
	}

	snapshot := &Snapshot{}
	for _, mc := range clusterList.Items {
		snapshot.Clusters = append(snapshot.Clusters, Cluster{
			Name: mc.Name,
			Available: meta.IsStatusConditionTrue(mc.Status.Conditions,
				constants.ManagedClusterConditionAvailable),
		})
	}
	sort.Slice(snapshot.Clusters, func(i, j int) bool {
		return snapshot.Clusters[i].Name < snapshot.Clusters[j].Name
	})
	return snapshot, nil
}

// Sources derives this pass's certificate sources: the hub first, then the
// managed clusters in inventory order.
func (s *Snapshot) Sources() []sources.CertificateSource {
	srcs := []sources.CertificateSource{sources.NewHubSource()}
	for _, cluster := range s.Clusters {
		srcs = append(srcs, sources.NewManagedClusterSource(cluster.Name, cluster.Available))
	}
	return srcs
}

// ClusterNames returns the managed cluster names in inventory order.
func (s *Snapshot) ClusterNames() []string {
	names := make([]string, 0, len(s.Clusters))
	for _, cluster := range s.Clusters {
		names = append(names, cluster.Name)
	}
	return names
}
