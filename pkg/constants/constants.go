// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package constants

const (
	// DefaultNamespace is where the distributor itself and its status surface live.
	DefaultNamespace = "trust-distributor-system"

	// TrustBundleConfigMapName is the well-known trust-bundle object on every cluster.
	TrustBundleConfigMapName = "trusted-ca-bundle"

	// TrustBundleConfigMapNamespace is the well-known namespace of the trust-bundle object.
	TrustBundleConfigMapNamespace = "openshift-config"

	// TrustBundleKey is the data key holding the concatenated PEM blocks.
	TrustBundleKey = "ca-bundle.crt"

	// ClusterProxyName is the name of the cluster-scoped proxy configuration object.
	ClusterProxyName = "cluster"

	// DistributionPolicyName names the governance policy carrying the bundle to the fleet.
	DistributionPolicyName = "trusted-ca-bundle-distribution"

	// DistributionPlacementName names the placement rule / binding pair of the policy.
	DistributionPlacementName = "trusted-ca-bundle-placement"

	// StatusConfigMapName is the per-pass compliance report surfaced for operator tooling.
	StatusConfigMapName = "trust-distributor-status"

	// AdminKubeconfigSecretSuffix is appended to a managed cluster name to locate its
	// credential secret inside the cluster namespace on the hub.
	AdminKubeconfigSecretSuffix = "-admin-kubeconfig"

	// KubeconfigSecretKey is the data key of the credential secret.
	KubeconfigSecretKey = "kubeconfig"
)

const (
	// BundleFingerprintAnnotation records the fingerprint of the bundle an object was
	// rendered from, used for idempotence checks.
	BundleFingerprintAnnotation = "trust.validatedpatterns.io/bundle-fingerprint"

	// OwnedLabel marks objects written by the distributor so passes only ever touch
	// their own resources.
	OwnedLabel = "trust.validatedpatterns.io/owned"

	// OwnedLabelValue is the value set on OwnedLabel.
	OwnedLabelValue = "distributor"
)

// ManagedClusterConditionAvailable is the liveness condition reported by the cluster
// management control plane for each managed cluster.
const ManagedClusterConditionAvailable = "ManagedClusterConditionAvailable"
