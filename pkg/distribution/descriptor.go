// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package distribution

import (
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	policyv1 "open-cluster-management.io/governance-policy-propagator/api/v1"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/bundle"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
)

// Manifest is the declarative content the policy transport pushes to every
// managed cluster: the trust-bundle object plus the proxy-trust-reference patch,
// wrapped as governance policy templates. Describing the same bundle always
// yields byte-identical template payloads, so the transport can detect no-op
// pushes by fingerprint alone.
type Manifest struct {
	Policy      *policyv1.Policy
	Fingerprint string
}

// Describe renders the distribution manifest for a bundle. It is a pure
// transformation with no side effects.
func Describe(b *bundle.TrustBundle) (*Manifest, error) {
	bundleTemplate, err := configurationPolicy("trusted-ca-bundle-content", map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":      constants.TrustBundleConfigMapName,
			"namespace": constants.TrustBundleConfigMapNamespace,
			"annotations": map[string]interface{}{
				constants.BundleFingerprintAnnotation: b.Fingerprint(),
			},
			"labels": map[string]interface{}{
				constants.OwnedLabel: constants.OwnedLabelValue,
			},
		},
		"data": map[string]interface{}{
			constants.TrustBundleKey: string(b.Encode()),
		},
	})
	if err != nil {
		return nil, err
	}

	proxyTemplate, err := configurationPolicy("trusted-ca-proxy-reference", map[string]interface{}{
		"apiVersion": "config.openshift.io/v1",
		"kind":       "Proxy",
		"metadata": map[string]interface{}{
			"name": constants.ClusterProxyName,
		},
		"spec": map[string]interface{}{
			"trustedCA": map[string]interface{}{
				"name": constants.TrustBundleConfigMapName,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	policy := &policyv1.Policy{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Policy",
			APIVersion: policyv1.GroupVersion.String(),
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.DistributionPolicyName,
			Namespace: constants.DefaultNamespace,
			Labels: map[string]string{
				constants.OwnedLabel: constants.OwnedLabelValue,
			},
			Annotations: map[string]string{
				constants.BundleFingerprintAnnotation: b.Fingerprint(),
			},
		},
		Spec: policyv1.PolicySpec{
			Disabled:          false,
			RemediationAction: policyv1.Enforce,
			PolicyTemplates: []*policyv1.PolicyTemplate{
				{ObjectDefinition: runtime.RawExtension{Raw: bundleTemplate}},
				{ObjectDefinition: runtime.RawExtension{Raw: proxyTemplate}},
			},
		},
	}

	return &Manifest{Policy: policy, Fingerprint: b.Fingerprint()}, nil
}

// configurationPolicy wraps one desired object in a musthave ConfigurationPolicy
// definition. json.Marshal sorts map keys, which keeps the payload deterministic.
func configurationPolicy(name string, object map[string]interface{}) ([]byte, error) {
	raw, err := json.Marshal(map[string]interface{}{
		"apiVersion": "policy.open-cluster-management.io/v1",
		"kind":       "ConfigurationPolicy",
		"metadata": map[string]interface{}{
			"name": name,
		},
		"spec": map[string]interface{}{
			"severity":          "high",
			"remediationAction": "enforce",
			"object-templates": []interface{}{
				map[string]interface{}{
					"complianceType":   "musthave",
					"objectDefinition": object,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render configuration policy %s: %w", name, err)
	}
	return raw, nil
}
