package distribution

import (
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	policyv1 "open-cluster-management.io/governance-policy-propagator/api/v1"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/bundle"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
)

func testBundle(payloads ...string) *bundle.TrustBundle {
	var raw []byte
	for _, payload := range payloads {
		raw = append(raw, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: []byte(payload),
		})...)
	}
	certs, _, err := bundle.ParseCertificates(raw)
	if err != nil {
		panic(err)
	}
	return bundle.Merge([]bundle.SourceCertificates{{SourceID: "hub", Certs: certs}})
}

func TestDescribeIsDeterministic(t *testing.T) {
	first, err := Describe(testBundle("cert-a", "cert-b"))
	assert.NoError(t, err)
	second, err := Describe(testBundle("cert-a", "cert-b"))
	assert.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, len(first.Policy.Spec.PolicyTemplates), len(second.Policy.Spec.PolicyTemplates))
	for i := range first.Policy.Spec.PolicyTemplates {
		assert.Equal(t,
			first.Policy.Spec.PolicyTemplates[i].ObjectDefinition.Raw,
			second.Policy.Spec.PolicyTemplates[i].ObjectDefinition.Raw,
			"template %d must be byte-identical", i)
	}
}

func TestDescribeCarriesBundleAndProxyPatch(t *testing.T) {
	b := testBundle("cert-a")
	manifest, err := Describe(b)
	assert.NoError(t, err)

	assert.Equal(t, b.Fingerprint(), manifest.Fingerprint)
	assert.Equal(t, constants.DistributionPolicyName, manifest.Policy.Name)
	assert.Equal(t, policyv1.Enforce, manifest.Policy.Spec.RemediationAction)
	assert.Equal(t, b.Fingerprint(),
		manifest.Policy.Annotations[constants.BundleFingerprintAnnotation])

	assert.Len(t, manifest.Policy.Spec.PolicyTemplates, 2)
	bundleTemplate := string(manifest.Policy.Spec.PolicyTemplates[0].ObjectDefinition.Raw)
	assert.Contains(t, bundleTemplate, constants.TrustBundleConfigMapName)
	assert.Contains(t, bundleTemplate, "BEGIN CERTIFICATE")
	proxyTemplate := string(manifest.Policy.Spec.PolicyTemplates[1].ObjectDefinition.Raw)
	assert.Contains(t, proxyTemplate, `"kind":"Proxy"`)
	assert.Contains(t, proxyTemplate, constants.TrustBundleConfigMapName)
}

func TestDescribeChangesWithBundle(t *testing.T) {
	first, err := Describe(testBundle("cert-a"))
	assert.NoError(t, err)
	second, err := Describe(testBundle("cert-a", "cert-b"))
	assert.NoError(t, err)

	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t,
		first.Policy.Spec.PolicyTemplates[0].ObjectDefinition.Raw,
		second.Policy.Spec.PolicyTemplates[0].ObjectDefinition.Raw)
}
