// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package hub

import (
	"context"
	"errors"
	"fmt"

	configv1 "github.com/openshift/api/config/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/bundle"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
)

// ErrPartialApply signals that the bundle object was written but pointing the
// proxy trust configuration at it failed. The reconcile loop must retry instead
// of assuming convergence.
var ErrPartialApply = errors.New("partial apply: bundle written but proxy not updated")

// Configurator installs a trust bundle as the hub cluster's egress-proxy trust
// store: it writes the bundle ConfigMap and points the cluster Proxy's trustedCA
// at it. Apply is idempotent on the bundle fingerprint.
type Configurator struct {
	Client client.Client
}

func (c *Configurator) Apply(ctx context.Context, b *bundle.TrustBundle) error {
	log := logger.ZapLogger("trust-configurator")

	installed, err := c.installedFingerprint(ctx)
	if err != nil {
		return err
	}
	if installed == b.Fingerprint() {
		log.Debugw("hub bundle already current", "fingerprint", b.Fingerprint())
		return nil
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      constants.TrustBundleConfigMapName,
			Namespace: constants.TrustBundleConfigMapNamespace,
		},
	}
	_, err = controllerutil.CreateOrUpdate(ctx, c.Client, cm, func() error {
		if cm.Labels == nil {
			cm.Labels = map[string]string{}
		}
		cm.Labels[constants.OwnedLabel] = constants.OwnedLabelValue
		if cm.Annotations == nil {
			cm.Annotations = map[string]string{}
		}
		cm.Annotations[constants.BundleFingerprintAnnotation] = b.Fingerprint()
		cm.Data = map[string]string{constants.TrustBundleKey: string(b.Encode())}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write hub trust-bundle object: %w", err)
	}

	if err := c.pointProxyAtBundle(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPartialApply, err)
	}

	log.Infow("installed hub trust bundle",
		"certificates", b.Len(), "fingerprint", b.Fingerprint())
	return nil
}

// installedFingerprint reads the fingerprint annotation of the currently
// installed bundle, but only counts it as installed when the proxy already
// references the bundle object. Before the first apply both are absent and the
// empty string is returned.
func (c *Configurator) installedFingerprint(ctx context.Context) (string, error) {
	cm := &corev1.ConfigMap{}
	err := c.Client.Get(ctx, types.NamespacedName{
		Namespace: constants.TrustBundleConfigMapNamespace,
		Name:      constants.TrustBundleConfigMapName,
	}, cm)
	if err != nil {
		if client.IgnoreNotFound(err) == nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to read installed bundle: %w", err)
	}

	proxy := &configv1.Proxy{}
	err = c.Client.Get(ctx, types.NamespacedName{Name: constants.ClusterProxyName}, proxy)
	if err != nil {
		if client.IgnoreNotFound(err) == nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to read cluster proxy: %w", err)
	}
	if proxy.Spec.TrustedCA.Name != constants.TrustBundleConfigMapName {
		return "", nil
	}
	return cm.Annotations[constants.BundleFingerprintAnnotation], nil
}

func (c *Configurator) pointProxyAtBundle(ctx context.Context) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		proxy := &configv1.Proxy{}
		err := c.Client.Get(ctx, types.NamespacedName{Name: constants.ClusterProxyName}, proxy)
		if err != nil {
			return err
		}
		if proxy.Spec.TrustedCA.Name == constants.TrustBundleConfigMapName {
			return nil
		}
		proxy.Spec.TrustedCA.Name = constants.TrustBundleConfigMapName
		return c.Client.Update(ctx, proxy)
	})
}
