// Copyright (c) 2025 Red Hat, Inc.
// Licensed under the Apache License 2.0

package sources

import (
	"context"
	"errors"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/bundle"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/constants"
	"github.com/validatedpatterns-sandbox/ramendr-starter-kit/pkg/logger"
)

// Reader fetches the raw PEM payload of one source and extracts its certificates.
// Failures come back as a *ReadError wrapping one of the sentinel reasons; the
// caller decides whether a source's failure is fatal to the whole run.
type Reader interface {
	Read(ctx context.Context, src CertificateSource) ([]bundle.CertificatePEM, error)
}

// HubReader reads the hub's own trust-bundle ConfigMap. Absence of the object is
// SourceMissing, not empty success.
type HubReader struct {
	Client client.Client
}

func (r *HubReader) Read(ctx context.Context, src CertificateSource) ([]bundle.CertificatePEM, error) {
	return readTrustBundleConfigMap(ctx, r.Client, src)
}

// RemoteClientBuilder turns a raw kubeconfig into a client scoped to one managed
// cluster. It exists as an indirection so tests can substitute fake clients.
type RemoteClientBuilder func(kubeconfig []byte, timeout time.Duration) (client.Client, error)

// ManagedClusterReader reads the trust-bundle ConfigMap off a managed cluster,
// using the cluster's admin kubeconfig secret on the hub as a short-lived
// credential. The credential is acquired per call and never written to disk.
type ManagedClusterReader struct {
	HubClient client.Client
	NewRemote RemoteClientBuilder
	Timeout   time.Duration
}

// NewManagedClusterReader wires the default clientcmd-based remote builder.
func NewManagedClusterReader(hubClient client.Client, timeout time.Duration) *ManagedClusterReader {
	return &ManagedClusterReader{
		HubClient: hubClient,
		NewRemote: buildRemoteClient,
		Timeout:   timeout,
	}
}

func buildRemoteClient(kubeconfig []byte, timeout time.Duration) (client.Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	restConfig.Timeout = timeout
	return client.New(restConfig, client.Options{})
}

func (r *ManagedClusterReader) Read(ctx context.Context, src CertificateSource) ([]bundle.CertificatePEM, error) {
	if !src.Reachable {
		return nil, newReadError(src.ID, ErrUnreachable, errors.New("inventory reports cluster unavailable"))
	}

	credential := &corev1.Secret{}
	err := r.HubClient.Get(ctx, types.NamespacedName{
		Namespace: src.ClusterName,
		Name:      src.ClusterName + constants.AdminKubeconfigSecretSuffix,
	}, credential)
	if err != nil {
		return nil, newReadError(src.ID, ErrCredentialUnavailable, err)
	}
	kubeconfig, ok := credential.Data[constants.KubeconfigSecretKey]
	if !ok || len(kubeconfig) == 0 {
		return nil, newReadError(src.ID, ErrCredentialUnavailable,
			errors.New("credential secret has no kubeconfig key"))
	}

	remote, err := r.NewRemote(kubeconfig, r.Timeout)
	if err != nil {
		return nil, newReadError(src.ID, ErrCredentialUnavailable, err)
	}
	return readTrustBundleConfigMap(ctx, remote, src)
}

func readTrustBundleConfigMap(ctx context.Context, c client.Client,
	src CertificateSource,
) ([]bundle.CertificatePEM, error) {
	cm := &corev1.ConfigMap{}
	err := c.Get(ctx, types.NamespacedName{
		Namespace: constants.TrustBundleConfigMapNamespace,
		Name:      constants.TrustBundleConfigMapName,
	}, cm)
	switch {
	case apierrors.IsNotFound(err):
		return nil, newReadError(src.ID, ErrSourceMissing, err)
	case err != nil:
		return nil, newReadError(src.ID, ErrUnreachable, err)
	}

	payload, ok := cm.Data[constants.TrustBundleKey]
	if !ok || payload == "" {
		return nil, newReadError(src.ID, ErrSourceMissing,
			errors.New("trust-bundle object has no "+constants.TrustBundleKey+" key"))
	}

	certs, dropped, err := bundle.ParseCertificates([]byte(payload))
	if err != nil {
		return nil, newReadError(src.ID, ErrMalformedPEM, err)
	}
	if dropped > 0 {
		logger.ZapLogger("source-reader").Warnf(
			"dropped %d malformed block(s) from source %s", dropped, src.ID)
	}
	return certs, nil
}
