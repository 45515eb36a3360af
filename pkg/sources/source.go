package sources

// SourceKind distinguishes the hub's own trust-bundle object from one read off a
// managed cluster.
type SourceKind string

const (
	HubSource            SourceKind = "hub"
	ManagedClusterSource SourceKind = "managed-cluster"
)

// CertificateSource identifies where CA material comes from during one pass. It is
// rebuilt from the live cluster inventory at the start of every pass and never
// persisted.
type CertificateSource struct {
	ID          string
	Kind        SourceKind
	ClusterName string
	Reachable   bool
}

// NewHubSource is the well-known source for the hub's own bundle.
func NewHubSource() CertificateSource {
	return CertificateSource{ID: "hub", Kind: HubSource, Reachable: true}
}

// NewManagedClusterSource describes one managed cluster from the inventory
// snapshot, carrying its liveness flag.
func NewManagedClusterSource(clusterName string, reachable bool) CertificateSource {
	return CertificateSource{
		ID:          "managed-cluster/" + clusterName,
		Kind:        ManagedClusterSource,
		ClusterName: clusterName,
		Reachable:   reachable,
	}
}
