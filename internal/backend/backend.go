// Package backend abstracts the cloud provider as a set of idempotent
// resource verbs. The provisioner never talks to the platform through
// any other path, so a fake backend is enough to exercise every
// provisioning flow in tests.
package backend

import (
	"context"

	"github.com/edvin/landingzone/internal/crypto"
	"github.com/edvin/landingzone/internal/model"
)

// NetworkRules is the network-access posture of a domain resource.
// Deny-by-default: public access only with the explicit override flag.
type NetworkRules struct {
	PublicAccess bool
	// SubnetIDs are the subnets granted service access (the spoke's
	// own subnet plus the hub shared-services subnet).
	SubnetIDs []string
	// AllowedCIDRs are extra caller-supplied address ranges, already
	// normalized to a minimal set.
	AllowedCIDRs []string
}

// SubnetConfig carries optional subnet features.
type SubnetConfig struct {
	// Delegation is a service delegation such as
	// "Microsoft.DBforPostgreSQL/flexibleServers", or empty.
	Delegation string
	// ServiceEndpoints enables service endpoints on the subnet.
	ServiceEndpoints []string
}

// FlexibleServerConfig describes the database spoke's server.
type FlexibleServerConfig struct {
	AdminUsername     string
	AdminPassword     crypto.Sensitive
	DelegatedSubnetID string
	PrivateDNSZoneID  string
	Tags              model.TagSet
}

// Backend is the resource-creation boundary. Every verb is an
// "ensure": creating the resource if absent, converging it if present,
// and returning the platform identity either way. Names are the
// convergence keys, so deterministic names converge and randomized
// names create.
type Backend interface {
	EnsureResourceGroup(ctx context.Context, name, region string, tags model.TagSet) (string, error)
	DeleteResourceGroup(ctx context.Context, name string) error

	EnsureVirtualNetwork(ctx context.Context, resourceGroup, name, region, addressSpace string, tags model.TagSet) (string, error)
	EnsureSubnet(ctx context.Context, resourceGroup, vnetName, name, prefix string, cfg SubnetConfig) (string, error)
	// EnsurePeering creates one directional peering record from
	// vnetName to remoteNetworkID.
	EnsurePeering(ctx context.Context, resourceGroup, vnetName, peeringName, remoteNetworkID string) (string, error)
	DeletePeering(ctx context.Context, resourceGroup, vnetName, peeringName string) error

	EnsurePrivateDNSZone(ctx context.Context, resourceGroup, zoneName string, tags model.TagSet) (string, error)
	EnsureDNSZoneLink(ctx context.Context, resourceGroup, zoneName, linkName, networkID string) (string, error)

	EnsureLogWorkspace(ctx context.Context, resourceGroup, name, region string, retentionDays int32, tags model.TagSet) (string, error)
	EnsureFirewall(ctx context.Context, resourceGroup, name, region, subnetID string, tags model.TagSet) (string, error)
	EnsureBastion(ctx context.Context, resourceGroup, name, region, subnetID string, tags model.TagSet) (string, error)
	// EnsureDiagnostics points a resource's diagnostic stream at the
	// hub log sink.
	EnsureDiagnostics(ctx context.Context, settingName, resourceID, logSinkID string) error

	EnsureVault(ctx context.Context, resourceGroup, name, region string, rules NetworkRules, tags model.TagSet) (id, uri string, err error)
	SetSecret(ctx context.Context, vaultURI, name string, value crypto.Sensitive) error
	// GetSecret reads a secret's current value; found is false when the
	// secret does not exist.
	GetSecret(ctx context.Context, vaultURI, name string) (value crypto.Sensitive, found bool, err error)

	EnsureStorageAccount(ctx context.Context, resourceGroup, name, region string, rules NetworkRules, tags model.TagSet) (id, blobEndpoint string, err error)
	GetStorageAccountKey(ctx context.Context, resourceGroup, account string) (crypto.Sensitive, error)
	EnsureBlobContainer(ctx context.Context, resourceGroup, account, name string) error
	EnsureFileShare(ctx context.Context, resourceGroup, account, name string) error
	EnsureTable(ctx context.Context, resourceGroup, account, name string) error
	EnsureQueue(ctx context.Context, resourceGroup, account, name string) error
	// EnsurePrivateEndpoint joins targetID's groupID sub-service to a
	// subnet. The endpoint name is the convergence key.
	EnsurePrivateEndpoint(ctx context.Context, resourceGroup, name, region, subnetID, targetID, groupID string, tags model.TagSet) (string, error)

	EnsureFlexibleServer(ctx context.Context, resourceGroup, name, region string, cfg FlexibleServerConfig) (id, fqdn string, err error)
	EnsureServerDatabase(ctx context.Context, resourceGroup, serverName, name string) error
}
