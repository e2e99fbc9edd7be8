// Package azure implements the backend.Backend verbs against Azure
// Resource Manager. Every verb is expressed as a PUT-style
// CreateOrUpdate keyed by resource name, so re-running with the same
// names converges on the existing resources.
package azure

import (
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/operationalinsights/armoperationalinsights"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/postgresql/armpostgresqlflexibleservers"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/privatedns/armprivatedns"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/rs/zerolog"

	"github.com/edvin/landingzone/internal/model"
)

// Options configures the ARM backend.
type Options struct {
	SubscriptionID string
	TenantID       string
	// Credential overrides the default credential chain; used by
	// tests.
	Credential azcore.TokenCredential
	Logger     zerolog.Logger
}

// Backend talks to Azure Resource Manager.
type Backend struct {
	opts   Options
	cred   azcore.TokenCredential
	logger zerolog.Logger

	groups          *armresources.ResourceGroupsClient
	vnets           *armnetwork.VirtualNetworksClient
	subnets         *armnetwork.SubnetsClient
	peerings        *armnetwork.VirtualNetworkPeeringsClient
	publicIPs       *armnetwork.PublicIPAddressesClient
	firewalls       *armnetwork.AzureFirewallsClient
	bastions        *armnetwork.BastionHostsClient
	endpoints       *armnetwork.PrivateEndpointsClient
	zones           *armprivatedns.PrivateZonesClient
	links           *armprivatedns.VirtualNetworkLinksClient
	workspaces      *armoperationalinsights.WorkspacesClient
	diagnostics     *armmonitor.DiagnosticSettingsClient
	vaults          *armkeyvault.VaultsClient
	accounts        *armstorage.AccountsClient
	containers      *armstorage.BlobContainersClient
	shares          *armstorage.FileSharesClient
	tables          *armstorage.TableClient
	queues          *armstorage.QueueClient
	servers         *armpostgresqlflexibleservers.ServersClient
	serverDatabases *armpostgresqlflexibleservers.DatabasesClient

	secretsMu      sync.Mutex
	secretsClients map[string]*azsecrets.Client
}

// New builds the ARM backend, authenticating through the default
// credential chain unless Options.Credential is set.
func New(opts Options) (*Backend, error) {
	if opts.SubscriptionID == "" {
		return nil, fmt.Errorf("AZURE_SUBSCRIPTION_ID is required")
	}
	if opts.TenantID == "" {
		return nil, fmt.Errorf("AZURE_TENANT_ID is required")
	}

	cred := opts.Credential
	if cred == nil {
		c, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("build azure credential: %w", err)
		}
		cred = c
	}

	b := &Backend{
		opts:           opts,
		cred:           cred,
		logger:         opts.Logger.With().Str("component", "azure-backend").Logger(),
		secretsClients: map[string]*azsecrets.Client{},
	}

	var err error
	if b.groups, err = armresources.NewResourceGroupsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("resource groups client: %w", err)
	}
	if b.vnets, err = armnetwork.NewVirtualNetworksClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("virtual networks client: %w", err)
	}
	if b.subnets, err = armnetwork.NewSubnetsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("subnets client: %w", err)
	}
	if b.peerings, err = armnetwork.NewVirtualNetworkPeeringsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("peerings client: %w", err)
	}
	if b.publicIPs, err = armnetwork.NewPublicIPAddressesClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("public IPs client: %w", err)
	}
	if b.firewalls, err = armnetwork.NewAzureFirewallsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("firewalls client: %w", err)
	}
	if b.bastions, err = armnetwork.NewBastionHostsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("bastions client: %w", err)
	}
	if b.endpoints, err = armnetwork.NewPrivateEndpointsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("private endpoints client: %w", err)
	}
	if b.zones, err = armprivatedns.NewPrivateZonesClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("private DNS zones client: %w", err)
	}
	if b.links, err = armprivatedns.NewVirtualNetworkLinksClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("DNS links client: %w", err)
	}
	if b.workspaces, err = armoperationalinsights.NewWorkspacesClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("log workspaces client: %w", err)
	}
	if b.diagnostics, err = armmonitor.NewDiagnosticSettingsClient(cred, nil); err != nil {
		return nil, fmt.Errorf("diagnostics client: %w", err)
	}
	if b.vaults, err = armkeyvault.NewVaultsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("vaults client: %w", err)
	}
	if b.accounts, err = armstorage.NewAccountsClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("storage accounts client: %w", err)
	}
	if b.containers, err = armstorage.NewBlobContainersClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("blob containers client: %w", err)
	}
	if b.shares, err = armstorage.NewFileSharesClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("file shares client: %w", err)
	}
	if b.tables, err = armstorage.NewTableClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("tables client: %w", err)
	}
	if b.queues, err = armstorage.NewQueueClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("queues client: %w", err)
	}
	if b.servers, err = armpostgresqlflexibleservers.NewServersClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("flexible servers client: %w", err)
	}
	if b.serverDatabases, err = armpostgresqlflexibleservers.NewDatabasesClient(opts.SubscriptionID, cred, nil); err != nil {
		return nil, fmt.Errorf("server databases client: %w", err)
	}

	return b, nil
}

func toValue[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func toTags(tags model.TagSet) map[string]*string {
	out := make(map[string]*string, len(tags))
	for k, v := range tags {
		v := v
		out[k] = &v
	}
	return out
}
