package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/edvin/landingzone/internal/backend"
	"github.com/edvin/landingzone/internal/model"
)

func (b *Backend) EnsureResourceGroup(ctx context.Context, name, region string, tags model.TagSet) (string, error) {
	resp, err := b.groups.CreateOrUpdate(ctx, name, armresources.ResourceGroup{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure resource group %s: %w", name, err)
	}
	return toValue(resp.ID), nil
}

func (b *Backend) DeleteResourceGroup(ctx context.Context, name string) error {
	poller, err := b.groups.BeginDelete(ctx, name, nil)
	if err != nil {
		return fmt.Errorf("delete resource group %s: %w", name, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("delete resource group %s: %w", name, err)
	}
	return nil
}

func (b *Backend) EnsureVirtualNetwork(ctx context.Context, rg, name, region, addressSpace string, tags model.TagSet) (string, error) {
	poller, err := b.vnets.BeginCreateOrUpdate(ctx, rg, name, armnetwork.VirtualNetwork{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		Properties: &armnetwork.VirtualNetworkPropertiesFormat{
			AddressSpace: &armnetwork.AddressSpace{
				AddressPrefixes: []*string{to.Ptr(addressSpace)},
			},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure vnet %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure vnet %s: %w", name, err)
	}
	return toValue(resp.ID), nil
}

func (b *Backend) EnsureSubnet(ctx context.Context, rg, vnetName, name, prefix string, cfg backend.SubnetConfig) (string, error) {
	props := &armnetwork.SubnetPropertiesFormat{
		AddressPrefix: to.Ptr(prefix),
	}
	if cfg.Delegation != "" {
		props.Delegations = []*armnetwork.Delegation{{
			Name: to.Ptr("delegation"),
			Properties: &armnetwork.ServiceDelegationPropertiesFormat{
				ServiceName: to.Ptr(cfg.Delegation),
			},
		}}
	}
	for _, svc := range cfg.ServiceEndpoints {
		props.ServiceEndpoints = append(props.ServiceEndpoints, &armnetwork.ServiceEndpointPropertiesFormat{
			Service: to.Ptr(svc),
		})
	}

	poller, err := b.subnets.BeginCreateOrUpdate(ctx, rg, vnetName, name, armnetwork.Subnet{
		Properties: props,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure subnet %s/%s: %w", vnetName, name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure subnet %s/%s: %w", vnetName, name, err)
	}
	return toValue(resp.ID), nil
}

// EnsurePeering creates one directional peering record. The
// deterministic peering name makes repeated runs a no-op update of the
// same record instead of an accumulation.
func (b *Backend) EnsurePeering(ctx context.Context, rg, vnetName, peeringName, remoteNetworkID string) (string, error) {
	poller, err := b.peerings.BeginCreateOrUpdate(ctx, rg, vnetName, peeringName, armnetwork.VirtualNetworkPeering{
		Properties: &armnetwork.VirtualNetworkPeeringPropertiesFormat{
			RemoteVirtualNetwork:      &armnetwork.SubResource{ID: to.Ptr(remoteNetworkID)},
			AllowVirtualNetworkAccess: to.Ptr(true),
			AllowForwardedTraffic:     to.Ptr(true),
			AllowGatewayTransit:       to.Ptr(false),
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure peering %s on %s: %w", peeringName, vnetName, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure peering %s on %s: %w", peeringName, vnetName, err)
	}
	return toValue(resp.ID), nil
}

func (b *Backend) DeletePeering(ctx context.Context, rg, vnetName, peeringName string) error {
	poller, err := b.peerings.BeginDelete(ctx, rg, vnetName, peeringName, nil)
	if err != nil {
		return fmt.Errorf("delete peering %s on %s: %w", peeringName, vnetName, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("delete peering %s on %s: %w", peeringName, vnetName, err)
	}
	return nil
}

func (b *Backend) EnsurePrivateEndpoint(ctx context.Context, rg, name, region, subnetID, targetID, groupID string, tags model.TagSet) (string, error) {
	poller, err := b.endpoints.BeginCreateOrUpdate(ctx, rg, name, armnetwork.PrivateEndpoint{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		Properties: &armnetwork.PrivateEndpointProperties{
			Subnet: &armnetwork.Subnet{ID: to.Ptr(subnetID)},
			PrivateLinkServiceConnections: []*armnetwork.PrivateLinkServiceConnection{{
				Name: to.Ptr(name),
				Properties: &armnetwork.PrivateLinkServiceConnectionProperties{
					PrivateLinkServiceID: to.Ptr(targetID),
					GroupIDs:             []*string{to.Ptr(groupID)},
				},
			}},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure private endpoint %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure private endpoint %s: %w", name, err)
	}
	return toValue(resp.ID), nil
}

// ensurePublicIP backs the firewall and bastion, which both require a
// standard static public address.
func (b *Backend) ensurePublicIP(ctx context.Context, rg, name, region string, tags model.TagSet) (string, error) {
	poller, err := b.publicIPs.BeginCreateOrUpdate(ctx, rg, name, armnetwork.PublicIPAddress{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		SKU: &armnetwork.PublicIPAddressSKU{
			Name: to.Ptr(armnetwork.PublicIPAddressSKUNameStandard),
		},
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{
			PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure public IP %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure public IP %s: %w", name, err)
	}
	return toValue(resp.ID), nil
}

func (b *Backend) EnsureFirewall(ctx context.Context, rg, name, region, subnetID string, tags model.TagSet) (string, error) {
	pipID, err := b.ensurePublicIP(ctx, rg, name+"-pip", region, tags)
	if err != nil {
		return "", err
	}
	poller, err := b.firewalls.BeginCreateOrUpdate(ctx, rg, name, armnetwork.AzureFirewall{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		Properties: &armnetwork.AzureFirewallPropertiesFormat{
			SKU: &armnetwork.AzureFirewallSKU{
				Name: to.Ptr(armnetwork.AzureFirewallSKUNameAZFWVnet),
				Tier: to.Ptr(armnetwork.AzureFirewallSKUTierStandard),
			},
			IPConfigurations: []*armnetwork.AzureFirewallIPConfiguration{{
				Name: to.Ptr("fw-ipconfig"),
				Properties: &armnetwork.AzureFirewallIPConfigurationPropertiesFormat{
					Subnet:          &armnetwork.SubResource{ID: to.Ptr(subnetID)},
					PublicIPAddress: &armnetwork.SubResource{ID: to.Ptr(pipID)},
				},
			}},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure firewall %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure firewall %s: %w", name, err)
	}
	return toValue(resp.ID), nil
}

func (b *Backend) EnsureBastion(ctx context.Context, rg, name, region, subnetID string, tags model.TagSet) (string, error) {
	pipID, err := b.ensurePublicIP(ctx, rg, name+"-pip", region, tags)
	if err != nil {
		return "", err
	}
	poller, err := b.bastions.BeginCreateOrUpdate(ctx, rg, name, armnetwork.BastionHost{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		Properties: &armnetwork.BastionHostPropertiesFormat{
			IPConfigurations: []*armnetwork.BastionHostIPConfiguration{{
				Name: to.Ptr("bastion-ipconfig"),
				Properties: &armnetwork.BastionHostIPConfigurationPropertiesFormat{
					Subnet:          &armnetwork.SubResource{ID: to.Ptr(subnetID)},
					PublicIPAddress: &armnetwork.SubResource{ID: to.Ptr(pipID)},
				},
			}},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure bastion %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure bastion %s: %w", name, err)
	}
	return toValue(resp.ID), nil
}
