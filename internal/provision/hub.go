package provision

import (
	"context"
	"fmt"

	"github.com/edvin/landingzone/internal/backend"
	"github.com/edvin/landingzone/internal/config"
	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/naming"
)

// ApplyHub converges the hub and publishes its output bundle. Hub
// resource names are deterministic per environment, so a re-apply
// converges on the existing resources.
func (p *Provisioner) ApplyHub(ctx context.Context, m *config.Manifest) (*model.HubOutputs, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Hub.DeployFirewall && m.Hub.Subnets[model.SubnetFirewall] == "" {
		return nil, fmt.Errorf("hub.subnets.firewall: required when deploy_firewall is set")
	}
	if m.Hub.DeployBastion && m.Hub.Subnets[model.SubnetBastion] == "" {
		return nil, fmt.Errorf("hub.subnets.bastion: required when deploy_bastion is set")
	}

	logger := p.logger.With().Str("hub", m.Environment).Logger()
	tags := model.MergeTags(baseTags(m.Environment), m.Tags, m.Hub.Tags)

	rgName := naming.HubResource(m.Environment, "rg")
	if _, err := p.backend.EnsureResourceGroup(ctx, rgName, m.Region, tags); err != nil {
		return nil, err
	}
	logger.Info().Str("resource_group", rgName).Msg("hub resource group ready")

	vnetName := naming.HubResource(m.Environment, "vnet")
	vnetID, err := p.backend.EnsureVirtualNetwork(ctx, rgName, vnetName, m.Region, m.Hub.VNetAddressSpace, tags)
	if err != nil {
		return nil, err
	}

	subnetIDs := map[string]string{}
	for role, prefix := range m.Hub.Subnets {
		id, err := p.backend.EnsureSubnet(ctx, rgName, vnetName, hubSubnetName(role), prefix, backend.SubnetConfig{})
		if err != nil {
			return nil, err
		}
		subnetIDs[role] = id
	}
	logger.Info().Str("vnet", vnetName).Int("subnets", len(subnetIDs)).Msg("hub network ready")

	if m.Hub.DeployFirewall {
		if _, err := p.backend.EnsureFirewall(ctx, rgName, naming.HubResource(m.Environment, "fw"),
			m.Region, subnetIDs[model.SubnetFirewall], tags); err != nil {
			return nil, err
		}
		logger.Info().Msg("hub firewall ready")
	}
	if m.Hub.DeployBastion {
		if _, err := p.backend.EnsureBastion(ctx, rgName, naming.HubResource(m.Environment, "bastion"),
			m.Region, subnetIDs[model.SubnetBastion], tags); err != nil {
			return nil, err
		}
		logger.Info().Msg("hub bastion ready")
	}

	// One private DNS zone per supported spoke domain, always all
	// three: the zones are part of the hub contract whether or not a
	// spoke exists yet.
	zones := map[string]model.DNSZoneRef{}
	for domain, zoneName := range model.PrivateDNSZoneNames {
		id, err := p.backend.EnsurePrivateDNSZone(ctx, rgName, zoneName, tags)
		if err != nil {
			return nil, err
		}
		if _, err := p.backend.EnsureDNSZoneLink(ctx, rgName, zoneName, naming.HubDNSLink(), vnetID); err != nil {
			return nil, err
		}
		zones[domain] = model.DNSZoneRef{Name: zoneName, ID: id}
	}

	logSinkID, err := p.backend.EnsureLogWorkspace(ctx, rgName, naming.HubResource(m.Environment, "logs"),
		m.Region, m.Hub.LogRetentionDays, tags)
	if err != nil {
		return nil, err
	}

	outputs := &model.HubOutputs{
		Environment:   m.Environment,
		Region:        m.Region,
		ResourceGroup: rgName,
		NetworkID:     vnetID,
		NetworkName:   vnetName,
		AddressSpace:  m.Hub.VNetAddressSpace,
		SubnetIDs:     subnetIDs,
		DNSZones:      zones,
		LogSinkID:     logSinkID,
		Tags:          tags,
	}
	if err := p.store.SaveHubOutputs(ctx, outputs); err != nil {
		return nil, err
	}
	logger.Info().Msg("hub provisioned, outputs published")
	return outputs, nil
}

// hubSubnetName maps a subnet role to its platform name. Firewall and
// bastion subnets have names mandated by the platform.
func hubSubnetName(role string) string {
	switch role {
	case model.SubnetFirewall:
		return "AzureFirewallSubnet"
	case model.SubnetBastion:
		return "AzureBastionSubnet"
	case model.SubnetGateway:
		return "GatewaySubnet"
	default:
		return role
	}
}
