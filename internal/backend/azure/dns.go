package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/privatedns/armprivatedns"

	"github.com/edvin/landingzone/internal/model"
)

// Private DNS zones are global resources; the location is fixed by the
// platform.
const dnsZoneLocation = "global"

func (b *Backend) EnsurePrivateDNSZone(ctx context.Context, rg, zoneName string, tags model.TagSet) (string, error) {
	poller, err := b.zones.BeginCreateOrUpdate(ctx, rg, zoneName, armprivatedns.PrivateZone{
		Location: to.Ptr(dnsZoneLocation),
		Tags:     toTags(tags),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure private DNS zone %s: %w", zoneName, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure private DNS zone %s: %w", zoneName, err)
	}
	return toValue(resp.ID), nil
}

func (b *Backend) EnsureDNSZoneLink(ctx context.Context, rg, zoneName, linkName, networkID string) (string, error) {
	poller, err := b.links.BeginCreateOrUpdate(ctx, rg, zoneName, linkName, armprivatedns.VirtualNetworkLink{
		Location: to.Ptr(dnsZoneLocation),
		Properties: &armprivatedns.VirtualNetworkLinkProperties{
			VirtualNetwork:      &armprivatedns.SubResource{ID: to.Ptr(networkID)},
			RegistrationEnabled: to.Ptr(false),
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("ensure DNS link %s on %s: %w", linkName, zoneName, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("ensure DNS link %s on %s: %w", linkName, zoneName, err)
	}
	return toValue(resp.ID), nil
}
