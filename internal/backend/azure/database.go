package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/postgresql/armpostgresqlflexibleservers"

	"github.com/edvin/landingzone/internal/backend"
)

// EnsureFlexibleServer provisions a PostgreSQL flexible server on the
// spoke's delegated subnet. The private DNS zone ID must belong to the
// hub's database zone so the server FQDN resolves from peered
// networks.
func (b *Backend) EnsureFlexibleServer(ctx context.Context, rg, name, region string, cfg backend.FlexibleServerConfig) (string, string, error) {
	poller, err := b.servers.BeginCreate(ctx, rg, name, armpostgresqlflexibleservers.Server{
		Location: to.Ptr(region),
		Tags:     toTags(cfg.Tags),
		SKU: &armpostgresqlflexibleservers.SKU{
			Name: to.Ptr("Standard_D2s_v3"),
			Tier: to.Ptr(armpostgresqlflexibleservers.SKUTierGeneralPurpose),
		},
		Properties: &armpostgresqlflexibleservers.ServerProperties{
			Version:                    to.Ptr(armpostgresqlflexibleservers.ServerVersionFourteen),
			AdministratorLogin:         to.Ptr(cfg.AdminUsername),
			AdministratorLoginPassword: to.Ptr(cfg.AdminPassword.Reveal()),
			Storage: &armpostgresqlflexibleservers.Storage{
				StorageSizeGB: to.Ptr[int32](128),
			},
			Backup: &armpostgresqlflexibleservers.Backup{
				BackupRetentionDays: to.Ptr[int32](7),
			},
			Network: &armpostgresqlflexibleservers.Network{
				DelegatedSubnetResourceID:   to.Ptr(cfg.DelegatedSubnetID),
				PrivateDNSZoneArmResourceID: to.Ptr(cfg.PrivateDNSZoneID),
			},
		},
	}, nil)
	if err != nil {
		return "", "", fmt.Errorf("ensure flexible server %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("ensure flexible server %s: %w", name, err)
	}

	var fqdn string
	if resp.Properties != nil {
		fqdn = toValue(resp.Properties.FullyQualifiedDomainName)
	}
	return toValue(resp.ID), fqdn, nil
}

func (b *Backend) EnsureServerDatabase(ctx context.Context, rg, serverName, name string) error {
	poller, err := b.serverDatabases.BeginCreate(ctx, rg, serverName, name, armpostgresqlflexibleservers.Database{
		Properties: &armpostgresqlflexibleservers.DatabaseProperties{
			Charset:   to.Ptr("UTF8"),
			Collation: to.Ptr("en_US.utf8"),
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("ensure database %s on %s: %w", name, serverName, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("ensure database %s on %s: %w", name, serverName, err)
	}
	return nil
}

var _ backend.Backend = (*Backend)(nil)
