package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/edvin/landingzone/internal/backend"
	"github.com/edvin/landingzone/internal/crypto"
	"github.com/edvin/landingzone/internal/model"
)

func (b *Backend) EnsureStorageAccount(ctx context.Context, rg, name, region string, rules backend.NetworkRules, tags model.TagSet) (string, string, error) {
	ruleSet := &armstorage.NetworkRuleSet{
		DefaultAction: to.Ptr(armstorage.DefaultActionDeny),
		Bypass:        to.Ptr(armstorage.BypassAzureServices),
	}
	for _, subnetID := range rules.SubnetIDs {
		ruleSet.VirtualNetworkRules = append(ruleSet.VirtualNetworkRules, &armstorage.VirtualNetworkRule{
			VirtualNetworkResourceID: to.Ptr(subnetID),
		})
	}
	for _, cidr := range rules.AllowedCIDRs {
		ruleSet.IPRules = append(ruleSet.IPRules, &armstorage.IPRule{
			IPAddressOrRange: to.Ptr(cidr),
			Action:           to.Ptr("Allow"),
		})
	}

	publicAccess := armstorage.PublicNetworkAccessDisabled
	if rules.PublicAccess {
		publicAccess = armstorage.PublicNetworkAccessEnabled
		ruleSet.DefaultAction = to.Ptr(armstorage.DefaultActionAllow)
	}

	poller, err := b.accounts.BeginCreate(ctx, rg, name, armstorage.AccountCreateParameters{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		Kind:     to.Ptr(armstorage.KindStorageV2),
		SKU:      &armstorage.SKU{Name: to.Ptr(armstorage.SKUNameStandardLRS)},
		Properties: &armstorage.AccountPropertiesCreateParameters{
			AccessTier:            to.Ptr(armstorage.AccessTierHot),
			AllowBlobPublicAccess: to.Ptr(false),
			MinimumTLSVersion:     to.Ptr(armstorage.MinimumTLSVersionTLS12),
			PublicNetworkAccess:   to.Ptr(publicAccess),
			NetworkRuleSet:        ruleSet,
		},
	}, nil)
	if err != nil {
		return "", "", fmt.Errorf("ensure storage account %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("ensure storage account %s: %w", name, err)
	}

	var blobEndpoint string
	if resp.Properties != nil && resp.Properties.PrimaryEndpoints != nil {
		blobEndpoint = toValue(resp.Properties.PrimaryEndpoints.Blob)
	}
	return toValue(resp.ID), blobEndpoint, nil
}

// GetStorageAccountKey returns the account's first access key for
// optional storage in the Key Vault spoke.
func (b *Backend) GetStorageAccountKey(ctx context.Context, rg, account string) (crypto.Sensitive, error) {
	resp, err := b.accounts.ListKeys(ctx, rg, account, nil)
	if err != nil {
		return crypto.Sensitive{}, fmt.Errorf("list keys for %s: %w", account, err)
	}
	if len(resp.Keys) == 0 || resp.Keys[0].Value == nil {
		return crypto.Sensitive{}, fmt.Errorf("no keys returned for %s", account)
	}
	return crypto.NewSensitive(*resp.Keys[0].Value), nil
}

func (b *Backend) EnsureBlobContainer(ctx context.Context, rg, account, name string) error {
	_, err := b.containers.Create(ctx, rg, account, name, armstorage.BlobContainer{
		ContainerProperties: &armstorage.ContainerProperties{
			PublicAccess: to.Ptr(armstorage.PublicAccessNone),
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("ensure blob container %s/%s: %w", account, name, err)
	}
	return nil
}

func (b *Backend) EnsureFileShare(ctx context.Context, rg, account, name string) error {
	_, err := b.shares.Create(ctx, rg, account, name, armstorage.FileShare{}, nil)
	if err != nil {
		return fmt.Errorf("ensure file share %s/%s: %w", account, name, err)
	}
	return nil
}

func (b *Backend) EnsureTable(ctx context.Context, rg, account, name string) error {
	_, err := b.tables.Create(ctx, rg, account, name, nil)
	if err != nil {
		return fmt.Errorf("ensure table %s/%s: %w", account, name, err)
	}
	return nil
}

func (b *Backend) EnsureQueue(ctx context.Context, rg, account, name string) error {
	_, err := b.queues.Create(ctx, rg, account, name, armstorage.Queue{}, nil)
	if err != nil {
		return fmt.Errorf("ensure queue %s/%s: %w", account, name, err)
	}
	return nil
}
