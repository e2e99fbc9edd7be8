package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/edvin/landingzone/internal/backend"
	"github.com/edvin/landingzone/internal/crypto"
	"github.com/edvin/landingzone/internal/model"
)

func (b *Backend) EnsureVault(ctx context.Context, rg, name, region string, rules backend.NetworkRules, tags model.TagSet) (string, string, error) {
	acls := &armkeyvault.NetworkRuleSet{
		DefaultAction: to.Ptr(armkeyvault.NetworkRuleActionDeny),
		Bypass:        to.Ptr(armkeyvault.NetworkRuleBypassOptionsAzureServices),
	}
	for _, subnetID := range rules.SubnetIDs {
		acls.VirtualNetworkRules = append(acls.VirtualNetworkRules, &armkeyvault.VirtualNetworkRule{
			ID: to.Ptr(subnetID),
		})
	}
	for _, cidr := range rules.AllowedCIDRs {
		acls.IPRules = append(acls.IPRules, &armkeyvault.IPRule{Value: to.Ptr(cidr)})
	}

	publicAccess := "Disabled"
	if rules.PublicAccess {
		publicAccess = "Enabled"
		acls.DefaultAction = to.Ptr(armkeyvault.NetworkRuleActionAllow)
	}

	poller, err := b.vaults.BeginCreateOrUpdate(ctx, rg, name, armkeyvault.VaultCreateOrUpdateParameters{
		Location: to.Ptr(region),
		Tags:     toTags(tags),
		Properties: &armkeyvault.VaultProperties{
			TenantID: to.Ptr(b.opts.TenantID),
			SKU: &armkeyvault.SKU{
				Family: to.Ptr(armkeyvault.SKUFamilyA),
				Name:   to.Ptr(armkeyvault.SKUNameStandard),
			},
			EnableRbacAuthorization: to.Ptr(true),
			PublicNetworkAccess:     to.Ptr(publicAccess),
			NetworkACLs:             acls,
		},
	}, nil)
	if err != nil {
		return "", "", fmt.Errorf("ensure vault %s: %w", name, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("ensure vault %s: %w", name, err)
	}

	var uri string
	if resp.Properties != nil {
		uri = toValue(resp.Properties.VaultURI)
	}
	return toValue(resp.ID), uri, nil
}

// SetSecret writes a secret value through the vault's data plane.
// Clients are cached per vault URI.
func (b *Backend) SetSecret(ctx context.Context, vaultURI, name string, value crypto.Sensitive) error {
	client, err := b.secretsClient(vaultURI)
	if err != nil {
		return err
	}
	_, err = client.SetSecret(ctx, name, azsecrets.SetSecretParameters{
		Value: to.Ptr(value.Reveal()),
	}, nil)
	if err != nil {
		return fmt.Errorf("set secret %s in %s: %w", name, vaultURI, err)
	}
	return nil
}

// GetSecret reads the current version of a secret. A missing secret is
// reported as not found, not as an error.
func (b *Backend) GetSecret(ctx context.Context, vaultURI, name string) (crypto.Sensitive, bool, error) {
	client, err := b.secretsClient(vaultURI)
	if err != nil {
		return crypto.Sensitive{}, false, err
	}
	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return crypto.Sensitive{}, false, nil
		}
		return crypto.Sensitive{}, false, fmt.Errorf("get secret %s from %s: %w", name, vaultURI, err)
	}
	return crypto.NewSensitive(toValue(resp.Value)), true, nil
}

func (b *Backend) secretsClient(vaultURI string) (*azsecrets.Client, error) {
	b.secretsMu.Lock()
	defer b.secretsMu.Unlock()
	if client, ok := b.secretsClients[vaultURI]; ok {
		return client, nil
	}
	client, err := azsecrets.NewClient(vaultURI, b.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("secrets client for %s: %w", vaultURI, err)
	}
	b.secretsClients[vaultURI] = client
	return client, nil
}
