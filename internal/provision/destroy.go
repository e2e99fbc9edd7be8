package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/state"
)

// DestroySpoke tears down one spoke: its resource group, the hub-side
// peering record, and its state entry. Already-absent spokes are not
// an error, so a partially failed destroy can be re-run.
func (p *Provisioner) DestroySpoke(ctx context.Context, environment, domain string) error {
	out, err := p.store.LoadSpokeOutputs(ctx, environment, domain)
	if errors.Is(err, state.ErrSpokeNotProvisioned) {
		p.logger.Info().Str("spoke", domain).Msg("spoke not on record, nothing to destroy")
		return nil
	}
	if err != nil {
		return err
	}

	if out.ResourceGroup != "" {
		if err := p.backend.DeleteResourceGroup(ctx, out.ResourceGroup); err != nil {
			return fmt.Errorf("destroy spoke %s: %w", domain, err)
		}
	}

	// The hub-side peering record lives in the hub's resource group, so
	// deleting the spoke group leaves it dangling. Remove it explicitly
	// while the hub's outputs are still available.
	if out.Peering.HubToSpoke.Name != "" {
		hub, err := p.store.LoadHubOutputs(ctx, environment)
		switch {
		case errors.Is(err, state.ErrHubNotProvisioned):
			// Hub already gone; its peering records went with it.
		case err != nil:
			return err
		default:
			if err := p.backend.DeletePeering(ctx, hub.ResourceGroup, hub.NetworkName, out.Peering.HubToSpoke.Name); err != nil {
				return fmt.Errorf("destroy spoke %s: remove hub-side peering: %w", domain, err)
			}
		}
	}

	if err := p.store.DeleteSpokeOutputs(ctx, environment, domain); err != nil {
		return err
	}
	p.logger.Info().Str("spoke", domain).Msg("spoke destroyed")
	return nil
}

// DestroyHub tears down the hub. It refuses while any spoke is still
// on record: the spokes depend on the hub's network and DNS zones.
func (p *Provisioner) DestroyHub(ctx context.Context, environment string) error {
	domains, err := p.store.ListSpokeDomains(ctx, environment)
	if err != nil {
		return err
	}
	if len(domains) > 0 {
		return fmt.Errorf("hub %s still has spokes %v: destroy them first", environment, domains)
	}

	hub, err := p.store.LoadHubOutputs(ctx, environment)
	if errors.Is(err, state.ErrHubNotProvisioned) {
		p.logger.Info().Str("hub", environment).Msg("hub not on record, nothing to destroy")
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.backend.DeleteResourceGroup(ctx, hub.ResourceGroup); err != nil {
		return fmt.Errorf("destroy hub %s: %w", environment, err)
	}
	if err := p.store.DeleteHubOutputs(ctx, environment); err != nil {
		return err
	}
	p.logger.Info().Str("hub", environment).Msg("hub destroyed")
	return nil
}

// DestroyEnvironment tears down every recorded spoke, then the hub.
func (p *Provisioner) DestroyEnvironment(ctx context.Context, environment string) error {
	domains, err := p.store.ListSpokeDomains(ctx, environment)
	if err != nil {
		return err
	}
	// Key Vault last: other spokes may reference its secrets until they
	// are gone.
	for _, domain := range domains {
		if domain == model.DomainKeyVault {
			continue
		}
		if err := p.DestroySpoke(ctx, environment, domain); err != nil {
			return err
		}
	}
	for _, domain := range domains {
		if domain == model.DomainKeyVault {
			if err := p.DestroySpoke(ctx, environment, domain); err != nil {
				return err
			}
		}
	}
	return p.DestroyHub(ctx, environment)
}
