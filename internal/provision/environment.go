package provision

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/landingzone/internal/config"
	"github.com/edvin/landingzone/internal/model"
)

// EnvironmentOutputs is the result of a full-environment apply.
type EnvironmentOutputs struct {
	Hub    *model.HubOutputs
	Spokes map[string]*model.SpokeOutputs
}

// ApplyEnvironment converges the whole environment: the hub first,
// then the Key Vault spoke (the database and storage spokes may need
// its vault), then the remaining spokes in parallel.
func (p *Provisioner) ApplyEnvironment(ctx context.Context, m *config.Manifest) (*EnvironmentOutputs, error) {
	hub, err := p.ApplyHub(ctx, m)
	if err != nil {
		return nil, err
	}
	out := &EnvironmentOutputs{Hub: hub, Spokes: map[string]*model.SpokeOutputs{}}

	if m.Spokes.KeyVault != nil {
		kv, err := p.ApplySpoke(ctx, m, model.DomainKeyVault)
		if err != nil {
			return nil, err
		}
		out.Spokes[model.DomainKeyVault] = kv
	}

	var domains []string
	if m.Spokes.Database != nil {
		domains = append(domains, model.DomainDatabase)
	}
	if m.Spokes.Storage != nil {
		domains = append(domains, model.DomainStorage)
	}

	// Parallel only when neither spoke writes into the vault; secret
	// writers run one at a time so their vault interactions stay
	// ordered and attributable in the logs.
	if m.SpokeWantsVault() {
		for _, domain := range domains {
			spoke, err := p.ApplySpoke(ctx, m, domain)
			if err != nil {
				return nil, err
			}
			out.Spokes[domain] = spoke
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	results := make(map[string]*model.SpokeOutputs, len(domains))
	for _, domain := range domains {
		g.Go(func() error {
			spoke, err := p.ApplySpoke(gctx, m, domain)
			if err != nil {
				return err
			}
			mu.Lock()
			results[domain] = spoke
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for domain, spoke := range results {
		out.Spokes[domain] = spoke
	}
	return out, nil
}
