// Package state persists the output bundles that form the contract
// between provisioning runs: the hub publishes its outputs once, every
// spoke run reads them as a snapshot, and each spoke records its own
// outputs and phase so re-runs resume instead of starting over.
package state

import (
	"context"
	"errors"

	"github.com/edvin/landingzone/internal/config"
	"github.com/edvin/landingzone/internal/model"
)

// ErrHubNotProvisioned is returned when a spoke run asks for hub
// outputs that were never published. It is fatal to the spoke run.
var ErrHubNotProvisioned = errors.New("hub outputs not found: provision the hub first")

// ErrSpokeNotProvisioned is returned when outputs for a spoke are
// absent.
var ErrSpokeNotProvisioned = errors.New("spoke outputs not found")

// Store is the persistence boundary for output bundles. Hub outputs
// are write-once-per-apply, read-many; spokes never mutate them.
type Store interface {
	SaveHubOutputs(ctx context.Context, outputs *model.HubOutputs) error
	LoadHubOutputs(ctx context.Context, environment string) (*model.HubOutputs, error)
	DeleteHubOutputs(ctx context.Context, environment string) error

	SaveSpokeOutputs(ctx context.Context, outputs *model.SpokeOutputs) error
	LoadSpokeOutputs(ctx context.Context, environment, domain string) (*model.SpokeOutputs, error)
	ListSpokeDomains(ctx context.Context, environment string) ([]string, error)
	DeleteSpokeOutputs(ctx context.Context, environment, domain string) error

	Close() error
}

// Open constructs the store selected by the settings.
func Open(ctx context.Context, settings *config.StateSettings) (Store, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	switch settings.Backend {
	case config.StateBackendFile:
		return NewFileStore(settings.FilePath), nil
	case config.StateBackendS3:
		return NewS3Store(settings), nil
	case config.StateBackendPostgres:
		return NewPostgresStore(ctx, settings.PostgresURL)
	}
	// Unreachable: Validate rejects unknown backends.
	return nil, errors.New("unknown state backend")
}
