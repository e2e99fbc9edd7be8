// Package provision converges an environment's hub and spokes onto the
// manifest. Runs are one-shot and stateless apart from the output
// bundles in the state store; a failed run is recovered by invoking it
// again, never by rollback.
package provision

import (
	"github.com/rs/zerolog"

	"github.com/edvin/landingzone/internal/backend"
	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/state"
)

// Provisioner drives hub and spoke applies against a cloud backend,
// recording output bundles in the state store.
type Provisioner struct {
	backend backend.Backend
	store   state.Store
	logger  zerolog.Logger
}

// New creates a Provisioner.
func New(b backend.Backend, s state.Store, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		backend: b,
		store:   s,
		logger:  logger.With().Str("component", "provisioner").Logger(),
	}
}

// baseTags are the tags every resource in an environment carries
// before manifest tags are merged on top.
func baseTags(environment string) model.TagSet {
	return model.TagSet{
		"environment": environment,
		"managed-by":  "lzctl",
	}
}
