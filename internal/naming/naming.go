// Package naming holds the two naming strategies used across a
// deployment. Relationship names (peerings, DNS links, diagnostic
// settings) are deterministic so repeated runs converge on the same
// records instead of accumulating duplicates. Resource names carry a
// random per-deployment suffix so they are globally unique across
// re-deployments, with a whole spoke's resources identifiable as one
// cohort.
package naming

import (
	"fmt"
	"strings"

	"github.com/edvin/landingzone/internal/platform"
)

// --- Deterministic relationship names ---

// SpokeToHub is the name of the spoke-side peering record.
func SpokeToHub(domain string) string {
	return domain + "-to-hub"
}

// HubToSpoke is the name of the hub-side peering record.
func HubToSpoke(domain string) string {
	return "hub-to-" + domain
}

// DNSLink is the name of a spoke network's link into a hub private DNS
// zone.
func DNSLink(domain string) string {
	return domain + "-dns-link"
}

// HubDNSLink is the name of the hub network's own link into each of
// its private DNS zones. Not a spoke relationship: it exists from hub
// creation, before any spoke does.
func HubDNSLink() string {
	return "hub-dns-link"
}

// PrivateEndpoint is the name of a spoke's private endpoint for one
// sub-service (group ID) of its domain resource. Deterministic: a
// re-run converges on the same endpoint instead of creating a second
// one.
func PrivateEndpoint(domain, groupID string) string {
	return fmt.Sprintf("%s-%s-pe", domain, groupID)
}

// Diagnostics is the name of a spoke resource's diagnostic setting
// pointing at the hub log sink.
func Diagnostics(domain string) string {
	return domain + "-diagnostics"
}

// HubResource names a hub resource. Hub names are fully deterministic:
// the hub is created once per environment and re-applies must match
// the existing resources.
func HubResource(environment, kind string) string {
	return fmt.Sprintf("%s-hub-%s", environment, kind)
}

// --- Suffix-randomized resource names ---

// Cohort names the resources of one spoke deployment. All names share
// the environment tag and a single random suffix generated when the
// cohort is created.
type Cohort struct {
	Environment string
	Suffix      string
}

// NewCohort creates a cohort with a fresh random suffix.
func NewCohort(environment string) Cohort {
	return Cohort{Environment: environment, Suffix: platform.NewSuffix()}
}

// Resume recreates the cohort of an earlier deployment from its
// recorded suffix, so a re-run converges on the same names.
func Resume(environment, suffix string) Cohort {
	return Cohort{Environment: environment, Suffix: suffix}
}

// Resource returns "<environment>-<kind>-<suffix>", the general form
// for dash-tolerant resource kinds.
func (c Cohort) Resource(kind string) string {
	return fmt.Sprintf("%s-%s-%s", c.Environment, kind, c.Suffix)
}

// storageAccountMaxLen is the platform limit on storage account names.
const storageAccountMaxLen = 24

// Compact returns a lowercase alphanumeric name for kinds that forbid
// separators (storage accounts), truncating the kind to honor the
// 24-character limit while keeping the full suffix.
func (c Cohort) Compact(kind string) string {
	name := strings.ToLower(nonAlnum.Replace(c.Environment + kind))
	budget := storageAccountMaxLen - platform.SuffixLength
	if len(name) > budget {
		name = name[:budget]
	}
	return name + c.Suffix
}

var nonAlnum = strings.NewReplacer("-", "", "_", "", ".", "")
