package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationshipNames_Deterministic(t *testing.T) {
	// Relationship names must not vary between runs — they are the
	// convergence keys for re-applies.
	assert.Equal(t, "database-to-hub", SpokeToHub("database"))
	assert.Equal(t, "hub-to-database", HubToSpoke("database"))
	assert.Equal(t, "storage-dns-link", DNSLink("storage"))
	assert.Equal(t, "hub-dns-link", HubDNSLink())
	assert.Equal(t, "storage-blob-pe", PrivateEndpoint("storage", "blob"))
	assert.Equal(t, "keyvault-diagnostics", Diagnostics("keyvault"))
	assert.Equal(t, "dev-hub-vnet", HubResource("dev", "vnet"))
}

func TestCohort_SuffixSharedAcrossNames(t *testing.T) {
	c := NewCohort("dev")

	vnet := c.Resource("database-vnet")
	server := c.Resource("pg")

	assert.Regexp(t, `^dev-database-vnet-[a-z0-9]{10}$`, vnet)
	assert.Regexp(t, `^dev-pg-[a-z0-9]{10}$`, server)
	// Same cohort, same suffix.
	assert.Equal(t, vnet[len(vnet)-10:], server[len(server)-10:])
}

func TestCohort_DistinctAcrossDeployments(t *testing.T) {
	a := NewCohort("dev")
	b := NewCohort("dev")
	assert.NotEqual(t, a.Suffix, b.Suffix)
}

func TestResume_ReproducesNames(t *testing.T) {
	a := NewCohort("dev")
	b := Resume("dev", a.Suffix)
	assert.Equal(t, a.Resource("kv"), b.Resource("kv"))
}

func TestCompact_StorageAccountRules(t *testing.T) {
	c := Cohort{Environment: "dev", Suffix: "abcde12345"}
	name := c.Compact("st")
	assert.Equal(t, "devstabcde12345", name)
	assert.Regexp(t, `^[a-z0-9]+$`, name)

	// Long environment names get truncated, the suffix never does.
	long := Cohort{Environment: "very-long-environment-name", Suffix: "abcde12345"}
	name = long.Compact("storage")
	assert.LessOrEqual(t, len(name), 24)
	assert.Equal(t, "abcde12345", name[len(name)-10:])
}
