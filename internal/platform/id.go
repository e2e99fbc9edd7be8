package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// SuffixLength is the length of the random cohort suffix appended to
// resource names.
const SuffixLength = 10

// NewRunID returns a unique identifier for a single provisioning run,
// used for log correlation.
func NewRunID() string {
	return uuid.New().String()
}

// NewSuffix returns a random lowercase-alphanumeric suffix. It is
// generated once per spoke deployment and reused for every resource in
// that deployment, so a cohort of resources is identifiable by its
// suffix. A collision with a previous deployment's suffix is not
// handled; at 10 characters the probability is negligible and the
// platform rejects true name collisions outright.
func NewSuffix() string {
	b := make([]byte, SuffixLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = suffixAlphabet[b[i]%byte(len(suffixAlphabet))]
	}
	return string(b)
}
