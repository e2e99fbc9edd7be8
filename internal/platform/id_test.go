package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunID_ReturnsValidUUIDString(t *testing.T) {
	id := NewRunID()
	assert.NotEmpty(t, id)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestNewSuffix_Format(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Regexp(t, `^[a-z0-9]{10}$`, NewSuffix())
	}
}

func TestNewSuffix_ReturnsUniqueValues(t *testing.T) {
	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		s := NewSuffix()
		assert.False(t, seen[s], "duplicate suffix generated: %s", s)
		seen[s] = true
	}
	assert.Len(t, seen, 100)
}
