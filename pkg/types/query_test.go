package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewQueryAppliesDefaultLimit(t *testing.T) {
	q := NewQuery()
	assert.Equal(t, uint32(DefaultLimit), q.Limit)
}

func TestEffectiveLimitFallsBackToDefault(t *testing.T) {
	var q Query
	assert.Equal(t, uint32(DefaultLimit), q.EffectiveLimit())

	q.Limit = 10
	assert.Equal(t, uint32(10), q.EffectiveLimit())
}
