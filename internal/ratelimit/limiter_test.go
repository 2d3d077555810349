package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow_BurstThenReject(t *testing.T) {
	l := NewLimiter(1, 2)

	assert.True(t, l.Allow("key-a"))
	assert.True(t, l.Allow("key-a"))
	assert.False(t, l.Allow("key-a"))
}

func TestAllow_KeysHaveSeparateBudgets(t *testing.T) {
	l := NewLimiter(1, 1)

	assert.True(t, l.Allow("key-a"))
	assert.False(t, l.Allow("key-a"))
	assert.True(t, l.Allow("key-b"))
}

func TestGetLimiter_ReusesPerKeyInstance(t *testing.T) {
	l := NewLimiter(100, 10)

	assert.Same(t, l.GetLimiter("key-a"), l.GetLimiter("key-a"))
	assert.NotSame(t, l.GetLimiter("key-a"), l.GetLimiter("key-b"))
}

func TestTokens_DecreasesWithUse(t *testing.T) {
	l := NewLimiter(1, 5)

	before := l.Tokens("key-a")
	l.Allow("key-a")
	after := l.Tokens("key-a")
	assert.Less(t, after, before)
}
