package id

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		require.Less(t, prev, next)
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	before := time.Now().Add(-time.Second)
	p := Prefixed("c")
	require.True(t, strings.HasPrefix(p, "C-"))

	u, err := ulid.ParseStrict(strings.TrimPrefix(p, "C-"))
	require.NoError(t, err)
	assert.True(t, ulid.Time(u.Time()).After(before))
}
