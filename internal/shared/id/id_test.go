package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTermIDPrefix(t *testing.T) {
	handle := NewTermID()
	assert.True(t, strings.HasPrefix(handle.String(), "term_"))

	raw := strings.TrimPrefix(handle.String(), "term_")
	assert.True(t, IsValid(raw))
}

func TestIsValidAcceptsIssuedHandles(t *testing.T) {
	// The handles the daemon issues validate as-is, prefix included.
	assert.True(t, IsValid(NewTermID().String()))
	assert.True(t, IsValid(NewRequestID().String()))
	assert.True(t, IsValid(NewStreamID().String()))
}

func TestHandlesNeverRepeat(t *testing.T) {
	seen := make(map[TermID]bool)
	for i := 0; i < 10000; i++ {
		handle := NewTermID()
		require.False(t, seen[handle], "handle %s issued twice", handle)
		seen[handle] = true
	}
}

func TestHandlesSortByIssueTime(t *testing.T) {
	a := NewTermID()
	b := NewTermID()
	// ULIDs issued later never sort before earlier ones.
	assert.LessOrEqual(t, a.String(), b.String())
}

func TestTimestampRoundTrip(t *testing.T) {
	handle := NewRequestID()

	// Works on the prefixed form and on the bare ULID.
	ts, err := Timestamp(handle.String())
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	raw := strings.TrimPrefix(handle.String(), "req_")
	bare, err := Timestamp(raw)
	require.NoError(t, err)
	assert.Equal(t, ts, bare)
}

func TestIsValidRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("term_not-a-ulid"))
}
