package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDStableAcrossCalls(t *testing.T) {
	p := NewProvider(t.TempDir())

	first := p.UserID()
	require.NotEmpty(t, first)
	_, err := uuid.Parse(first)
	require.NoError(t, err, "user id should be a UUID")

	assert.Equal(t, first, p.UserID())
}

func TestUserIDSurvivesNewProvider(t *testing.T) {
	dir := t.TempDir()

	first := NewProvider(dir).UserID()
	require.NotEmpty(t, first)

	// A fresh provider over the same state dir reads the persisted token.
	assert.Equal(t, first, NewProvider(dir).UserID())
}

func TestResetGeneratesNewID(t *testing.T) {
	p := NewProvider(t.TempDir())

	first := p.UserID()
	require.NoError(t, p.Reset())

	second := p.UserID()
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
}

func TestResetWithoutTokenIsNoop(t *testing.T) {
	p := NewProvider(t.TempDir())
	assert.NoError(t, p.Reset())
}

func TestUnwritableStateDirDegradesToEmpty(t *testing.T) {
	// A state dir that cannot be created must not fail the caller.
	p := NewProvider("/dev/null/forbidden")
	assert.Empty(t, p.UserID())
}
