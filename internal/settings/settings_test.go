package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	s := Default()
	s.PaperWidth = 72
	assert.Error(t, s.Validate())

	s = Default()
	s.Copies = 0
	assert.Error(t, s.Validate())
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)

	got.PaperWidth = 58
	got.Copies = 2
	require.NoError(t, m.Save(ctx, got))

	reloaded, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, reloaded)
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	m := NewMemoryStore()

	bad := Default()
	bad.PaperWidth = 0
	require.Error(t, m.Save(context.Background(), bad))

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), got, "failed save must not clobber stored settings")
}
