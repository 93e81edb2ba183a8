package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medinearby/internal/catalog"
	"medinearby/internal/models"
)

func TestCoordinator_Durability(t *testing.T) {
	m := catalog.NewMerger(catalog.SourceSpec{ID: "doctors"})
	rating := 4.1
	p := models.Provider{Key: models.Key{ID: "p"}, Name: "Dr. P", Rating: &rating}
	require.NoError(t, m.ApplySnapshot("doctors", []models.Provider{p}))

	c := NewCoordinator()
	_, ok := c.Current(m.Current())
	assert.False(t, ok, "nothing is selected at startup")

	c.Select(models.Key{Source: "doctors", ID: "p"})

	updated := 4.8
	p.Rating = &updated
	require.NoError(t, m.ApplySnapshot("doctors", []models.Provider{p}))

	current, ok := c.Current(m.Current())
	require.True(t, ok)
	assert.Equal(t, 4.8, *current.Rating)

	require.NoError(t, m.ApplySnapshot("doctors", nil))
	_, ok = c.Current(m.Current())
	assert.False(t, ok)

	key, selected := c.Key()
	assert.True(t, selected, "a dangling selection is kept")
	assert.Equal(t, "p", key.ID)

	require.NoError(t, m.ApplySnapshot("doctors", []models.Provider{p}))
	_, ok = c.Current(m.Current())
	assert.True(t, ok, "selection resolves again once the provider returns")
}

func TestCoordinator_NewSelectionReplaces(t *testing.T) {
	c := NewCoordinator()

	c.Select(models.Key{Source: "doctors", ID: "1"})
	c.Select(models.Key{Source: "stores", ID: "2"})

	key, ok := c.Key()
	require.True(t, ok)
	assert.Equal(t, models.Key{Source: "stores", ID: "2"}, key)

	c.Clear()
	_, ok = c.Key()
	assert.False(t, ok)
}
