package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medinearby/internal/models"
	"medinearby/internal/stream"
)

func fptr(v float64) *float64 { return &v }

func providers(source string, ids ...string) []models.Provider {
	out := make([]models.Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Provider{Key: models.Key{Source: source, ID: id}, Name: source + "-" + id})
	}
	return out
}

func keys(c Catalog) []models.Key {
	out := make([]models.Key, 0, c.Len())
	for _, p := range c.Providers() {
		out = append(out, p.Key)
	}
	return out
}

func newTestMerger() *Merger {
	return NewMerger(
		SourceSpec{ID: "doctors"},
		SourceSpec{ID: "stores", FixedCategory: models.CategoryMedicalStores},
	)
}

func TestMerger_StartsEmptyWithAllSourcesPending(t *testing.T) {
	m := newTestMerger()

	c := m.Current()
	assert.Zero(t, c.Len())
	assert.Equal(t, []string{"doctors", "stores"}, c.Pending())
	assert.Zero(t, c.Version())
}

func TestMerger_ReplacesOnlyTheSnapshotSource(t *testing.T) {
	m := newTestMerger()

	require.NoError(t, m.ApplySnapshot("doctors", providers("doctors", "1", "2")))
	require.NoError(t, m.ApplySnapshot("stores", providers("stores", "a", "b")))
	require.NoError(t, m.ApplySnapshot("doctors", providers("doctors", "3")))

	c := m.Current()
	assert.Equal(t, []models.Key{
		{Source: "doctors", ID: "3"},
		{Source: "stores", ID: "a"},
		{Source: "stores", ID: "b"},
	}, keys(c))
	assert.Empty(t, c.Pending())
	assert.Equal(t, uint64(3), c.Version())
}

func TestMerger_EmptySnapshotClearsSource(t *testing.T) {
	m := newTestMerger()

	require.NoError(t, m.ApplySnapshot("doctors", providers("doctors", "1")))
	require.NoError(t, m.ApplySnapshot("stores", providers("stores", "a", "b")))
	require.NoError(t, m.ApplySnapshot("stores", nil))

	c := m.Current()
	assert.Equal(t, []models.Key{{Source: "doctors", ID: "1"}}, keys(c))
	assert.Empty(t, c.Pending())
}

func TestMerger_SourceApplicationsCommute(t *testing.T) {
	doctors := providers("doctors", "1", "2")
	stores := providers("stores", "a")

	ab := newTestMerger()
	require.NoError(t, ab.ApplySnapshot("doctors", doctors))
	require.NoError(t, ab.ApplySnapshot("stores", stores))

	ba := newTestMerger()
	require.NoError(t, ba.ApplySnapshot("stores", stores))
	require.NoError(t, ba.ApplySnapshot("doctors", doctors))

	assert.Equal(t, ab.Current().Providers(), ba.Current().Providers())
}

func TestMerger_IdempotentApply(t *testing.T) {
	m := newTestMerger()
	snapshot := providers("doctors", "1", "2")

	require.NoError(t, m.ApplySnapshot("doctors", snapshot))
	once := m.Current().Providers()
	require.NoError(t, m.ApplySnapshot("doctors", snapshot))

	assert.Equal(t, once, m.Current().Providers())
}

func TestMerger_DuplicateIDsCollapse(t *testing.T) {
	m := newTestMerger()
	items := []models.Provider{
		{Key: models.Key{ID: "1"}, Name: "first"},
		{Key: models.Key{ID: "2"}, Name: "other"},
		{Key: models.Key{ID: "1"}, Name: "updated"},
		{Name: "no id"},
	}

	require.NoError(t, m.ApplySnapshot("doctors", items))

	c := m.Current()
	require.Equal(t, 2, c.Len())
	p, ok := c.Lookup(models.Key{Source: "doctors", ID: "1"})
	require.True(t, ok)
	assert.Equal(t, "updated", p.Name)
	assert.Equal(t, "1", c.Providers()[0].ID)
}

func TestMerger_RejectsUnknownSource(t *testing.T) {
	m := newTestMerger()

	err := m.ApplySnapshot("labs", providers("labs", "1"))

	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Zero(t, m.Current().Version())
}

func TestMerger_OnChangePublishesEveryApplication(t *testing.T) {
	m := newTestMerger()
	var seen []uint64
	stop := m.OnChange(func(c Catalog) { seen = append(seen, c.Version()) })

	require.NoError(t, m.ApplySnapshot("doctors", providers("doctors", "1")))
	require.NoError(t, m.ApplySnapshot("doctors", providers("doctors", "1")))
	stop()
	require.NoError(t, m.ApplySnapshot("doctors", nil))

	assert.Equal(t, []uint64{1, 2}, seen)
}

func TestMerger_PublishedCatalogIsNotAffectedByLaterSnapshots(t *testing.T) {
	m := newTestMerger()
	require.NoError(t, m.ApplySnapshot("doctors", providers("doctors", "1")))
	before := m.Current()

	require.NoError(t, m.ApplySnapshot("doctors", providers("doctors", "2")))

	_, ok := before.Lookup(models.Key{Source: "doctors", ID: "1"})
	assert.True(t, ok)
	assert.Equal(t, 1, before.Len())
}

func TestSourceSpec_Stamp(t *testing.T) {
	records := []models.RawRecord{
		{ID: "1", Name: "HealthPlus", Category: "Pharmacy", Lat: fptr(1), Lng: fptr(2), Rating: fptr(4.5)},
		{ID: "2", Name: "QuickMeds", Specialty: "Chemist", Lat: fptr(1)},
	}

	stores := SourceSpec{ID: "stores", FixedCategory: models.CategoryMedicalStores}.Stamp(records)
	require.Len(t, stores, 2)
	assert.Equal(t, models.CategoryMedicalStores, stores[0].Category)
	assert.Equal(t, models.CategoryMedicalStores, stores[1].Category)
	assert.Equal(t, "Pharmacy", records[0].Category)
	assert.Equal(t, &models.Coordinate{Lat: 1, Lng: 2}, stores[0].Location)
	assert.Nil(t, stores[1].Location)
	assert.Equal(t, 4.5, *stores[0].Rating)

	derived := SourceSpec{ID: "doctors"}.Stamp(records)
	assert.Equal(t, "Pharmacy", derived[0].Category)
	assert.Equal(t, "Chemist", derived[1].Category)
	assert.Equal(t, models.Key{Source: "doctors", ID: "2"}, derived[1].Key)
}

func TestParseSourceSpecs(t *testing.T) {
	specs := ParseSourceSpecs(" doctors , medical-stores:Medical Stores,, ")

	assert.Equal(t, []SourceSpec{
		{ID: "doctors"},
		{ID: "medical-stores", FixedCategory: "Medical Stores"},
	}, specs)
}

func TestBind_FoldsTransportSnapshots(t *testing.T) {
	transport := stream.NewMemory()
	m := newTestMerger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport.Publish("stores", []models.RawRecord{{ID: "a", Name: "Store A", Category: "Pharmacy"}})

	stop, err := Bind(ctx, transport, m)
	require.NoError(t, err)

	c := m.Current()
	require.Equal(t, 1, c.Len())
	assert.Equal(t, models.CategoryMedicalStores, c.Providers()[0].Category)
	assert.Equal(t, []string{"doctors"}, c.Pending())

	transport.Publish("doctors", []models.RawRecord{{ID: "1", Name: "Dr. One", Specialty: models.CategoryCardiologist}})
	assert.Equal(t, 2, m.Current().Len())

	stop()
	transport.Publish("doctors", nil)
	assert.Equal(t, 2, m.Current().Len())
}

func TestBind_SubsetOfSources(t *testing.T) {
	transport := stream.NewMemory()
	m := newTestMerger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := Bind(ctx, transport, m, SourceSpec{ID: "doctors"})
	require.NoError(t, err)
	defer stop()

	transport.Publish("stores", []models.RawRecord{{ID: "a", Name: "Store A"}})
	transport.Publish("doctors", []models.RawRecord{{ID: "1", Name: "Dr. One"}})

	c := m.Current()
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"stores"}, c.Pending())
}
