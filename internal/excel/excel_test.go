package excel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"medinearby/internal/models"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadSheet(t *testing.T) {
	path := writeWorkbook(t, "doctors", [][]interface{}{
		{"Name", "Latitude", "Longitude", "ID", "Specialty", "Clinic", "Rating"},
		{"Dr. Sarah Johnson", "27,1767", "78,0081", "d1", "Cardiologist", "Heart Care", "4.9"},
		{"Dr. No Location", "", "", "d2", "Dermatologist"},
		{"", "1", "1", "d3"},
		{"Dr. Derived", "27.2", "78.1"},
	})

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := ReadSheet(f, "doctors")
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "d1", first.ID)
	assert.Equal(t, "Cardiologist", first.Specialty)
	assert.Equal(t, "Heart Care", first.Clinic)
	require.NotNil(t, first.Lat)
	require.NotNil(t, first.Lng)
	assert.InDelta(t, 27.1767, *first.Lat, 1e-9)
	assert.InDelta(t, 78.0081, *first.Lng, 1e-9)
	require.NotNil(t, first.Rating)
	assert.InDelta(t, 4.9, *first.Rating, 1e-9)

	second := records[1]
	assert.Nil(t, second.Lat)
	assert.Nil(t, second.Lng)
	assert.Nil(t, second.Rating)

	derived := records[2]
	assert.NotEmpty(t, derived.ID)

	again, err := ReadSheet(f, "doctors")
	require.NoError(t, err)
	assert.Equal(t, derived.ID, again[2].ID)
}

func TestReadSheet_RejectsUnusableNumbers(t *testing.T) {
	path := writeWorkbook(t, "doctors", [][]interface{}{
		{"ID", "Name", "Lat", "Lng", "Rating"},
		{"1", "Good", "10", "10", "4.5"},
		{"2", "Not a number", "NaN", "10", "NaN"},
		{"3", "Infinite", "10", "+Inf", "Inf"},
		{"4", "Out of range lat", "91", "10"},
		{"5", "Out of range lng", "10", "200"},
		{"6", "Edge", "-90", "180"},
	})

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := ReadSheet(f, "doctors")
	require.NoError(t, err)
	require.Len(t, records, 6)

	require.NotNil(t, records[0].Lat)
	require.NotNil(t, records[0].Rating)
	for _, rec := range records[1:5] {
		assert.Nil(t, rec.Lat, rec.Name)
		assert.Nil(t, rec.Lng, rec.Name)
		assert.Nil(t, rec.Rating, rec.Name)
	}
	require.NotNil(t, records[5].Lat)
	assert.Equal(t, -90.0, *records[5].Lat)
	assert.Equal(t, 180.0, *records[5].Lng)
}

func TestReadSheet_RequiresNameColumn(t *testing.T) {
	path := writeWorkbook(t, "stores", [][]interface{}{
		{"ID", "Lat", "Lng"},
		{"s1", "1", "1"},
	})

	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = ReadSheet(f, "stores")
	assert.Error(t, err)
}

func TestBuildResult(t *testing.T) {
	d := 15.6051
	rating := 4.5
	data := []models.RankedResult{
		{
			Provider: models.Provider{
				Key:      models.Key{Source: "doctors", ID: "1"},
				Name:     "Dr. One",
				Category: models.CategoryCardiologist,
				Rating:   &rating,
				Location: &models.Coordinate{Lat: 10.1, Lng: 10.1},
			},
			Distance: &d,
		},
		{
			Provider: models.Provider{Key: models.Key{Source: "stores", ID: "2"}, Name: "Store"},
		},
	}

	f, err := BuildResult(data, "Results")
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Distance (km)", rows[0][11])
	assert.Equal(t, "15.6", rows[1][11])
	assert.Equal(t, "Store", rows[2][2])

	idx, err := f.GetSheetIndex("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}
