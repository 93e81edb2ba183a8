package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medinearby/internal/catalog"
	"medinearby/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "RADIUS_KM", "FALLBACK_LAT", "FALLBACK_LNG", "LOCATE_TIMEOUT", "SOURCES", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "9595", cfg.Port)
	assert.Equal(t, 20.0, cfg.RadiusKm)
	assert.Equal(t, models.Coordinate{Lat: 27.1767, Lng: 78.0081}, cfg.Fallback)
	assert.Equal(t, 10*time.Second, cfg.LocateTimeout)
	assert.Equal(t, []catalog.SourceSpec{
		{ID: "doctors"},
		{ID: "medical-stores", FixedCategory: models.CategoryMedicalStores},
		{ID: "import"},
	}, cfg.Sources)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RADIUS_KM", "50")
	t.Setenv("FALLBACK_LAT", "6.5244")
	t.Setenv("FALLBACK_LNG", "3.3792")
	t.Setenv("LOCATE_TIMEOUT", "3s")
	t.Setenv("SOURCES", "doctors")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()

	assert.Equal(t, 50.0, cfg.RadiusKm)
	assert.Equal(t, models.Coordinate{Lat: 6.5244, Lng: 3.3792}, cfg.Fallback)
	assert.Equal(t, 3*time.Second, cfg.LocateTimeout)
	assert.Equal(t, []catalog.SourceSpec{{ID: "doctors"}}, cfg.Sources)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RADIUS_KM", "twenty")
	t.Setenv("LOCATE_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 20.0, cfg.RadiusKm)
	assert.Equal(t, 10*time.Second, cfg.LocateTimeout)
}
