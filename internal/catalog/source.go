package catalog

import (
	"strings"

	"medinearby/internal/models"
)

// SourceSpec declares an upstream source and how its records are categorised.
// A non-empty FixedCategory is stamped on every record of the source.
// Otherwise the record's own category (or, failing that, its specialty) is used.
type SourceSpec struct {
	ID            string
	FixedCategory string
}

// ParseSourceSpecs parses a comma-separated "id[:Fixed Category]" list.
func ParseSourceSpecs(s string) []SourceSpec {
	var specs []SourceSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, category, _ := strings.Cut(part, ":")
		specs = append(specs, SourceSpec{
			ID:            strings.TrimSpace(id),
			FixedCategory: strings.TrimSpace(category),
		})
	}
	return specs
}

func (s SourceSpec) category(rec models.RawRecord) string {
	if s.FixedCategory != "" {
		return s.FixedCategory
	}
	if rec.Category != "" {
		return rec.Category
	}
	return rec.Specialty
}

// Stamp converts raw records into providers of this source. The input is not
// modified.
func (s SourceSpec) Stamp(records []models.RawRecord) []models.Provider {
	providers := make([]models.Provider, 0, len(records))
	for _, rec := range records {
		p := models.Provider{
			Key:       models.Key{Source: s.ID, ID: rec.ID},
			Category:  s.category(rec),
			Name:      rec.Name,
			Specialty: rec.Specialty,
			Clinic:    rec.Clinic,
			Address:   rec.Address,
			Phone:     rec.Phone,
			Hours:     rec.Hours,
			Image:     rec.Image,
		}
		if rec.Rating != nil {
			rating := *rec.Rating
			p.Rating = &rating
		}
		if rec.Lat != nil && rec.Lng != nil {
			p.Location = &models.Coordinate{Lat: *rec.Lat, Lng: *rec.Lng}
		}
		providers = append(providers, p)
	}
	return providers
}
