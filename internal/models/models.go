package models

import "math"

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a finite position on the globe.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Key identifies a provider inside the merged catalog.
type Key struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

const (
	CategoryAll = "All"

	CategoryCardiologist     = "Cardiologist"
	CategoryDermatologist    = "Dermatologist"
	CategoryPediatrician     = "Pediatrician"
	CategoryGeneralPhysician = "General Physician"
	CategoryOrthopedic       = "Orthopedic"
	CategoryNeurologist      = "Neurologist"
	CategoryPharmacy         = "Pharmacy"
	CategoryMedicalStores    = "Medical Stores"
)

// Categories lists the selectable filter values, sentinel first.
var Categories = []string{
	CategoryAll,
	CategoryCardiologist,
	CategoryDermatologist,
	CategoryPediatrician,
	CategoryGeneralPhysician,
	CategoryOrthopedic,
	CategoryNeurologist,
	CategoryPharmacy,
	CategoryMedicalStores,
}

// IsAllCategories reports whether c disables category filtering.
func IsAllCategories(c string) bool {
	return c == "" || c == CategoryAll || c == "All Specialties"
}

// RawRecord is a catalog record as delivered by an upstream source.
type RawRecord struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Specialty string   `json:"specialty,omitempty"`
	Category  string   `json:"category,omitempty"`
	Clinic    string   `json:"clinic,omitempty"`
	Address   string   `json:"address,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Hours     string   `json:"hours,omitempty"`
	Image     string   `json:"image,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

type Provider struct {
	Key
	Category  string      `json:"category"`
	Name      string      `json:"name"`
	Specialty string      `json:"specialty,omitempty"`
	Clinic    string      `json:"clinic,omitempty"`
	Address   string      `json:"address,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Hours     string      `json:"hours,omitempty"`
	Image     string      `json:"image,omitempty"`
	Rating    *float64    `json:"rating,omitempty"`
	Location  *Coordinate `json:"location,omitempty"`
}

type Criteria struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

// RankedResult is a provider decorated with its distance from the user in km.
// Distance is nil while no user coordinate is known.
type RankedResult struct {
	Provider
	Distance *float64 `json:"distance,omitempty"`
}

// DisplayDistance rounds the distance to one decimal place. Filtering and
// sorting never use the rounded value.
func (r RankedResult) DisplayDistance() (float64, bool) {
	if r.Distance == nil || math.IsInf(*r.Distance, 1) {
		return 0, false
	}
	return math.Round(*r.Distance*10) / 10, true
}
