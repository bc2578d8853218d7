package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Record hierarchy: organizations contain projects, species, accessions,
// plants and plant events. Every soft-deletable record carries a single
// nullable DeletedAt timestamp; active means DeletedAt nil.

type Project struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

type Species struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Genus          string     `json:"genus"`
	SpeciesName    string     `json:"species_name,omitempty"`
	Subspecies     string     `json:"subspecies,omitempty"`
	Variety        string     `json:"variety,omitempty"`
	Cultivar       string     `json:"cultivar,omitempty"`
	CommonName     string     `json:"common_name,omitempty"`
	Description    string     `json:"description,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// FormattedName renders the botanical name: genus and species epithet,
// then the subspecies and variety ranks, then the cultivar in quotes.
// A species with only a genus renders as just the genus.
func (s *Species) FormattedName() string {
	parts := []string{s.Genus}
	if s.SpeciesName != "" {
		parts = append(parts, s.SpeciesName)
	}
	if s.Subspecies != "" {
		parts = append(parts, "subsp.", s.Subspecies)
	}
	if s.Variety != "" {
		parts = append(parts, "var.", s.Variety)
	}
	name := strings.Join(parts, " ")
	if s.Cultivar != "" {
		name += " '" + s.Cultivar + "'"
	}
	return name
}

func (s *Species) MarshalJSON() ([]byte, error) {
	type alias Species
	return json.Marshal(struct {
		*alias
		FormattedName string `json:"formatted_name"`
	}{(*alias)(s), s.FormattedName()})
}

// Accession is a catalogued acquisition of plant material. ProjectID nil
// means the accession is organization-wide.
type Accession struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ProjectID      *string    `json:"project_id,omitempty"`
	Code           string     `json:"code"`
	Description    string     `json:"description,omitempty"`
	SpeciesID      *string    `json:"species_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

type Plant struct {
	ID          string     `json:"id"`
	AccessionID string     `json:"accession_id"`
	Code        string     `json:"code"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   string     `json:"created_by"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type EventType struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	DisplayOrder   int        `json:"display_order"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// PlantEvent records something that happened to a plant. EventDate may be
// backdated; CreatedAt is when the row was written.
type PlantEvent struct {
	ID          string    `json:"id"`
	PlantID     string    `json:"plant_id"`
	EventTypeID string    `json:"event_type_id"`
	EventDate   time.Time `json:"event_date"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}
