package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSpecies_FormattedName(t *testing.T) {
	tests := []struct {
		name    string
		species Species
		want    string
	}{
		{
			name:    "genus only",
			species: Species{Genus: "Cercis"},
			want:    "Cercis",
		},
		{
			name:    "genus and species",
			species: Species{Genus: "Cercis", SpeciesName: "canadensis"},
			want:    "Cercis canadensis",
		},
		{
			name:    "with variety",
			species: Species{Genus: "Cercis", SpeciesName: "canadensis", Variety: "texensis"},
			want:    "Cercis canadensis var. texensis",
		},
		{
			name:    "with subspecies and cultivar",
			species: Species{Genus: "Cercis", SpeciesName: "canadensis", Subspecies: "mexicana", Cultivar: "Forest Pansy"},
			want:    "Cercis canadensis subsp. mexicana 'Forest Pansy'",
		},
		{
			name:    "cultivar without species epithet",
			species: Species{Genus: "Cercis", Cultivar: "Avondale"},
			want:    "Cercis 'Avondale'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.species.FormattedName(); got != tt.want {
				t.Errorf("FormattedName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpecies_MarshalIncludesFormattedName(t *testing.T) {
	sp := &Species{ID: "sp1", Genus: "Cercis", SpeciesName: "canadensis"}

	data, err := json.Marshal(sp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"formatted_name":"Cercis canadensis"`) {
		t.Errorf("serialized species missing formatted_name: %s", data)
	}
}
