package place

import (
	"encoding/json"
	"testing"
)

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name    string
		feature Feature
		want    ID
	}{
		{
			name: "place_id wins over everything",
			feature: Feature{
				ID: "top-level",
				Properties: &Properties{
					PlaceID: "geoapify-abc",
					OSMID:   42,
				},
				Geometry: &Geometry{Coordinates: json.RawMessage(`[1,2]`)},
			},
			want: "geoapify-abc",
		},
		{
			name: "osm_id when place_id empty",
			feature: Feature{
				ID:         "top-level",
				Properties: &Properties{OSMID: 42},
			},
			want: "42",
		},
		{
			name: "whitespace place_id treated as empty",
			feature: Feature{
				Properties: &Properties{PlaceID: "   ", OSMID: 42},
			},
			want: "42",
		},
		{
			name:    "top-level id when properties give nothing",
			feature: Feature{ID: "xyz", Properties: &Properties{Name: "Cafe"}},
			want:    "xyz",
		},
		{
			name: "geometry coordinates as last resort",
			feature: Feature{
				Geometry: &Geometry{Type: "Point", Coordinates: json.RawMessage(`[13.4, 52.5]`)},
			},
			want: `[13.4,52.5]`,
		},
		{
			name:    "nil properties and geometry",
			feature: Feature{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.feature); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestResolve_StableAcrossVariation checks identity stability: features
// sharing a provider id resolve identically no matter what else differs.
func TestResolve_StableAcrossVariation(t *testing.T) {
	a := Feature{Properties: &Properties{PlaceID: "p1", Name: "Morning name"}}
	b := Feature{
		ID:         "other",
		Properties: &Properties{PlaceID: "p1", Name: "Evening name", Categories: []string{"catering"}},
		Geometry:   &Geometry{Coordinates: json.RawMessage(`[9,9]`)},
	}

	if Resolve(a) != Resolve(b) {
		t.Errorf("Resolve() differs for same place_id: %q vs %q", Resolve(a), Resolve(b))
	}
}

// TestResolve_CoordinateCollision documents the accepted approximation:
// two distinct minimal records at the same coordinates share an identity.
func TestResolve_CoordinateCollision(t *testing.T) {
	coords := json.RawMessage(`[13.4, 52.5]`)
	a := Feature{Properties: &Properties{Name: "Kiosk"}, Geometry: &Geometry{Coordinates: coords}}
	b := Feature{Properties: &Properties{Name: "Bench"}, Geometry: &Geometry{Coordinates: coords}}

	if Resolve(a) != Resolve(b) {
		t.Error("coordinate fallback should collide for identical coordinates")
	}
}

func TestResolve_Pure(t *testing.T) {
	f := Feature{Properties: &Properties{OSMID: 7}}
	first := Resolve(f)
	for i := 0; i < 3; i++ {
		if got := Resolve(f); got != first {
			t.Fatalf("Resolve() not deterministic: %q then %q", first, got)
		}
	}
}

func TestFavouriteEntry_MarshalsFlat(t *testing.T) {
	entry := FavouriteEntry{
		Feature:  Feature{Properties: &Properties{Name: "Cafe", PlaceID: "p9"}},
		UniqueID: "p9",
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["_uniqueId"] != "p9" {
		t.Errorf("_uniqueId = %v, want p9", decoded["_uniqueId"])
	}
	if _, ok := decoded["properties"]; !ok {
		t.Error("feature fields should sit at the top level of the entry")
	}
}
