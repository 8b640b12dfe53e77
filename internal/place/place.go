// Package place models point-of-interest records from the places provider
// and derives their stable identity. Provider responses are heterogeneous;
// every field here is optional and consumers must tolerate partial records.
package place

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ID is the stable identity of a place, used as the dedupe and lookup key
// for favourites and as a render key.
type ID string

// Feature is a single place record. The shape follows the provider's
// GeoJSON-style responses with the fields the application reads; unknown
// fields are dropped on decode.
type Feature struct {
	ID         string      `json:"id,omitempty"`
	Type       string      `json:"type,omitempty"`
	Properties *Properties `json:"properties,omitempty"`
	Geometry   *Geometry   `json:"geometry,omitempty"`
}

// Properties carries the provider's per-place attributes. Categories and
// Category are alternates: some responses send a list, some a single string.
type Properties struct {
	Name         string   `json:"name,omitempty"`
	PlaceID      string   `json:"place_id,omitempty"`
	OSMID        int64    `json:"osm_id,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	Category     string   `json:"category,omitempty"`
	AddressLine1 string   `json:"address_line1,omitempty"`
	AddressLine2 string   `json:"address_line2,omitempty"`
	Street       string   `json:"street,omitempty"`
	City         string   `json:"city,omitempty"`
	Country      string   `json:"country,omitempty"`
	Distance     float64  `json:"distance,omitempty"`
}

// Geometry keeps coordinates as raw JSON: points and polygons both occur,
// and the identity fallback needs a byte-stable serialization rather than
// a parsed form.
type Geometry struct {
	Type        string          `json:"type,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// Resolve derives the stable identity of a feature. Precedence, first
// non-empty wins: provider place_id, OSM id, generic top-level id, then a
// compact serialization of the geometry coordinates.
//
// The coordinate fallback means two distinct minimal records at identical
// coordinates resolve to the same ID. That collision is an accepted
// approximation, kept from the original behaviour; do not "fix" it here
// without changing the favourites key format.
//
// Resolve is pure: favourites and rendering both call it independently and
// must agree.
func Resolve(f Feature) ID {
	if f.Properties != nil {
		if id := strings.TrimSpace(f.Properties.PlaceID); id != "" {
			return ID(id)
		}
		if f.Properties.OSMID != 0 {
			return ID(strconv.FormatInt(f.Properties.OSMID, 10))
		}
	}
	if id := strings.TrimSpace(f.ID); id != "" {
		return ID(id)
	}
	if f.Geometry != nil && len(f.Geometry.Coordinates) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, f.Geometry.Coordinates); err == nil {
			return ID(buf.String())
		}
		return ID(f.Geometry.Coordinates)
	}
	return ""
}

// FavouriteEntry is a bookmarked feature stored with its resolved identity.
type FavouriteEntry struct {
	Feature
	UniqueID ID `json:"_uniqueId"`
}

// DisplayName returns the best available label for a feature.
func DisplayName(f Feature) string {
	if f.Properties == nil {
		return ""
	}
	if f.Properties.Name != "" {
		return f.Properties.Name
	}
	return f.Properties.AddressLine1
}
