package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/mirdump/internal/ir"
)

// marshalPlaces converts a place set to canonical JSON TEXT for storage.
// An empty set is stored as [] rather than null.
func marshalPlaces(places []ir.Place) (string, error) {
	if places == nil {
		places = []ir.Place{}
	}
	data, err := ir.MarshalCanonical(places)
	if err != nil {
		return "", fmt.Errorf("marshal places: %w", err)
	}
	return string(data), nil
}

// unmarshalPlaces parses stored JSON TEXT back to places. Returns an empty
// (non-nil) slice for an empty set.
func unmarshalPlaces(data string) ([]ir.Place, error) {
	places := []ir.Place{}
	if data == "" || data == "[]" || data == "null" {
		return places, nil
	}
	if err := json.Unmarshal([]byte(data), &places); err != nil {
		return nil, fmt.Errorf("unmarshal places: %w", err)
	}
	return places, nil
}

// placesDigest returns the content digest stored alongside a place set.
func placesDigest(places []ir.Place) (string, error) {
	digest, err := ir.PlaceSetDigest(places)
	if err != nil {
		return "", fmt.Errorf("digest places: %w", err)
	}
	return digest, nil
}
