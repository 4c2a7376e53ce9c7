package geocode

import "strconv"

// FloatifyLatLng walks a JSON-decoded tree and rewrites every map that
// has exactly the two keys "lat" and "lng" so that its values are
// numeric where possible. The geocoding API sometimes returns
// coordinates as strings; everything else in the tree is left as-is.
//
// The input is never mutated; maps and slices in the result are fresh
// allocations.
func FloatifyLatLng(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if isLatLngLeaf(v) {
			return map[string]any{
				"lat": floatIfFloat(v["lat"]),
				"lng": floatIfFloat(v["lng"]),
			}
		}
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = FloatifyLatLng(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = FloatifyLatLng(child)
		}
		return out
	default:
		return value
	}
}

// isLatLngLeaf reports whether m is a coordinate pair: exactly two
// keys, and those keys are "lat" and "lng". A map with extra keys is
// a generic mapping even if it contains lat/lng.
func isLatLngLeaf(m map[string]any) bool {
	if len(m) != 2 {
		return false
	}
	_, hasLat := m["lat"]
	_, hasLng := m["lng"]
	return hasLat && hasLng
}

// floatIfFloat parses a string value as a float and returns the
// number, or the original value when it is not a parseable string.
// Never fails.
func floatIfFloat(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return value
	}
	return f
}
