package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// Attributes is a flat set of primitive-valued attributes describing a
// cacheable request.
//
// Values must be nil, a valid UTF-8 string, bool, an integer type or a finite
// float. Names must be valid UTF-8.
// Nested structures must be flattened or hashed by the caller first (see
// ConversationHash).
type Attributes map[string]any

// Canonicalize produces the deterministic key for attrs.
// Format: a JSON object whose members are sorted by name, e.g.
// {"difficulty":3,"message":"hello","mode":"training"}.
func Canonicalize(attrs Attributes) (Key, error) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	result := []byte("{")
	for i, name := range names {
		if !utf8.ValidString(name) {
			return "", fmt.Errorf("%w: attribute name %q is not valid UTF-8", ErrUnsupportedValue, name)
		}
		if i > 0 {
			result = append(result, ',')
		}

		nameBytes, err := json.Marshal(name)
		if err != nil {
			return "", fmt.Errorf("cache: encode attribute name %q: %w", name, err)
		}
		result = append(result, nameBytes...)
		result = append(result, ':')

		valBytes, err := encodePrimitive(attrs[name])
		if err != nil {
			return "", fmt.Errorf("cache: attribute %q: %w", name, err)
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return Key(result), nil
}

// encodePrimitive encodes a single attribute value. Anything that is not a
// primitive is rejected rather than serialized, since map and struct encodings
// would let the key depend on shapes the caller never meant to key on.
func encodePrimitive(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		// JSON replaces invalid bytes with U+FFFD, so distinct strings would
		// share an encoding.
		if !utf8.ValidString(val) {
			return nil, fmt.Errorf("%w: string %q is not valid UTF-8", ErrUnsupportedValue, val)
		}
		return json.Marshal(val)
	case bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return json.Marshal(val)
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedValue, val)
		}
		return json.Marshal(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedValue, val)
		}
		return json.Marshal(val)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}
