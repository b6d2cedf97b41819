package utils

import (
	"bytes"
	"encoding/json"
)

// JSONEqual compares two values by their serialized form. Struct fields
// serialize in declaration order and map keys sorted, so equal values give
// equal bytes.
func JSONEqual(a, b any) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}
