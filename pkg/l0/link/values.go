package link

import (
	"bytes"
	"strconv"
	"strings"
)

// ParseFloat parses a reply holding a single number, e.g. "24.13".
func ParseFloat(payload []byte) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
}

// ParseFloats parses a reply holding numbers separated by any of the
// characters in seps, e.g. "1.5 -0.25" for a position and velocity pair.
// Consecutive separators don't produce empty fields.
func ParseFloats(payload []byte, seps string) ([]float64, error) {
	var vals []float64
	fields := bytes.FieldsFunc(payload, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	for _, field := range fields {
		if len(bytes.TrimSpace(field)) == 0 {
			continue
		}
		val, err := ParseFloat(field)
		if err != nil {
			return vals, err
		}
		vals = append(vals, val)
	}
	return vals, nil
}
