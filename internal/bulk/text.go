package bulk

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseArrayString parses the bracketed list form "[1, 2, 3]" that
// JVM bridges produce with Arrays.toString. "[]" yields an empty slice.
// Values outside the int64 range are rejected.
func ParseArrayString(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: expected bracketed list, got %q", ErrMalformed, s)
	}

	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []int64{}, nil
	}

	parts := strings.Split(inner, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FormatArrayString renders ids in the bracketed list form.
func FormatArrayString(ids []int64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte(']')
	return b.String()
}
