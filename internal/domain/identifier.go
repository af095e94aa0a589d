package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Identifier names a product or category. The backend emits it either as a
// JSON string or as a JSON number; both decode to their textual form.
type Identifier string

// NormalizedID is an Identifier prepared for comparison.
type NormalizedID string

// Normalize is the only place identifiers are prepared for comparison.
// Catalog and membership endpoints disagree on casing, so IDs compare
// case-insensitively. Whitespace is significant.
func Normalize(id Identifier) NormalizedID {
	return NormalizedID(strings.ToLower(string(id)))
}

func (id Identifier) String() string {
	return string(id)
}

// IsZero reports whether the identifier was null or missing.
func (id Identifier) IsZero() bool {
	return id == ""
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid identifier %s: %w", data, err)
		}
		*id = Identifier(s)
		return nil
	}

	s, err := numberText(string(data))
	if err != nil {
		return fmt.Errorf("invalid identifier %s: %w", data, err)
	}
	*id = Identifier(s)
	return nil
}

func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// numberText renders a JSON number the way it prints in decimal notation:
// 10 -> "10", 10.50 -> "10.5", 1e3 -> "1000".
func numberText(raw string) (string, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// ParseIdentifiers decodes a JSON array of string or numeric identifiers.
func ParseIdentifiers(data []byte) ([]Identifier, error) {
	var ids []Identifier
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode identifier list: %w", err)
	}
	return ids, nil
}
