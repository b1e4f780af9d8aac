package access

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultGrants is the grant list of a membership with nothing configured.
func DefaultGrants() []string {
	return []string{TokenLocationWhenAssigned, TokenCalendarNever, TokenCarecircleNever}
}

const legacyManageLocations = "manage:locations"

// MigratePositional converts a legacy positional list
// [location, calendar, carecircle] into namespaced tokens. Applying it to its
// own output returns the same list.
func MigratePositional(slots []string) []string {
	if len(slots) == 0 {
		return DefaultGrants()
	}

	padded := make([]string, len(slots))
	copy(padded, slots)
	for len(padded) < 3 {
		padded = append(padded, "")
	}

	out := make([]string, len(padded))
	copy(out, padded)

	switch padded[0] {
	case legacyManageLocations, TokenLocationAlways:
		out[0] = TokenLocationAlways
	default:
		out[0] = TokenLocationWhenAssigned
	}
	if padded[1] == "" {
		out[1] = TokenCalendarNever
	}
	if padded[2] == "" {
		out[2] = TokenCarecircleNever
	}
	return out
}

type positionalSlot struct {
	Value string `json:"value"`
}

// DecodeStoredGrants reads a persisted grant list. Rows written before the
// namespaced migration hold [{"value": "..."}], later rows hold ["..."].
// legacy reports whether any element used the object form.
func DecodeStoredGrants(raw []byte) (tokens []string, legacy bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false, fmt.Errorf("decode grants: %w", err)
	}

	tokens = make([]string, 0, len(elems))
	for i, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if len(elem) > 0 && elem[0] == '{' {
			var slot positionalSlot
			if err := json.Unmarshal(elem, &slot); err != nil {
				return nil, false, fmt.Errorf("decode grant %d: %w", i, err)
			}
			tokens = append(tokens, slot.Value)
			legacy = true
			continue
		}
		var token string
		if err := json.Unmarshal(elem, &token); err != nil {
			return nil, false, fmt.Errorf("decode grant %d: %w", i, err)
		}
		tokens = append(tokens, token)
	}
	return tokens, legacy, nil
}

// ReadStoredGrants returns the namespaced grants a stored value stands for.
// Only legacy rows are read by position; an empty list counts as legacy
// because the namespaced writers never store one. Namespaced rows are
// returned as stored, whatever their order. converted reports whether the
// positional rewrite was applied.
func ReadStoredGrants(raw []byte) (tokens []string, converted bool, err error) {
	tokens, legacy, err := DecodeStoredGrants(raw)
	if err != nil {
		return nil, false, err
	}
	if !legacy && len(tokens) > 0 {
		return tokens, false, nil
	}
	return MigratePositional(tokens), true, nil
}

// EncodeGrants is the storage form written by every code path.
func EncodeGrants(tokens []string) ([]byte, error) {
	if tokens == nil {
		tokens = []string{}
	}
	return json.Marshal(tokens)
}
