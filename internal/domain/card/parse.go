package card

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parsed is the outcome of reading one raw batch item: either a Record or a rejection reason.
type Parsed struct {
	Index     int
	Record    Record
	Rejection string
}

// OK reports whether the item was accepted.
func (p Parsed) OK() bool { return p.Rejection == "" }

// rawRecord mirrors Record without the derived slots, which are never taken from input.
type rawRecord struct {
	ID          string    `json:"id"`
	Category    *string   `json:"category"`
	Name        *string   `json:"name"`
	Illustrator *string   `json:"illustrator"`
	Rarity      *string   `json:"rarity"`
	Image       *string   `json:"image"`
	LocalID     *string   `json:"localId"`
	Set         *Set      `json:"set"`
	Variants    *Variants `json:"variants"`
}

// Parse turns one loosely-typed batch item into a Record.
// Non-objects, items without a non-empty string id and items whose modelled
// fields have the wrong type are rejected.
func Parse(index int, raw json.RawMessage) Parsed {
	reject := func(format string, args ...any) Parsed {
		return Parsed{Index: index, Rejection: fmt.Sprintf(format, args...)}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return reject("item %d is not an object", index)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return reject("item %d is not an object: %v", index, err)
	}

	var id string
	if rawID, ok := fields["id"]; ok {
		if err := json.Unmarshal(rawID, &id); err != nil {
			return reject("item %d has a non-string id", index)
		}
	}
	if id == "" {
		return reject("item %d has no id", index)
	}

	var rr rawRecord
	if err := json.Unmarshal(trimmed, &rr); err != nil {
		return reject("item %d (%s) is malformed: %v", index, id, err)
	}

	extra := make(map[string]json.RawMessage)
	for k, v := range fields {
		if knownFields[k] {
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		extra = nil
	}

	return Parsed{
		Index: index,
		Record: Record{
			ID:          rr.ID,
			Category:    deref(rr.Category),
			Name:        deref(rr.Name),
			Illustrator: deref(rr.Illustrator),
			Rarity:      deref(rr.Rarity),
			Image:       deref(rr.Image),
			LocalID:     deref(rr.LocalID),
			Set:         rr.Set,
			Variants:    rr.Variants,
			Extra:       extra,
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
