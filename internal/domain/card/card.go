package card

import (
	"encoding/json"
	"strings"
)

// Set describes the expansion a card belongs to.
type Set struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Logo   string `json:"logo,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Variants holds the print variant flags of a card.
type Variants struct {
	FirstEdition *bool `json:"firstEdition,omitempty"`
	Holo         *bool `json:"holo,omitempty"`
	Normal       *bool `json:"normal,omitempty"`
	Reverse      *bool `json:"reverse,omitempty"`
	WPromo       *bool `json:"wPromo,omitempty"`
}

// Record is a catalog card plus its derived search signals.
//
// The derived slots (SearchText, ImageVector, Caption, CaptionVector) are filled
// independently by the enrichment pipeline; each may stay empty.
// CaptionVector is only ever set together with Caption (see SetCaption).
type Record struct {
	ID          string    `json:"id"`
	Category    string    `json:"category,omitempty"`
	Name        string    `json:"name,omitempty"`
	Illustrator string    `json:"illustrator,omitempty"`
	Rarity      string    `json:"rarity,omitempty"`
	Image       string    `json:"image,omitempty"`
	LocalID     string    `json:"localId,omitempty"`
	Set         *Set      `json:"set,omitempty"`
	Variants    *Variants `json:"variants,omitempty"`

	SearchText    string    `json:"searchText,omitempty"`
	ImageVector   []float32 `json:"imageVector,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	CaptionVector []float32 `json:"captionVector,omitempty"`

	// Extra keeps source keys this type does not model so an upsert
	// writes the document back in its original shape.
	Extra map[string]json.RawMessage `json:"-"`
}

// Derived field names as stored in the document.
const (
	FieldSearchText    = "searchText"
	FieldImageVector   = "imageVector"
	FieldCaption       = "caption"
	FieldCaptionVector = "captionVector"
)

var derivedFields = map[string]bool{
	FieldSearchText:    true,
	FieldImageVector:   true,
	FieldCaption:       true,
	FieldCaptionVector: true,
}

// DeriveSearchText joins category, name, illustrator, rarity and set name,
// skipping empty parts, with single spaces.
func DeriveSearchText(r *Record) string {
	setName := ""
	if r.Set != nil {
		setName = r.Set.Name
	}
	parts := []string{r.Category, r.Name, r.Illustrator, r.Rarity, setName}

	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// ClearDerived drops all derived signals so re-enrichment overwrites them.
func (r *Record) ClearDerived() {
	r.SearchText = ""
	r.ImageVector = nil
	r.Caption = ""
	r.CaptionVector = nil
}

// SetCaption stores a caption and its optional embedding.
// An empty caption clears both slots.
func (r *Record) SetCaption(caption string, vector []float32) {
	if strings.TrimSpace(caption) == "" {
		r.Caption = ""
		r.CaptionVector = nil
		return
	}
	r.Caption = caption
	r.CaptionVector = vector
}

// HasImage reports whether the record carries an image reference.
func (r *Record) HasImage() bool { return strings.TrimSpace(r.Image) != "" }

// MarshalJSON writes the modelled fields merged with Extra.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	known, err := json.Marshal(plain(r))
	if err != nil || len(r.Extra) == 0 {
		return known, err //nolint:wrapcheck // plain encoding
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+16)
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err //nolint:wrapcheck // plain encoding
	}
	for k, v := range r.Extra {
		if _, ok := merged[k]; ok || derivedFields[k] {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged) //nolint:wrapcheck // plain encoding
}

// UnmarshalJSON reads the modelled fields and keeps the rest in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err //nolint:wrapcheck // plain decoding
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err //nolint:wrapcheck // plain decoding
	}
	for k := range knownFields {
		delete(all, k)
	}
	if len(all) > 0 {
		p.Extra = all
	}
	*r = Record(p)
	return nil
}

var knownFields = map[string]bool{
	"id": true, "category": true, "name": true, "illustrator": true, "rarity": true,
	"image": true, "localId": true, "set": true, "variants": true,
	FieldSearchText: true, FieldImageVector: true, FieldCaption: true, FieldCaptionVector: true,
}

// Card is the public projection of a Record returned by retrieval.
// It never carries search text, vectors or the caption.
type Card struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Category    string    `json:"category,omitempty"`
	Illustrator string    `json:"illustrator,omitempty"`
	Image       string    `json:"image,omitempty"`
	LocalID     string    `json:"localId,omitempty"`
	Rarity      string    `json:"rarity,omitempty"`
	Set         *Set      `json:"set,omitempty"`
	Variants    *Variants `json:"variants,omitempty"`
	Score       *float64  `json:"score,omitempty"`
}

// Card projects the record to its public shape.
func (r *Record) Card() Card {
	return Card{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		Illustrator: r.Illustrator,
		Image:       r.Image,
		LocalID:     r.LocalID,
		Rarity:      r.Rarity,
		Set:         r.Set,
		Variants:    r.Variants,
	}
}

// Hit is a card matched by vector search with its raw store distance.
type Hit struct {
	Card     Card
	Distance float64
}
