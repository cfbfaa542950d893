package cardex

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

// Card is a catalog card returned by search.
// Score is set only by caption-similarity text matches and holds the
// raw distance (lower is closer).
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

// HealthStatus is the body of GET /health. Status is "ok", "degraded"
// or "error"; Checks maps each dependency to its own status.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
