package card

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/cardex/internal/db"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
)

// parseJSONGetResult decodes a JSON.GET $ reply, which wraps the document in an array.
func parseJSONGetResult(raw []byte) (domcard.Record, error) {
	var docs []domcard.Record
	if err := json.Unmarshal(raw, &docs); err != nil {
		var rec domcard.Record
		if err2 := json.Unmarshal(raw, &rec); err2 != nil {
			return domcard.Record{}, fmt.Errorf("unmarshal record: %w", err)
		}
		return rec, nil
	}
	if len(docs) == 0 {
		return domcard.Record{}, fmt.Errorf("unmarshal record: empty result")
	}
	return docs[0], nil
}

// decodeEntry reads the "$" payload of a search hit. Entries without a
// parsable document or id are dropped.
func decodeEntry(e db.SearchEntry) (domcard.Record, bool) {
	payload := strings.TrimSpace(e.Fields["$"])
	if payload == "" {
		return domcard.Record{}, false
	}
	var rec domcard.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return domcard.Record{}, false
	}
	if rec.ID == "" {
		return domcard.Record{}, false
	}
	return rec, true
}
