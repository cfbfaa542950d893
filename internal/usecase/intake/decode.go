package intake

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/cardex/internal/domain"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
)

var (
	// ErrMalformed signals a payload that is not valid JSON.
	ErrMalformed = fmt.Errorf("%w: malformed batch payload", domain.ErrValidation)
	// ErrNotArray signals a JSON payload whose top level is not an array.
	ErrNotArray = fmt.Errorf("%w: batch payload is not an array", domain.ErrValidation)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses a batch payload into per-item parse results.
// Invalid UTF-8 sequences are replaced before decoding.
func Decode(payload []byte) ([]domcard.Parsed, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)
	payload = bytes.ToValidUTF8(payload, []byte("�"))

	trimmed := bytes.TrimSpace(payload)
	if !json.Valid(trimmed) {
		return nil, ErrMalformed
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	items := make([]domcard.Parsed, len(raw))
	for i, r := range raw {
		items[i] = domcard.Parse(i, r)
	}
	return items, nil
}
