// Package cardex provides a Go client for the cardex retrieval API.
//
// The client wraps the two search endpoints. Image search takes an
// uploaded photo of a card and returns at most one catalog match. Text
// search takes free text and returns keyword matches, falling back to
// caption similarity when no card contains every word.
//
//	client, _ := cardex.New("https://cards.example.com", cardex.WithAPIKey(key))
//	cards, err := client.TextSearch(ctx, "charizard holo")
//	if errors.Is(err, cardex.ErrNoMatch) {
//	    // nothing found
//	}
//
//	f, _ := os.Open("photo.jpg")
//	match, _ := client.ImageSearch(ctx, f, "photo.jpg", "image/jpeg")
package cardex
