package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
	"github.com/kailas-cloud/cardex/internal/logger"
)

// Tier is one retrieval strategy of the text search. Tiers run in order
// and the first non-empty result wins.
type Tier interface {
	Name() string
	Search(ctx context.Context, query string) ([]domcard.Card, error)
}

// Tokenize lower-cases the query and splits it on whitespace.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// KeywordTier matches cards whose search text contains every query token.
type KeywordTier struct {
	repo  Repository
	limit int
}

// NewKeywordTier creates the keyword tier returning at most limit cards.
func NewKeywordTier(repo Repository, limit int) *KeywordTier {
	return &KeywordTier{repo: repo, limit: limit}
}

// Name implements Tier.
func (t *KeywordTier) Name() string { return "keyword" }

// Search implements Tier.
func (t *KeywordTier) Search(ctx context.Context, query string) ([]domcard.Card, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	cards, err := t.repo.FindAllTokens(ctx, tokens, t.limit)
	if err != nil {
		return nil, fmt.Errorf("keyword tier: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if t.limit > 0 && len(cards) >= t.limit {
		logger.FromContext(ctx).Debug("keyword results truncated",
			zap.Strings("tokens", tokens), zap.Int("limit", t.limit))
	}
	return cards, nil
}

// CaptionTier ranks cards by caption embedding distance to the vectorized query.
type CaptionTier struct {
	repo  Repository
	texts TextEmbedder
	k     int
}

// NewCaptionTier creates the caption vector tier returning the k nearest cards.
func NewCaptionTier(repo Repository, texts TextEmbedder, k int) *CaptionTier {
	return &CaptionTier{repo: repo, texts: texts, k: k}
}

// Name implements Tier.
func (t *CaptionTier) Name() string { return "caption_vector" }

// Search implements Tier. Scores are raw distances, ascending.
func (t *CaptionTier) Search(ctx context.Context, query string) ([]domcard.Card, error) {
	vec, err := t.texts.VectorizeText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := t.repo.NearestByCaption(ctx, vec, t.k)
	if err != nil {
		return nil, fmt.Errorf("caption tier: %w: %w", domain.ErrStoreUnavailable, err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > t.k {
		hits = hits[:t.k]
	}

	cards := make([]domcard.Card, len(hits))
	for i, h := range hits {
		c := h.Card
		score := h.Distance
		c.Score = &score
		cards[i] = c
	}
	return cards, nil
}
