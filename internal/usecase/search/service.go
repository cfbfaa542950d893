package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/domain"
	domcard "github.com/kailas-cloud/cardex/internal/domain/card"
	"github.com/kailas-cloud/cardex/internal/logger"
)

// Retrieval defaults.
const (
	DefaultImageCutoff  = 0.8
	DefaultKeywordLimit = 100
	DefaultFallbackK    = 10
)

// ImageQuery is an uploaded image to match against the catalog.
type ImageQuery struct {
	Data        []byte
	ContentType string
}

// Service answers image and text retrieval requests.
type Service struct {
	repo   Repository
	images ImageEmbedder
	texts  TextEmbedder
	tiers  []Tier
	cutoff float64
}

// New creates a retrieval service with the keyword and caption vector tiers.
func New(repo Repository, images ImageEmbedder, texts TextEmbedder) *Service {
	return &Service{
		repo:   repo,
		images: images,
		texts:  texts,
		tiers:  defaultTiers(repo, texts, DefaultKeywordLimit, DefaultFallbackK),
		cutoff: DefaultImageCutoff,
	}
}

func defaultTiers(repo Repository, texts TextEmbedder, keywordLimit, fallbackK int) []Tier {
	return []Tier{
		NewKeywordTier(repo, keywordLimit),
		NewCaptionTier(repo, texts, fallbackK),
	}
}

// WithLimits sets the keyword tier result cap and the caption tier K.
// Non-positive values keep the defaults.
func (s *Service) WithLimits(keywordLimit, fallbackK int) *Service {
	if keywordLimit <= 0 {
		keywordLimit = DefaultKeywordLimit
	}
	if fallbackK <= 0 {
		fallbackK = DefaultFallbackK
	}
	s.tiers = defaultTiers(s.repo, s.texts, keywordLimit, fallbackK)
	return s
}

// WithImageCutoff sets the minimum similarity, exclusive, for an image match.
func (s *Service) WithImageCutoff(cutoff float64) *Service {
	s.cutoff = cutoff
	return s
}

// WithTiers replaces the text search tiers.
func (s *Service) WithTiers(tiers ...Tier) *Service {
	if len(tiers) > 0 {
		s.tiers = tiers
	}
	return s
}

// SearchImage returns the single closest card when its similarity
// (1 - cosine distance) is strictly above the cutoff, otherwise nothing.
func (s *Service) SearchImage(ctx context.Context, q ImageQuery) ([]domcard.Card, error) {
	if len(q.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrValidation)
	}

	vec, err := s.images.VectorizeImage(ctx, q.Data, q.ContentType)
	if err != nil {
		return nil, fmt.Errorf("vectorize image: %w", err)
	}

	hits, err := s.repo.NearestByImage(ctx, vec, 1)
	if err != nil {
		return nil, fmt.Errorf("image search: %w: %w", domain.ErrStoreUnavailable, err)
	}

	cards := []domcard.Card{}
	if len(hits) > 0 {
		best := hits[0]
		similarity := 1 - best.Distance
		if similarity > s.cutoff {
			cards = append(cards, best.Card)
		} else {
			logger.FromContext(ctx).Debug("image match below cutoff",
				zap.String("id", best.Card.ID),
				zap.Float64("similarity", similarity),
				zap.Float64("cutoff", s.cutoff),
			)
		}
	}
	return cards, nil
}

// SearchText runs the tiers in order and returns the first non-empty result.
// Returns ErrNoMatch when every tier comes back empty.
func (s *Service) SearchText(ctx context.Context, query string) ([]domcard.Card, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrValidation)
	}

	log := logger.FromContext(ctx)
	for _, t := range s.tiers {
		cards, err := t.Search(ctx, query)
		if err != nil {
			return nil, err //nolint:wrapcheck // tiers wrap their own errors
		}
		if len(cards) > 0 {
			log.Debug("text search matched", zap.String("tier", t.Name()), zap.Int("results", len(cards)))
			return cards, nil
		}
	}
	return nil, domain.ErrNoMatch
}
