package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bilgisen/feedviewer/internal/logger"
	"github.com/bilgisen/feedviewer/internal/models"
)

// Retriever turns a feed URL into FeedItems through a Fetcher.
type Retriever struct {
	fetcher Fetcher
	parser  *Parser
}

func NewRetriever(fetcher Fetcher, parser *Parser) *Retriever {
	if parser == nil {
		parser = NewParser()
	}
	return &Retriever{
		fetcher: fetcher,
		parser:  parser,
	}
}

// Retrieve fetches feedURL and returns its items in upstream order.
func (r *Retriever) Retrieve(ctx context.Context, feedURL string) ([]models.FeedItem, error) {
	log := logger.Get()
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, ErrMissingURL
	}

	start := time.Now()
	env, err := r.fetcher.Fetch(ctx, feedURL)
	if err == nil && env == nil {
		err = fmt.Errorf("%w: empty response", ErrNetworkFailure)
	}
	if err == nil {
		err = checkEnvelope(env, 0)
	}
	if err != nil {
		if !errors.Is(err, ErrUpstreamRejected) && !errors.Is(err, ErrNetworkFailure) {
			err = fmt.Errorf("%w: %w", ErrNetworkFailure, err)
		}
		log.Warn().
			Err(err).
			Str("feed_url", feedURL).
			Str("kind", Kind(err)).
			Dur("duration", time.Since(start)).
			Msg("Feed retrieval failed")
		return nil, err
	}

	items := r.parser.NormalizeItems(env.Items)

	log.Info().
		Str("feed_url", feedURL).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Retrieved feed")

	return items, nil
}
