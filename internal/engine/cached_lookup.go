package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rshade/phonecheck/internal/contact"
	"github.com/rshade/phonecheck/internal/engine/cache"
	"github.com/rshade/phonecheck/internal/lookup"
)

// cachedLooker serves line types from a cache and stores every successful
// lookup of the wrapped Looker. Cache failures are logged and never fail a row.
type cachedLooker struct {
	next   Looker
	store  *cache.Store
	logger zerolog.Logger
	hits   atomic.Int64
}

func newCachedLooker(next Looker, store *cache.Store, logger zerolog.Logger) *cachedLooker {
	return &cachedLooker{next: next, store: store, logger: logger}
}

// Lookup implements Looker.
func (c *cachedLooker) Lookup(ctx context.Context, row contact.Row) (contact.Row, lookup.Outcome, error) {
	key := row.DialableNumber()

	if key != "" {
		lineType, err := c.store.Get(key)
		switch {
		case err == nil:
			c.hits.Add(1)
			return row.WithPhoneType(lineType), lookup.Outcome{Kind: lookup.KindSuccess, LineType: lineType}, nil
		case !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired):
			c.logger.Warn().Err(err).Str("internal_id", row.InternalID).Msg("reading lookup cache")
		}
	}

	resolved, outcome, err := c.next.Lookup(ctx, row)
	if err != nil || !outcome.OK() || key == "" {
		return resolved, outcome, err
	}

	if setErr := c.store.Set(key, outcome.LineType); setErr != nil {
		c.logger.Warn().Err(setErr).Str("internal_id", row.InternalID).Msg("writing lookup cache")
	}
	return resolved, outcome, nil
}

// Hits returns the number of rows served from the cache.
func (c *cachedLooker) Hits() int {
	return int(c.hits.Load())
}
