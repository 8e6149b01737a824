package extract

import (
	"context"
	"errors"

	"github.com/carbonledger/esgscan/internal/cache"
	"github.com/carbonledger/esgscan/internal/logging"
)

// ResponseStore persists raw extraction responses by key.
type ResponseStore interface {
	Get(key string) (*cache.Entry, error)
	Set(key string, data []byte) error
}

// CachedProvider answers repeat extractions of the same document from a
// ResponseStore. Drafts bypass the cache because they need no extraction.
type CachedProvider struct {
	Next  Provider
	Store ResponseStore
	// Namespace separates responses from different models, prompts and
	// sampling settings.
	Namespace string
	// Accept reports whether a response is worth keeping. Rejected
	// responses are returned but not stored. Nil accepts everything.
	Accept func(raw []byte) bool
}

var _ Provider = CachedProvider{}

// Extract returns a stored response when one exists and otherwise calls Next
// and stores its response if Accept allows it. Store failures are logged and never fail the
// extraction.
func (p CachedProvider) Extract(ctx context.Context, doc Document) ([]byte, error) {
	if doc.IsDraft() || p.Store == nil {
		return p.Next.Extract(ctx, doc)
	}

	log := logging.FromContext(ctx)
	key := cache.Key([]byte(p.Namespace), []byte(doc.MIMEType), doc.Data)

	entry, err := p.Store.Get(key)
	switch {
	case err == nil:
		log.Debug().
			Ctx(ctx).
			Str("component", "extract").
			Str("operation", "cache_hit").
			Str("document", doc.Name).
			Dur("age", entry.Age()).
			Msg("using cached extraction")
		return entry.Data, nil
	case !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired):
		log.Warn().
			Ctx(ctx).
			Str("component", "extract").
			Str("operation", "cache_read").
			Str("document", doc.Name).
			Err(err).
			Msg("ignoring unreadable cache entry")
	}

	raw, err := p.Next.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}

	if p.Accept != nil && !p.Accept(raw) {
		log.Debug().
			Ctx(ctx).
			Str("component", "extract").
			Str("operation", "cache_write").
			Str("document", doc.Name).
			Msg("response rejected, not caching")
		return raw, nil
	}

	if setErr := p.Store.Set(key, raw); setErr != nil {
		log.Warn().
			Ctx(ctx).
			Str("component", "extract").
			Str("operation", "cache_write").
			Str("document", doc.Name).
			Err(setErr).
			Msg("failed to cache extraction")
	}
	return raw, nil
}
