package templates

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 16

// CachedSource memoizes successful lookups of another source. Failures are not
// cached, so a transient outage is retried on the next call.
type CachedSource struct {
	next  Source
	cache *lru.Cache[int, string]
}

func NewCachedSource(next Source, size int) (*CachedSource, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[int, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedSource{next: next, cache: cache}, nil
}

func (s *CachedSource) PhaseTemplate(ctx context.Context, phase int) (string, error) {
	if tpl, ok := s.cache.Get(phase); ok {
		return tpl, nil
	}
	tpl, err := s.next.PhaseTemplate(ctx, phase)
	if err != nil {
		return "", err
	}
	s.cache.Add(phase, tpl)
	return tpl, nil
}

// Purge drops every cached template.
func (s *CachedSource) Purge() {
	s.cache.Purge()
}
