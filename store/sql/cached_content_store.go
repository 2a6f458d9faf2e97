package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-initiatives/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const postCacheKeyPrefix = "go-initiatives::post::v1"

// CachedContentStore memoizes post lookups so that a worker run resolving the
// same post for many recipients reads it once.
type CachedContentStore struct {
	base  core.ContentResolver
	cache repositorycache.CacheService
}

func NewCachedContentStore(
	base core.ContentResolver,
	cacheService repositorycache.CacheService,
) (*CachedContentStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base content resolver is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: content cache service is required")
	}
	return &CachedContentStore{base: base, cache: cacheService}, nil
}

// PostCacheKey returns go-initiatives::post::v1::<post_id> with the id URL
// path escaped.
func PostCacheKey(postID string) (string, error) {
	trimmed := strings.TrimSpace(postID)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: post id is required")
	}
	return postCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedContentStore) GetPost(ctx context.Context, postID string) (core.Post, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Post{}, fmt.Errorf("sqlstore: cached content store is not configured")
	}
	cacheKey, err := PostCacheKey(postID)
	if err != nil {
		return core.Post{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Post, error) {
		return s.base.GetPost(ctx, strings.TrimSpace(postID))
	})
}

// Invalidate drops a cached post after it is edited or deleted.
func (s *CachedContentStore) Invalidate(ctx context.Context, postID string) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached content store is not configured")
	}
	cacheKey, err := PostCacheKey(postID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
