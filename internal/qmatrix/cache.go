package qmatrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/examtrail/pyqbank/internal/catalog"
	"github.com/examtrail/pyqbank/internal/platform/cache"
)

const defaultIndexTTL = 15 * time.Minute

// CachedBuilder wraps a Builder with a Redis-backed attribute-index cache.
// Attribute indices are stable per scope while the catalog is unchanged, so
// they cache well; vectors are cheap once the index is in hand and are not
// cached. Cache failures are logged and degrade to a direct build — the cache
// never makes a request fail.
type CachedBuilder struct {
	*Builder
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedBuilder wraps b with an attribute-index cache. A non-positive ttl
// falls back to the default.
func NewCachedBuilder(b *Builder, c *cache.Cache, ttl time.Duration) *CachedBuilder {
	if ttl <= 0 {
		ttl = defaultIndexTTL
	}
	return &CachedBuilder{Builder: b, cache: c, ttl: ttl}
}

func indexKey(scope catalog.Scope) string {
	return fmt.Sprintf("qmatrix:attr-index:%s:%s", scope.Level, scope.ID)
}

// BuildAttributeIndex returns the cached index for a scope, building and
// storing it on a miss.
func (cb *CachedBuilder) BuildAttributeIndex(ctx context.Context, scope catalog.Scope) (*AttributeIndex, error) {
	key := indexKey(scope)

	raw, err := cb.cache.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var ix AttributeIndex
		if err := json.Unmarshal(raw, &ix); err != nil {
			slog.Warn("discarding undecodable cached attribute index", "key", key, "error", err)
		} else {
			return &ix, nil
		}
	case !errors.Is(err, redis.Nil):
		slog.Warn("attribute index cache read failed", "key", key, "error", err)
	}

	ix, err := cb.Builder.BuildAttributeIndex(ctx, scope)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(ix); err == nil {
		if err := cb.cache.Client.Set(ctx, key, raw, cb.ttl).Err(); err != nil {
			slog.Warn("attribute index cache write failed", "key", key, "error", err)
		}
	}
	return ix, nil
}

// Invalidate drops the cached index for a scope, for use after catalog edits.
func (cb *CachedBuilder) Invalidate(ctx context.Context, scope catalog.Scope) error {
	return cb.cache.Client.Del(ctx, indexKey(scope)).Err()
}

// EnhancedQuestionPage mirrors Builder.EnhancedQuestionPage but resolves the
// attribute index through the cache.
func (cb *CachedBuilder) EnhancedQuestionPage(ctx context.Context, scope catalog.Scope, page, pageSize int) (*EnhancedPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1, got %d", pageSize)
	}

	ix, err := cb.BuildAttributeIndex(ctx, scope)
	if err != nil {
		return nil, err
	}

	qp, err := cb.catalog.QuestionPage(ctx, scope, page, pageSize)
	if err != nil {
		return nil, err
	}

	out := &EnhancedPage{
		Page:       qp,
		Vectors:    make([]Vector, 0, len(qp.Questions)),
		Attributes: ix.Attributes,
	}
	for _, q := range qp.Questions {
		v, err := cb.BuildVector(ctx, q.ID, ix)
		if err != nil {
			return nil, err
		}
		out.Vectors = append(out.Vectors, v)
	}
	return out, nil
}
