package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
)

const (
	cacheKey        = "exercise-catalog"
	cacheTTLSeconds = int(time.Hour / time.Second)
	cacheSizeBytes  = 512 * 1024
)

type lister interface {
	List(ctx context.Context) ([]Exercise, error)
}

// Service serves the exercise catalog, keeping it in an in-memory
// cache since the catalog changes rarely (via migrations only).
type Service struct {
	repo  lister
	cache *freecache.Cache
}

func NewService(repo lister) *Service {
	return &Service{
		repo:  repo,
		cache: freecache.NewCache(cacheSizeBytes),
	}
}

func (s *Service) List(ctx context.Context) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalog.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if cached, cacheErr := s.cache.Get([]byte(cacheKey)); cacheErr == nil {
		var exercises []Exercise
		unmarshalErr := json.Unmarshal(cached, &exercises)
		if unmarshalErr == nil {
			span.AddEvent("cache hit")
			return exercises, nil
		}
		log.Errorf("catalog cache, unmarshal cached catalog: %s", unmarshalErr)
	}

	exercises, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}

	if encoded, err := json.Marshal(exercises); err == nil {
		if err := s.cache.Set([]byte(cacheKey), encoded, cacheTTLSeconds); err != nil {
			log.Errorf("catalog cache, store catalog: %s", err)
		}
	}

	return exercises, nil
}

// InvalidateCache drops the cached catalog, forcing a re-read on the
// next List call.
func (s *Service) InvalidateCache() {
	s.cache.Del([]byte(cacheKey))
}
