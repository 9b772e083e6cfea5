package exercises

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	oneMinute          = 60
	catalogCacheExpire = oneMinute * 5
)

type catalogRepo interface {
	ListAll(ctx context.Context, params ListParams) ([]Exercise, error)
}

// Catalog serves exercise list reads through an in-process cache.
// The catalog is small and changes rarely, so the whole cache is
// dropped on any mutation instead of tracking individual keys.
type Catalog struct {
	repo  catalogRepo
	cache *freecache.Cache
}

func NewCatalog(repo catalogRepo) *Catalog {
	megabyte := 1024 * 1024
	cacheSize := 10 * megabyte

	return &Catalog{
		repo:  repo,
		cache: freecache.NewCache(cacheSize),
	}
}

func (c *Catalog) ListAll(ctx context.Context, params ListParams) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercisesCatalog.listAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := fmt.Sprintf("list::%s::%s", params.Category, params.Subcategory)
	if cachedBytes, err := c.cache.Get([]byte(cacheKey)); err == nil {
		var exercises []Exercise
		if err = json.Unmarshal(cachedBytes, &exercises); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			log.Tracef("found exercise list [%s] in cache", cacheKey)
			return exercises, nil
		}
		log.Errorf("failed to unmarshal cached exercise list [%s]: %s", cacheKey, err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	exercises, err := c.repo.ListAll(ctx, params)
	if err != nil {
		return nil, err
	}

	exercisesJson, err := json.Marshal(exercises)
	if err != nil {
		log.Errorf("failed to marshal exercise list [%s] for cache: %s", cacheKey, err)
		return exercises, nil
	}
	if err := c.cache.Set([]byte(cacheKey), exercisesJson, catalogCacheExpire); err != nil {
		log.Errorf("failed to write exercise list cache [%s]: %s", cacheKey, err)
	}

	return exercises, nil
}

// Invalidate drops all cached lists. Called after every catalog mutation.
func (c *Catalog) Invalidate() {
	c.cache.Clear()
	log.Debugf("exercise catalog cache cleared")
}
