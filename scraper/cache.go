package scraper

import (
	"context"
	"time"

	"pricewatch/models"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// URLExtractor is anything that extracts a product record from a URL
type URLExtractor interface {
	Extract(ctx context.Context, url string) (*models.ExtractionResult, error)
}

// CachedExtractor remembers successful extractions for a short time so
// repeated lookups of the same URL do not rerun the cascade. Failures are
// never cached.
type CachedExtractor struct {
	next   URLExtractor
	cache  *cache.Cache
	logger logrus.FieldLogger
}

// NewCachedExtractor wraps next with an in-memory cache of the given TTL
func NewCachedExtractor(next URLExtractor, ttl time.Duration, logger logrus.FieldLogger) *CachedExtractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedExtractor{
		next:   next,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Extract returns a cached result for url or runs the wrapped extractor
func (c *CachedExtractor) Extract(ctx context.Context, url string) (*models.ExtractionResult, error) {
	if v, found := c.cache.Get(url); found {
		if res, ok := v.(models.ExtractionResult); ok {
			c.logger.WithField("url", url).Debug("Extraction cache hit")
			return &res, nil
		}
	}

	res, err := c.next.Extract(ctx, url)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(url, *res)
	return res, nil
}
