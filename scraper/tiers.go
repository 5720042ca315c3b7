package scraper

import (
	"pricewatch/config"

	"github.com/sirupsen/logrus"
)

// NewTiers builds the cascade collaborators enabled by configuration
func NewTiers(cfg config.ScraperConfig, etsy config.EtsyConfig, logger logrus.FieldLogger) Tiers {
	tiers := Tiers{
		Fetcher: NewHTTPFetcher(cfg.LightTimeout),
	}

	if etsy.IsValid() {
		tiers.Partner = NewEtsyClient(etsy.APIKey, etsy.BaseURL, etsy.Timeout, logger)
	}
	if cfg.ProxyEnabled && cfg.ProxyBaseURL != "" {
		tiers.Proxy = NewTextProxy(cfg.ProxyBaseURL, cfg.ProxyTimeout)
	}
	if cfg.BrowserEnabled {
		tiers.Browser = NewBrowserRenderer(cfg.BrowserBin, cfg.BrowserTimeout, logger)
	}

	return tiers
}
