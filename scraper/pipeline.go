package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pricewatch/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

const (
	tierPartner    = "partner_api"
	tierLightFetch = "light_fetch"
	tierStructured = "structured"
	tierSelectors  = "selectors"
	tierTextProxy  = "text_proxy"
	tierBrowser    = "browser"
)

// Tiers are the network collaborators of the extraction cascade. A nil tier
// is skipped.
type Tiers struct {
	Partner PartnerAPI
	Fetcher PageFetcher
	Proxy   TextRenderer
	Browser PageRenderer
}

// Extractor turns a product URL into an ExtractionResult by escalating
// through progressively more expensive strategies
type Extractor struct {
	tiers    Tiers
	detector *BotDetector
	logger   logrus.FieldLogger
}

// NewExtractor creates an extractor over the given tiers
func NewExtractor(tiers Tiers, logger logrus.FieldLogger) *Extractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{
		tiers:    tiers,
		detector: NewBotDetector(),
		logger:   logger,
	}
}

// extraction carries what one URL has yielded so far
type extraction struct {
	url      string
	store    string
	currency string
	log      logrus.FieldLogger

	// title and image from an earlier, unblocked tier
	salvage models.ExtractionResult
}

// Extract runs the cascade for url. It returns ErrExtractionFailed when no
// tier produced a positive price; per-tier errors are logged, never returned.
func (e *Extractor) Extract(ctx context.Context, url string) (*models.ExtractionResult, error) {
	url = strings.TrimSpace(url)
	x := &extraction{
		url:      url,
		store:    DetectStore(url),
		currency: CurrencyForURL(url),
	}
	x.log = e.logger.WithFields(logrus.Fields{"url": url, "store": x.store})
	x.log.WithField("currency", x.currency).Info("🛒 Starting extraction")

	if res, ok := e.tryPartner(ctx, x); ok {
		return res, nil
	}

	blocked := false
	skipToBrowser := false

	if e.tiers.Fetcher != nil {
		html, err := e.tiers.Fetcher.Fetch(ctx, url)
		switch {
		case err != nil && isBlockError(err):
			x.log.WithError(err).WithField("tier", tierLightFetch).Warn("🚫 Light fetch refused, escalating to browser")
			skipToBrowser = true
		case err != nil:
			x.log.WithError(err).WithField("tier", tierLightFetch).Warn("Light fetch failed")
			html = ""
		}

		if !skipToBrowser {
			res, isBlocked := e.extractDocument(x, html, "")
			if isBlocked {
				blocked = true
			} else if res.HasPrice() {
				return e.finish(x, res, tierLightFetch), nil
			} else if res != nil {
				x.keep(res)
			}
		}
	}

	if !skipToBrowser && ctx.Err() == nil && e.tiers.Proxy != nil {
		res, err := e.tryTextProxy(ctx, x)
		if err == nil {
			return e.finish(x, res, tierTextProxy), nil
		}
		blocked = blocked || errors.Is(err, ErrBlocked)
	}

	if (blocked || skipToBrowser || RequiresScript(x.store)) && ctx.Err() == nil && e.tiers.Browser != nil {
		res, err := e.tryBrowser(ctx, x)
		if err == nil {
			return e.finish(x, res, tierBrowser), nil
		}
	}

	x.log.Warn("❌ All extraction strategies failed")
	return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, url)
}

func (e *Extractor) tryPartner(ctx context.Context, x *extraction) (*models.ExtractionResult, bool) {
	if e.tiers.Partner == nil || !e.tiers.Partner.Supports(x.url) {
		return nil, false
	}
	res, ok := e.tiers.Partner.Lookup(ctx, x.url)
	if !ok || !res.HasPrice() {
		x.log.WithField("tier", tierPartner).Info("Partner API unavailable, falling back to scraping")
		return nil, false
	}
	return e.finish(x, res, tierPartner), true
}

// extractDocument applies structured data, then meta tags and selectors, to
// one fetched document. The extracted title, the document <title>, and the
// browser's rendered title are all checked for block pages; a blocked page
// yields (nil, true).
func (e *Extractor) extractDocument(x *extraction, html, renderedTitle string) (*models.ExtractionResult, bool) {
	if strings.TrimSpace(html) == "" {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		x.log.WithError(err).Warn("Failed to parse document")
		return nil, false
	}

	res := ExtractStructured(doc, x.currency)
	if res.HasPrice() {
		x.log.WithFields(logrus.Fields{"tier": tierStructured, "price": res.Price}).Debug("Structured data found")
	} else {
		sel := ExtractWithSelectors(doc, ProfileFor(x.store), x.currency)
		if res != nil {
			fillGaps(res, sel)
			res.Price = sel.Price
			res.Currency = sel.Currency
			if !sel.IsAvailable {
				res.IsAvailable = false
			}
		} else {
			res = sel
		}
		x.log.WithFields(logrus.Fields{"tier": tierSelectors, "price": res.Price}).Debug("Selector extraction done")
	}

	pageTitle := strings.TrimSpace(doc.Find("title").First().Text())
	if reason := e.blockReason(res.Title, pageTitle, renderedTitle); reason != "" {
		x.log.WithFields(logrus.Fields{"title": res.Title, "pattern": reason}).Warn("🤖 Block page detected, discarding fetch")
		return nil, true
	}
	return res, false
}

func (e *Extractor) blockReason(titles ...string) string {
	for _, title := range titles {
		if reason := e.detector.BlockReason(title); reason != "" {
			return reason
		}
	}
	return ""
}

// tryTextProxy returns a priced result, or ErrBlocked when the proxy was
// refused or rendered a block page, or ErrNoPrice
func (e *Extractor) tryTextProxy(ctx context.Context, x *extraction) (*models.ExtractionResult, error) {
	log := x.log.WithField("tier", tierTextProxy)

	text, err := e.tiers.Proxy.Render(ctx, x.url)
	if err != nil {
		log.WithError(err).Warn("Text proxy failed")
		if isBlockError(err) {
			return nil, fmt.Errorf("%w: %v", ErrBlocked, err)
		}
		return nil, err
	}

	res := ExtractFromText(text, x.currency)
	if reason := e.detector.BlockReason(res.Title); reason != "" {
		log.WithFields(logrus.Fields{"title": res.Title, "pattern": reason}).Warn("🤖 Text proxy rendered a block page")
		return nil, ErrBlocked
	}
	if !res.HasPrice() {
		x.keep(res)
		log.Info("Text proxy found no price")
		return nil, ErrNoPrice
	}
	return res, nil
}

// tryBrowser returns a priced result from the rendered page, or ErrBlocked,
// or ErrNoPrice
func (e *Extractor) tryBrowser(ctx context.Context, x *extraction) (*models.ExtractionResult, error) {
	log := x.log.WithField("tier", tierBrowser)
	log.Info("🌐 Falling back to headless browser")

	page, err := e.tiers.Browser.Render(ctx, x.url)
	if err != nil {
		log.WithError(err).Warn("Browser render failed")
		return nil, err
	}

	res, blocked := e.extractDocument(x, page.HTML, page.Title)
	if blocked {
		return nil, ErrBlocked
	}
	if res.HasPrice() {
		return res, nil
	}

	// Rendered DOM without a selector hit; scan its visible text instead
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, err
	}
	text := ExtractFromText(doc.Find("body").Text(), x.currency)
	if !text.HasPrice() {
		return nil, ErrNoPrice
	}
	if res != nil {
		fillGaps(res, text)
		res.Price = text.Price
		return res, nil
	}
	return text, nil
}

// keep remembers the title and image of a tier that found no price
func (x *extraction) keep(res *models.ExtractionResult) {
	if x.salvage.Title == "" {
		x.salvage.Title = res.Title
	}
	if x.salvage.ImageURL == "" {
		x.salvage.ImageURL = res.ImageURL
	}
}

func (e *Extractor) finish(x *extraction, res *models.ExtractionResult, tier string) *models.ExtractionResult {
	fillGaps(res, &x.salvage)
	if res.Currency == "" {
		res.Currency = x.currency
	}
	x.log.WithFields(logrus.Fields{"tier": tier, "price": res.Price, "currency": res.Currency}).Info("✅ Extraction successful")
	return res
}

// fillGaps copies title and image from src into dst where dst has none
func fillGaps(dst, src *models.ExtractionResult) {
	if src == nil {
		return
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.ImageURL == "" {
		dst.ImageURL = src.ImageURL
	}
}
