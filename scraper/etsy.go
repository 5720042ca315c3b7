package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pricewatch/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultEtsyBaseURL is the Etsy Open API host
const DefaultEtsyBaseURL = "https://openapi.etsy.com"

var listingIDRe = regexp.MustCompile(`/listing/(\d+)`)

// PartnerAPI looks a product up through a store's first-party API
type PartnerAPI interface {
	Supports(url string) bool
	Lookup(ctx context.Context, url string) (*models.ExtractionResult, bool)
}

type etsyMoney struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

type etsyListing struct {
	ListingID int64     `json:"listing_id"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Quantity  int       `json:"quantity"`
	Price     etsyMoney `json:"price"`
}

type etsyImage struct {
	URLFull string `json:"url_fullxfull"`
	URL570  string `json:"url_570xN"`
}

type etsyImagesResponse struct {
	Count   int         `json:"count"`
	Results []etsyImage `json:"results"`
}

// EtsyClient reads listings from the Etsy Open API v3
type EtsyClient struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      logrus.FieldLogger
}

// NewEtsyClient creates a new Etsy API client
func NewEtsyClient(apiKey, baseURL string, timeout time.Duration, logger logrus.FieldLogger) *EtsyClient {
	if baseURL == "" {
		baseURL = DefaultEtsyBaseURL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Etsy allows 10 requests per second per key
	limiter := rate.NewLimiter(rate.Limit(10), 10)

	return &EtsyClient{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: limiter,
		logger:      logger.WithField("component", "etsy"),
	}
}

// Supports reports whether url is an Etsy listing the client can resolve
func (c *EtsyClient) Supports(url string) bool {
	return c.apiKey != "" && DetectStore(url) == StoreEtsy
}

// ListingID returns the numeric listing id from an Etsy product URL
func ListingID(url string) (string, error) {
	m := listingIDRe.FindStringSubmatch(url)
	if m == nil {
		return "", ErrNoListingID
	}
	return m[1], nil
}

// Lookup resolves a listing and its primary image. Every failure reports
// (nil, false) so the caller falls through to scraping.
func (c *EtsyClient) Lookup(ctx context.Context, url string) (*models.ExtractionResult, bool) {
	log := c.logger.WithField("url", url)

	id, err := ListingID(url)
	if err != nil {
		log.WithError(err).Debug("Etsy lookup skipped")
		return nil, false
	}

	var listing etsyListing
	if err := c.getJSON(ctx, fmt.Sprintf("%s/v3/application/listings/%s", c.baseURL, id), &listing); err != nil {
		log.WithError(err).Warn("Etsy listing lookup failed")
		return nil, false
	}
	if listing.Price.Divisor <= 0 || listing.Price.Amount <= 0 {
		log.WithField("listing_id", id).Warn("Etsy listing has no usable price")
		return nil, false
	}

	result := &models.ExtractionResult{
		Title:       strings.TrimSpace(listing.Title),
		Price:       float64(listing.Price.Amount) / float64(listing.Price.Divisor),
		Currency:    listing.Price.CurrencyCode,
		IsAvailable: listing.State == "active" && listing.Quantity > 0,
	}
	if result.Currency == "" {
		result.Currency = CurrencyForURL(url)
	}

	var images etsyImagesResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/v3/application/listings/%s/images", c.baseURL, id), &images); err != nil {
		log.WithError(err).Warn("Etsy image lookup failed")
		return nil, false
	}
	for _, img := range images.Results {
		if img.URLFull != "" {
			result.ImageURL = img.URLFull
			break
		}
		if img.URL570 != "" {
			result.ImageURL = img.URL570
			break
		}
	}

	log.WithFields(logrus.Fields{"listing_id": id, "price": result.Price}).Info("✅ Etsy API lookup successful")
	return result, true
}

func (c *EtsyClient) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call etsy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
