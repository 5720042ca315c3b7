package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"pricewatch/models"
)

// DefaultTextProxyURL is the public render-as-text service
const DefaultTextProxyURL = "https://r.jina.ai"

var (
	proxyKeywordPriceRe = regexp.MustCompile(`(?i)price\s*:?\s*[$€£₹¥]?\s*(` + numberPattern + `)`)
	markdownImageRe     = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)\)`)
)

// TextRenderer turns a product URL into a plain-text rendering of the page
type TextRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// TextProxy asks a third-party service to render the page as markdown
type TextProxy struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// NewTextProxy creates a render proxy client for baseURL
func NewTextProxy(baseURL string, timeout time.Duration) *TextProxy {
	if baseURL == "" {
		baseURL = DefaultTextProxyURL
	}
	return &TextProxy{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
	}
}

// Render returns the proxy's text document for target
func (p *TextProxy) Render(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reqURL := p.baseURL + "/" + url.PathEscape(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", randomUserAgent())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach text proxy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPStatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read text proxy response: %w", err)
	}
	return string(body), nil
}

// ExtractFromText reads a result out of a markdown rendering. The price comes
// from a "price:" label or a currency-anchored amount, the title from a
// "Title:" or "# " heading line, the image from the first inline image.
func ExtractFromText(text, defaultCurrency string) *models.ExtractionResult {
	result := &models.ExtractionResult{Currency: defaultCurrency, IsAvailable: true}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Title:") {
			result.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
			break
		}
		if result.Title == "" && strings.HasPrefix(line, "# ") {
			result.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}

	if m := markdownImageRe.FindStringSubmatch(text); m != nil {
		result.ImageURL = m[1]
	}

	result.Price = priceFromText(text)
	return result
}

// priceFromText tries labelled prices before currency-anchored ones, skipping
// matches on lines that fail price-text validation
func priceFromText(text string) float64 {
	for _, re := range []*regexp.Regexp{proxyKeywordPriceRe, strictPriceRe} {
		for _, line := range strings.Split(text, "\n") {
			m := re.FindStringSubmatch(line)
			if m == nil || !IsValidPriceText(m[0]) {
				continue
			}
			if price := ParseNumber(m[1]); price > 0 {
				return price
			}
		}
	}
	return 0
}
