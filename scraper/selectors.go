package scraper

import (
	"regexp"
	"strings"

	"pricewatch/models"

	"github.com/PuerkitoBio/goquery"
)

var (
	outOfStockRe = regexp.MustCompile(`(?i)out of stock|sold out|unavailable`)

	metaPriceFields    = []string{"product:price:amount", "og:price:amount"}
	metaCurrencyFields = []string{"product:price:currency", "og:price:currency"}
)

// metaContent returns the content of a meta tag keyed by property or name
func metaContent(doc *goquery.Document, key string) string {
	for _, attr := range []string{"property", "name", "itemprop"} {
		if content, ok := doc.Find(`meta[` + attr + `="` + key + `"]`).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}

// ExtractMeta reads the store-agnostic meta tags: title, preview image,
// and explicit price fields
func ExtractMeta(doc *goquery.Document, defaultCurrency string) *models.ExtractionResult {
	result := &models.ExtractionResult{Currency: defaultCurrency, IsAvailable: true}
	if doc == nil {
		return result
	}

	result.Title = metaContent(doc, "og:title")
	if result.Title == "" {
		result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	for _, key := range []string{"og:image", "twitter:image"} {
		if img := metaContent(doc, key); strings.HasPrefix(img, "http") {
			result.ImageURL = img
			break
		}
	}

	for _, key := range metaPriceFields {
		if price := parseCandidate(metaContent(doc, key)); price > 0 {
			result.Price = price
			break
		}
	}
	if result.Price == 0 {
		if content, ok := doc.Find(`[itemprop="price"][content]`).First().Attr("content"); ok {
			result.Price = parseCandidate(content)
		}
	}

	for _, key := range append(metaCurrencyFields, "priceCurrency") {
		if currency := metaContent(doc, key); currency != "" {
			result.Currency = strings.ToUpper(currency)
			break
		}
	}

	return result
}

// ExtractWithSelectors runs the meta tags and then the store profile's
// ordered selector lists over a document
func ExtractWithSelectors(doc *goquery.Document, profile StoreProfile, defaultCurrency string) *models.ExtractionResult {
	result := ExtractMeta(doc, defaultCurrency)
	if doc == nil {
		return result
	}

	if title := firstText(doc, profile.Selectors.Title); title != "" {
		result.Title = title
	}

	if result.Price == 0 {
		result.Price = firstPrice(doc, profile.Selectors.Price)
	}

	if result.ImageURL == "" {
		result.ImageURL = firstImage(doc, profile.Selectors.Image)
	}

	for _, sel := range profile.Selectors.OutOfStock {
		if outOfStockRe.MatchString(doc.Find(sel).Text()) {
			result.IsAvailable = false
			break
		}
	}

	return result
}

// parseCandidate validates a raw price token and parses it, or returns 0
func parseCandidate(text string) float64 {
	text = cleanPriceToken(text)
	if text == "" || !IsValidPriceText(text) {
		return 0
	}
	return ParsePrice(text)
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return cleanPriceToken(text)
		}
	}
	return ""
}

// firstPrice returns the first price that passes validation. Element text is
// preferred over a content attribute.
func firstPrice(doc *goquery.Document, selectors []string) float64 {
	var price float64
	for _, sel := range selectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if price = parseCandidate(s.Text()); price > 0 {
				return false
			}
			if content, ok := s.Attr("content"); ok {
				price = parseCandidate(content)
			}
			return price == 0
		})
		if price > 0 {
			return price
		}
	}
	return 0
}

func firstImage(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var image string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"src", "data-src", "data-old-hires"} {
				if src, ok := s.Attr(attr); ok && strings.HasPrefix(src, "http") {
					image = src
					return false
				}
			}
			return true
		})
		if image != "" {
			return image
		}
	}
	return ""
}
