package scraper

import (
	"encoding/json"
	"sort"
	"strings"

	"pricewatch/models"

	"github.com/PuerkitoBio/goquery"
)

// maxStateTrimAttempts bounds the trailing-garbage trim loop for page-state blobs
const maxStateTrimAttempts = 25

var (
	pageStateMarkers = []string{
		"__INITIAL_STATE__",
		"__PRELOADED_STATE__",
		"__NEXT_DATA__",
	}

	statePriceFields    = []string{"finalPrice", "sellingPrice", "salePrice", "currentPrice", "price"}
	stateNameFields     = []string{"name", "title", "productName"}
	stateImageFields    = []string{"image", "imageUrl", "imageURL", "images"}
	stateCurrencyFields = []string{"priceCurrency", "currency", "currencyCode", "currency_code"}
	priceValueFields    = []string{"value", "amount", "decimalValue"}

	unavailableMarkers = []string{"outofstock", "soldout", "discontinued"}
)

// candidate is a product record harvested from embedded metadata, not yet
// normalized
type candidate interface {
	reduce(defaultCurrency string) *models.ExtractionResult
}

type offer struct {
	price        float64
	currency     string
	availability string
}

// jsonLDProduct is a schema.org Product found in an ld+json script
type jsonLDProduct struct {
	name   string
	image  string
	offers []offer
}

func (p *jsonLDProduct) reduce(defaultCurrency string) *models.ExtractionResult {
	result := &models.ExtractionResult{
		Title:       p.name,
		ImageURL:    p.image,
		Currency:    defaultCurrency,
		IsAvailable: true,
	}

	best, ok := highestOffer(p.offers)
	if !ok {
		return result
	}
	result.Price = best.price
	if best.currency != "" {
		result.Currency = strings.ToUpper(best.currency)
	}
	result.IsAvailable = isAvailable(best.availability)
	return result
}

// pageStateProduct is a product-shaped node found in a framework state blob
type pageStateProduct struct {
	name         string
	image        string
	price        float64
	currency     string
	availability string
	inStock      *bool
}

func (p *pageStateProduct) reduce(defaultCurrency string) *models.ExtractionResult {
	result := &models.ExtractionResult{
		Title:       p.name,
		ImageURL:    p.image,
		Price:       p.price,
		Currency:    defaultCurrency,
		IsAvailable: isAvailable(p.availability),
	}
	if p.currency != "" {
		result.Currency = strings.ToUpper(p.currency)
	}
	if p.inStock != nil {
		result.IsAvailable = *p.inStock
	}
	return result
}

// ExtractStructured reads a product from embedded structured data. JSON-LD is
// tried first, then page-state blobs. It returns nil when neither is present.
func ExtractStructured(doc *goquery.Document, defaultCurrency string) *models.ExtractionResult {
	if doc == nil {
		return nil
	}

	var found candidate
	if c := findJSONLDProduct(doc); c != nil {
		found = c
		if res := c.reduce(defaultCurrency); res.HasPrice() {
			return res
		}
	}
	if c := findPageStateProduct(doc); c != nil {
		if res := c.reduce(defaultCurrency); res.HasPrice() || found == nil {
			return res
		}
	}
	if found != nil {
		return found.reduce(defaultCurrency)
	}
	return nil
}

func findJSONLDProduct(doc *goquery.Document) *jsonLDProduct {
	var product *jsonLDProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return true
		}
		if obj := findProductNode(data); obj != nil {
			product = newJSONLDProduct(obj)
			return false
		}
		return true
	})
	return product
}

// findProductNode accepts a Product directly, inside an array, or inside @graph
func findProductNode(data interface{}) map[string]interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		if isProductType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"].([]interface{}); ok {
			return findProductNode(graph)
		}
	case []interface{}:
		for _, item := range v {
			if obj := findProductNode(item); obj != nil {
				return obj
			}
		}
	}
	return nil
}

func isProductType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func newJSONLDProduct(obj map[string]interface{}) *jsonLDProduct {
	name, _ := obj["name"].(string)
	return &jsonLDProduct{
		name:   strings.TrimSpace(name),
		image:  imageFromJSON(obj["image"]),
		offers: collectOffers(obj["offers"]),
	}
}

// collectOffers flattens a single offer, an offer list, or an AggregateOffer
func collectOffers(data interface{}) []offer {
	var offers []offer
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			offers = append(offers, collectOffers(item)...)
		}
	case map[string]interface{}:
		if nested, ok := v["offers"]; ok {
			offers = append(offers, collectOffers(nested)...)
		}
		currency, _ := v["priceCurrency"].(string)
		availability, _ := v["availability"].(string)
		for _, field := range []string{"price", "highPrice", "lowPrice"} {
			if price, ok := extractFloat(v[field]); ok && price > 0 {
				offers = append(offers, offer{price: price, currency: currency, availability: availability})
				break
			}
		}
	}
	return offers
}

// highestOffer picks the offer with the largest positive price. Installment
// offers are listed next to the full price and are always smaller.
func highestOffer(offers []offer) (offer, bool) {
	var best offer
	found := false
	for _, o := range offers {
		if o.price > 0 && (!found || o.price > best.price) {
			best = o
			found = true
		}
	}
	return best, found
}

func isAvailable(availability string) bool {
	a := strings.ToLower(availability)
	for _, marker := range unavailableMarkers {
		if strings.Contains(a, marker) {
			return false
		}
	}
	return true
}

func findPageStateProduct(doc *goquery.Document) *pageStateProduct {
	var product *pageStateProduct
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		text := s.Text()

		var raw string
		if id == "__NEXT_DATA__" {
			raw = text
		} else {
			for _, marker := range pageStateMarkers {
				if idx := strings.Index(text, marker); idx >= 0 {
					raw = text[idx+len(marker):]
					break
				}
			}
		}
		if raw == "" {
			return true
		}

		data, ok := parseStateBlob(raw)
		if !ok {
			return true
		}
		if p := walkPageState(data); p != nil {
			product = p
			return false
		}
		return true
	})
	return product
}

// parseStateBlob decodes the JSON object starting at the first '{' of raw.
// Trailing script after the object is dropped by cutting back to the previous
// closing brace, at most maxStateTrimAttempts times.
func parseStateBlob(raw string) (interface{}, bool) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return nil, false
	}
	text := raw[start:]

	for attempt := 0; attempt < maxStateTrimAttempts; attempt++ {
		var data interface{}
		if err := json.Unmarshal([]byte(text), &data); err == nil {
			return data, true
		}

		cut := strings.LastIndex(text, "}")
		if cut == len(text)-1 {
			cut = strings.LastIndex(text[:cut], "}")
		}
		if cut <= 0 {
			return nil, false
		}
		text = text[:cut+1]
	}
	return nil, false
}

// walkPageState returns the first node carrying a positive price. Keys are
// visited in sorted order so repeated runs pick the same node.
func walkPageState(data interface{}) *pageStateProduct {
	switch v := data.(type) {
	case map[string]interface{}:
		for _, field := range statePriceFields {
			price, ok := priceFromState(v[field])
			if !ok || price <= 0 {
				continue
			}
			p := &pageStateProduct{
				price:    price,
				name:     firstString(v, stateNameFields),
				currency: firstString(v, stateCurrencyFields),
			}
			if nested, ok := v[field].(map[string]interface{}); ok && p.currency == "" {
				p.currency = firstString(nested, stateCurrencyFields)
			}
			for _, imgField := range stateImageFields {
				if img := imageFromJSON(v[imgField]); img != "" {
					p.image = img
					break
				}
			}
			if avail, ok := v["availability"].(string); ok {
				p.availability = avail
			}
			if inStock, ok := v["inStock"].(bool); ok {
				p.inStock = &inStock
			}
			return p
		}

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if p := walkPageState(v[k]); p != nil {
				return p
			}
		}

	case []interface{}:
		for _, item := range v {
			if p := walkPageState(item); p != nil {
				return p
			}
		}
	}
	return nil
}

// priceFromState reads a scalar price or a {value|amount|decimalValue} object
func priceFromState(value interface{}) (float64, bool) {
	if obj, ok := value.(map[string]interface{}); ok {
		for _, field := range priceValueFields {
			if price, ok := extractFloat(obj[field]); ok {
				return price, true
			}
		}
		return 0, false
	}
	return extractFloat(value)
}

// extractFloat safely extracts a float value from various JSON types
func extractFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		clean := nonNumericRe.ReplaceAllString(v, "")
		if clean == "" {
			return 0, false
		}
		f := ParseNumber(clean)
		return f, f > 0
	}
	return 0, false
}

// imageFromJSON accepts a URL string, a list, or an ImageObject with url
func imageFromJSON(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		for _, item := range v {
			if img := imageFromJSON(item); img != "" {
				return img
			}
		}
	case map[string]interface{}:
		for _, field := range []string{"url", "contentUrl", "src"} {
			if s, ok := v[field].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstString(obj map[string]interface{}, fields []string) string {
	for _, field := range fields {
		if s, ok := obj[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
