package scraper

import (
	"net/url"
	"strings"
)

// Selectors holds the ordered lookup rules for one store
type Selectors struct {
	Price      []string
	Title      []string
	Image      []string
	OutOfStock []string
}

// StoreProfile describes how to read a product page for one store
type StoreProfile struct {
	ID        string
	Selectors Selectors
}

const (
	StoreGeneric    = "generic"
	StoreAmazon     = "amazon"
	StoreFlipkart   = "flipkart"
	StoreWalmart    = "walmart"
	StoreEbay       = "ebay"
	StoreAliExpress = "aliexpress"
	StoreEtsy       = "etsy"
	StoreTarget     = "target"
	StoreBestBuy    = "bestbuy"
	StoreNewegg     = "newegg"
	StoreShopee     = "shopee"
	StoreLazada     = "lazada"
	StoreZalando    = "zalando"
	StoreAsos       = "asos"
	StoreMyntra     = "myntra"

	defaultCurrency = "USD"
)

type domainCurrency struct {
	domain   string
	currency string
}

// currencyByDomain is checked in order; longer regional domains come before
// the shorter ones they contain.
var currencyByDomain = []domainCurrency{
	{"amazon.com.au", "AUD"},
	{"amazon.co.uk", "GBP"},
	{"amazon.co.jp", "JPY"},
	{"amazon.de", "EUR"},
	{"amazon.fr", "EUR"},
	{"amazon.in", "INR"},
	{"amazon.ca", "CAD"},
	{"amazon.com", "USD"},
	{"walmart.com", "USD"},
	{"target.com", "USD"},
	{"bestbuy.com", "USD"},
	{"flipkart.com", "INR"},
	{"myntra.com", "INR"},
	{"ebay.co.uk", "GBP"},
	{"ebay.de", "EUR"},
	{"ebay.com", "USD"},
	{"aliexpress.com", "USD"},
	{"etsy.com", "USD"},
	{"newegg.com", "USD"},
	{"zalando.co.uk", "GBP"},
	{"zalando.de", "EUR"},
	{"asos.com", "GBP"},
	{"shopee.sg", "SGD"},
	{"shopee.com.my", "MYR"},
	{"lazada.sg", "SGD"},
	{"lazada.com.my", "MYR"},
}

// storeKeywords maps distinctive hostname substrings to store identifiers
var storeKeywords = []string{
	StoreAmazon, StoreFlipkart, StoreWalmart, StoreEbay, StoreAliExpress,
	StoreEtsy, StoreTarget, StoreBestBuy, StoreNewegg, StoreShopee,
	StoreLazada, StoreZalando, StoreAsos, StoreMyntra,
}

// scriptRequiredStores render their price client-side; a zero price after the
// cheap tiers earns them a headless browser attempt.
var scriptRequiredStores = map[string]bool{
	StoreWalmart:    true,
	StoreTarget:     true,
	StoreBestBuy:    true,
	StoreAliExpress: true,
	StoreShopee:     true,
	StoreLazada:     true,
	StoreMyntra:     true,
}

var storeProfiles = map[string]StoreProfile{
	StoreAmazon: {ID: StoreAmazon, Selectors: Selectors{
		Price:      []string{".a-price .a-offscreen", "#corePrice_feature_div .a-price-whole", "#priceblock_ourprice", "#priceblock_dealprice", ".a-price-whole"},
		Title:      []string{"#productTitle", "#title"},
		Image:      []string{"#landingImage", "img.a-dynamic-image", "#imgBlkFront"},
		OutOfStock: []string{"#availability .a-color-price", "#outOfStock"},
	}},
	StoreFlipkart: {ID: StoreFlipkart, Selectors: Selectors{
		Price:      []string{"div._30jeq3._16Jk6d", "div._30jeq3", "._1vC4OE._2rQ-NK"},
		Title:      []string{"span.B_NuCI", "h1._9E25nV"},
		Image:      []string{"img._396cs4", "img._2r_T1I"},
		OutOfStock: []string{"div._16FRp0"},
	}},
	StoreEbay: {ID: StoreEbay, Selectors: Selectors{
		Price:      []string{`[data-testid="x-price-primary"]`, ".x-price-primary", "#prcIsum", ".vi-price"},
		Title:      []string{"h1.x-item-title__mainTitle", `h1[itemprop="name"]`},
		Image:      []string{"img#icImg", ".ux-image-magnify__image img"},
		OutOfStock: []string{".d-quantity__availability"},
	}},
	StoreAliExpress: {ID: StoreAliExpress, Selectors: Selectors{
		Price: []string{".product-price-value", `[class*="Price"]`, ".uniform-banner-box-price"},
		Title: []string{`h1[data-pl="product-title"]`, ".product-title-text"},
		Image: []string{".magnifier-image img", `img[class*="product"]`},
	}},
	StoreEtsy: {ID: StoreEtsy, Selectors: Selectors{
		Price: []string{`[data-buy-box-region="price"] p`, ".wt-text-title-03"},
		Title: []string{"h1[data-buy-box-listing-title]", "h1"},
		Image: []string{"img[data-listing-card-listing-image]", ".listing-page-image-carousel img"},
	}},
	StoreWalmart: {ID: StoreWalmart, Selectors: Selectors{
		Price: []string{`[itemprop="price"]`, `[data-automation="buybox-price"]`, ".price-characteristic", `span[itemprop="price"]`},
		Title: []string{`h1[itemprop="name"]`, `[data-testid="product-title"]`},
		Image: []string{`[data-testid="hero-image"] img`, ".prod-hero-image img"},
	}},
	StoreShopee: {ID: StoreShopee, Selectors: Selectors{
		Price: []string{".pqTWkA", "._3n5NQx"},
		Title: []string{"._44qnta", ".qaNIZt"},
		Image: []string{".jTTPTv img"},
	}},
	StoreGeneric: {ID: StoreGeneric, Selectors: Selectors{
		Price:      []string{`[itemprop="price"]`, ".price", "#price", ".product-price", ".sale-price", `[class*="price"]`},
		Title:      []string{`h1[itemprop="name"]`, "h1.product-title", "h1"},
		Image:      []string{`img[itemprop="image"]`, ".product-image img", "#product-image img"},
		OutOfStock: []string{".out-of-stock", ".sold-out"},
	}},
}

// hostname returns the lower-cased host of rawURL without a leading "www."
func hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// CurrencyForURL returns the default currency for the store behind rawURL,
// falling back to USD.
func CurrencyForURL(rawURL string) string {
	host := hostname(rawURL)
	if host == "" {
		return defaultCurrency
	}
	for _, dc := range currencyByDomain {
		if host == dc.domain || strings.HasSuffix(host, "."+dc.domain) {
			return dc.currency
		}
	}
	return defaultCurrency
}

// DetectStore returns the store identifier for rawURL, or "generic"
func DetectStore(rawURL string) string {
	host := hostname(rawURL)
	for _, store := range storeKeywords {
		if strings.Contains(host, store) {
			return store
		}
	}
	return StoreGeneric
}

// ProfileFor returns the selector profile for a store, or the generic profile
func ProfileFor(storeID string) StoreProfile {
	if profile, ok := storeProfiles[storeID]; ok {
		return profile
	}
	return storeProfiles[StoreGeneric]
}

// RequiresScript reports whether a store only renders prices with JavaScript
func RequiresScript(storeID string) bool {
	return scriptRequiredStores[storeID]
}
