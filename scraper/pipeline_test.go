package scraper

import (
	"context"
	"errors"
	"testing"

	"pricewatch/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.html, f.err
}

type fakeProxy struct {
	text  string
	err   error
	calls int
}

func (f *fakeProxy) Render(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeBrowser struct {
	page  *RenderedPage
	err   error
	calls int
}

func (f *fakeBrowser) Render(ctx context.Context, url string) (*RenderedPage, error) {
	f.calls++
	return f.page, f.err
}

type fakePartner struct {
	result *models.ExtractionResult
	ok     bool
	calls  int
}

func (f *fakePartner) Supports(url string) bool { return DetectStore(url) == StoreEtsy }

func (f *fakePartner) Lookup(ctx context.Context, url string) (*models.ExtractionResult, bool) {
	f.calls++
	return f.result, f.ok
}

const (
	amazonURL  = "https://www.amazon.com/dp/B0TEST"
	genericURL = "https://shop.example.org/products/desk-lamp"
	walmartURL = "https://www.walmart.com/ip/123456"

	amazonJSONLD = `<html><head><title>Amazon.com: Echo Dot</title>
<script type="application/ld+json">{"@type":"Product","name":"Echo Dot","offers":{"price":"248.00","priceCurrency":"USD"}}</script>
</head></html>`

	blockedPage = `<html><head><title>Access Denied</title>
<script type="application/ld+json">{"@type":"Product","name":"Access Denied","offers":{"price":"19.99"}}</script>
</head><body><span class="price">$19.99</span></body></html>`
)

func newTestExtractor(tiers Tiers) *Extractor {
	logger, _ := test.NewNullLogger()
	return NewExtractor(tiers, logger)
}

func TestExtractStructuredScenario(t *testing.T) {
	proxy := &fakeProxy{}
	browser := &fakeBrowser{}
	e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{html: amazonJSONLD}, Proxy: proxy, Browser: browser})

	res, err := e.Extract(context.Background(), amazonURL)
	require.NoError(t, err)
	assert.Equal(t, &models.ExtractionResult{Title: "Echo Dot", Price: 248.00, Currency: "USD", IsAvailable: true}, res)
	assert.Zero(t, proxy.calls)
	assert.Zero(t, browser.calls)
}

func TestExtractIsRepeatable(t *testing.T) {
	e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{html: amazonJSONLD}})

	first, err := e.Extract(context.Background(), amazonURL)
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), amazonURL)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractGenericSelectorScenario(t *testing.T) {
	html := `<html><head><title>Desk Lamp</title></head><body><div class="price">Now $248.00 $101.99 saved</div></body></html>`
	e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{html: html}})

	res, err := e.Extract(context.Background(), genericURL)
	require.NoError(t, err)
	assert.Equal(t, 248.00, res.Price)
	assert.Equal(t, "Desk Lamp", res.Title)
}

func TestExtractForbiddenGoesStraightToBrowser(t *testing.T) {
	for _, status := range []int{403, 429} {
		proxy := &fakeProxy{text: "Price: $10.00"}
		browser := &fakeBrowser{page: &RenderedPage{HTML: amazonJSONLD, Title: "Amazon.com: Echo Dot"}}
		e := newTestExtractor(Tiers{
			Fetcher: &fakeFetcher{err: &HTTPStatusError{URL: amazonURL, StatusCode: status}},
			Proxy:   proxy,
			Browser: browser,
		})

		res, err := e.Extract(context.Background(), amazonURL)
		require.NoError(t, err)
		assert.Equal(t, 248.00, res.Price)
		assert.Zero(t, proxy.calls, "status %d", status)
		assert.Equal(t, 1, browser.calls)
	}
}

func TestExtractForbiddenWithoutBrowserFails(t *testing.T) {
	proxy := &fakeProxy{text: "Price: $10.00"}
	e := newTestExtractor(Tiers{
		Fetcher: &fakeFetcher{err: &HTTPStatusError{URL: amazonURL, StatusCode: 403}},
		Proxy:   proxy,
	})

	_, err := e.Extract(context.Background(), amazonURL)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Zero(t, proxy.calls)
}

func TestExtractBlockedPageDiscardsData(t *testing.T) {
	proxy := &fakeProxy{text: "Title: Desk Lamp\nPrice: $54.00\n"}
	browser := &fakeBrowser{err: errors.New("chromium missing")}
	e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{html: blockedPage}, Proxy: proxy, Browser: browser})

	res, err := e.Extract(context.Background(), genericURL)
	require.NoError(t, err)
	assert.Equal(t, 54.00, res.Price)
	assert.Equal(t, "Desk Lamp", res.Title)
	assert.Equal(t, 1, proxy.calls)
	assert.Zero(t, browser.calls)
}

func TestExtractBlockedDocumentTitle(t *testing.T) {
	tests := []struct {
		name string
		url  string
		html string
	}{
		{
			"store heading overrides title",
			genericURL,
			`<html><head><title>Access Denied</title></head><body><h1>Reference #18.2f</h1><span class="price">$19.99</span></body></html>`,
		},
		{
			"structured data behind a robot check",
			amazonURL,
			`<html><head><title>Robot Check</title>
<script type="application/ld+json">{"@type":"Product","name":"Echo Dot","offers":{"price":"19.99","priceCurrency":"USD"}}</script>
</head></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy := &fakeProxy{text: "Title: Echo Dot\nPrice: $54.00\n"}
			e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{html: tt.html}, Proxy: proxy})

			res, err := e.Extract(context.Background(), tt.url)
			require.NoError(t, err)
			assert.Equal(t, 54.00, res.Price)
			assert.Equal(t, "Echo Dot", res.Title)
			assert.Equal(t, 1, proxy.calls)
		})
	}
}

func TestExtractBlockedEverywhereFails(t *testing.T) {
	proxy := &fakeProxy{text: "Title: Robot Check\nPrice: $1.00\n"}
	browser := &fakeBrowser{page: &RenderedPage{HTML: blockedPage, Title: "Access Denied"}}
	e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{html: blockedPage}, Proxy: proxy, Browser: browser})

	res, err := e.Extract(context.Background(), genericURL)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, 1, browser.calls)
}

func TestExtractSalvagesTitleAndImage(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Hiking Boots">
<meta property="og:image" content="https://cdn.example.org/boots.jpg"></head><body></body></html>`
	proxy := &fakeProxy{text: "Markdown Content:\n$129.95\n"}
	e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{html: html}, Proxy: proxy})

	res, err := e.Extract(context.Background(), genericURL)
	require.NoError(t, err)
	assert.Equal(t, 129.95, res.Price)
	assert.Equal(t, "Hiking Boots", res.Title)
	assert.Equal(t, "https://cdn.example.org/boots.jpg", res.ImageURL)
}

func TestExtractFetchErrorContinuesToProxy(t *testing.T) {
	proxy := &fakeProxy{text: "Title: Desk Lamp\nPrice: €39,90\n"}
	e := newTestExtractor(Tiers{
		Fetcher: &fakeFetcher{err: &HTTPStatusError{URL: genericURL, StatusCode: 502}},
		Proxy:   proxy,
	})

	res, err := e.Extract(context.Background(), genericURL)
	require.NoError(t, err)
	assert.Equal(t, 39.90, res.Price)
	assert.Equal(t, 1, proxy.calls)
}

func TestExtractScriptStoreUsesBrowser(t *testing.T) {
	rendered := `<html><body><h1 itemprop="name">Instant Pot Duo</h1><span itemprop="price">$89.00</span></body></html>`
	browser := &fakeBrowser{page: &RenderedPage{HTML: rendered, Title: "Instant Pot Duo - Walmart.com"}}
	e := newTestExtractor(Tiers{
		Fetcher: &fakeFetcher{html: `<html><body><div id="root"></div></body></html>`},
		Proxy:   &fakeProxy{text: "nothing useful"},
		Browser: browser,
	})

	res, err := e.Extract(context.Background(), walmartURL)
	require.NoError(t, err)
	assert.Equal(t, 89.00, res.Price)
	assert.Equal(t, "Instant Pot Duo", res.Title)
	assert.Equal(t, 1, browser.calls)
}

func TestExtractBrowserTextFallback(t *testing.T) {
	rendered := `<html><body><h1>Instant Pot Duo</h1><div class="x9">Now $89.00</div></body></html>`
	e := newTestExtractor(Tiers{Browser: &fakeBrowser{page: &RenderedPage{HTML: rendered}}})

	res, err := e.Extract(context.Background(), walmartURL)
	require.NoError(t, err)
	assert.Equal(t, 89.00, res.Price)
}

func TestExtractNonScriptStoreSkipsBrowser(t *testing.T) {
	browser := &fakeBrowser{page: &RenderedPage{HTML: amazonJSONLD}}
	e := newTestExtractor(Tiers{
		Fetcher: &fakeFetcher{html: `<html><body>nothing</body></html>`},
		Proxy:   &fakeProxy{text: "nothing"},
		Browser: browser,
	})

	res, err := e.Extract(context.Background(), genericURL)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Zero(t, browser.calls)
}

func TestExtractPartnerFirst(t *testing.T) {
	etsyURL := "https://www.etsy.com/listing/1589680975/poncho"
	fetcher := &fakeFetcher{html: amazonJSONLD}
	partner := &fakePartner{ok: true, result: &models.ExtractionResult{Title: "Poncho", Price: 89.5, Currency: "EUR", IsAvailable: true}}
	e := newTestExtractor(Tiers{Partner: partner, Fetcher: fetcher})

	res, err := e.Extract(context.Background(), etsyURL)
	require.NoError(t, err)
	assert.Equal(t, 89.5, res.Price)
	assert.Equal(t, "EUR", res.Currency)
	assert.Zero(t, fetcher.calls)
}

func TestExtractPartnerFailureFallsThrough(t *testing.T) {
	etsyURL := "https://www.etsy.com/listing/1589680975/poncho"
	fetcher := &fakeFetcher{html: amazonJSONLD}
	partner := &fakePartner{ok: false}
	e := newTestExtractor(Tiers{Partner: partner, Fetcher: fetcher})

	res, err := e.Extract(context.Background(), etsyURL)
	require.NoError(t, err)
	assert.Equal(t, 248.00, res.Price)
	assert.Equal(t, 1, partner.calls)
	assert.Equal(t, 1, fetcher.calls)
}

func TestExtractPartnerNotConsultedForOtherStores(t *testing.T) {
	partner := &fakePartner{ok: true, result: &models.ExtractionResult{Price: 1}}
	e := newTestExtractor(Tiers{Partner: partner, Fetcher: &fakeFetcher{html: amazonJSONLD}})

	_, err := e.Extract(context.Background(), amazonURL)
	require.NoError(t, err)
	assert.Zero(t, partner.calls)
}

func TestExtractNoTiers(t *testing.T) {
	_, err := newTestExtractor(Tiers{}).Extract(context.Background(), genericURL)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractCancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proxy := &fakeProxy{text: "Price: $5.00"}
	e := newTestExtractor(Tiers{Fetcher: &fakeFetcher{err: context.Canceled}, Proxy: proxy})

	_, err := e.Extract(ctx, genericURL)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Zero(t, proxy.calls)
}

func TestTryTextProxyErrors(t *testing.T) {
	tests := []struct {
		name        string
		proxy       *fakeProxy
		wantBlocked bool
		wantNoPrice bool
	}{
		{"refused", &fakeProxy{err: &HTTPStatusError{URL: genericURL, StatusCode: 429}}, true, false},
		{"block page", &fakeProxy{text: "Title: Robot Check\nPrice: $1.00\n"}, true, false},
		{"no price", &fakeProxy{text: "Title: Desk Lamp\n"}, false, true},
		{"upstream error", &fakeProxy{err: &HTTPStatusError{URL: genericURL, StatusCode: 502}}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			e := NewExtractor(Tiers{Proxy: tt.proxy}, logger)
			x := &extraction{url: genericURL, store: StoreGeneric, currency: "USD", log: logger}

			res, err := e.tryTextProxy(context.Background(), x)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.wantBlocked, errors.Is(err, ErrBlocked))
			assert.Equal(t, tt.wantNoPrice, errors.Is(err, ErrNoPrice))
		})
	}
}

func TestTryBrowserErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	x := &extraction{url: genericURL, store: StoreGeneric, currency: "USD", log: logger}

	blocked := NewExtractor(Tiers{Browser: &fakeBrowser{page: &RenderedPage{HTML: blockedPage, Title: "Access Denied"}}}, logger)
	_, err := blocked.tryBrowser(context.Background(), x)
	assert.ErrorIs(t, err, ErrBlocked)

	empty := NewExtractor(Tiers{Browser: &fakeBrowser{page: &RenderedPage{HTML: "<html><body>Desk Lamp</body></html>", Title: "Desk Lamp"}}}, logger)
	_, err = empty.tryBrowser(context.Background(), x)
	assert.ErrorIs(t, err, ErrNoPrice)
}
