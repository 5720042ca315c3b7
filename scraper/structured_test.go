package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractStructuredJSONLD(t *testing.T) {
	doc := mustDocument(t, `<html><head>
<script type="application/ld+json">{not json</script>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Echo Dot (5th Gen)",
 "image":["https://m.media-amazon.com/images/I/echo.jpg"],
 "offers":{"@type":"Offer","price":"248.00","priceCurrency":"USD","availability":"https://schema.org/InStock"}}
</script></head><body></body></html>`)

	res := ExtractStructured(doc, "GBP")
	require.NotNil(t, res)
	assert.Equal(t, "Echo Dot (5th Gen)", res.Title)
	assert.Equal(t, 248.00, res.Price)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "https://m.media-amazon.com/images/I/echo.jpg", res.ImageURL)
	assert.True(t, res.IsAvailable)
}

func TestExtractStructuredHighestOffer(t *testing.T) {
	doc := mustDocument(t, `<script type="application/ld+json">
{"@type":"Product","name":"Laptop","offers":[
  {"@type":"Offer","price":49.99,"priceCurrency":"USD"},
  {"@type":"Offer","price":599,"priceCurrency":"USD"}]}
</script>`)

	res := ExtractStructured(doc, "USD")
	require.NotNil(t, res)
	assert.Equal(t, 599.0, res.Price)
}

func TestExtractStructuredGraphAndArray(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{
			name: "graph",
			html: `<script type="application/ld+json">{"@graph":[{"@type":"WebPage"},{"@type":"Product","name":"Kettle","image":{"url":"https://cdn.example.com/k.jpg"},"offers":{"price":"1.234,56","priceCurrency":"eur"}}]}</script>`,
		},
		{
			name: "array",
			html: `<script type="application/ld+json">[{"@type":"BreadcrumbList"},{"@type":["Product","Thing"],"name":"Kettle","image":{"url":"https://cdn.example.com/k.jpg"},"offers":{"price":"1.234,56","priceCurrency":"eur"}}]</script>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExtractStructured(mustDocument(t, tt.html), "USD")
			require.NotNil(t, res)
			assert.Equal(t, "Kettle", res.Title)
			assert.Equal(t, 1234.56, res.Price)
			assert.Equal(t, "EUR", res.Currency)
			assert.Equal(t, "https://cdn.example.com/k.jpg", res.ImageURL)
		})
	}
}

func TestExtractStructuredAggregateOffer(t *testing.T) {
	doc := mustDocument(t, `<script type="application/ld+json">
{"@type":"Product","name":"Sofa","offers":{"@type":"AggregateOffer","lowPrice":"399","highPrice":"899","priceCurrency":"GBP","availability":"https://schema.org/OutOfStock"}}
</script>`)

	res := ExtractStructured(doc, "USD")
	require.NotNil(t, res)
	assert.Equal(t, 899.0, res.Price)
	assert.Equal(t, "GBP", res.Currency)
	assert.False(t, res.IsAvailable)
}

func TestExtractStructuredFallsBackToStoreCurrency(t *testing.T) {
	doc := mustDocument(t, `<script type="application/ld+json">{"@type":"Product","name":"Mug","offers":{"price":12}}</script>`)

	res := ExtractStructured(doc, "INR")
	require.NotNil(t, res)
	assert.Equal(t, "INR", res.Currency)
}

func TestExtractStructuredProductWithoutPrice(t *testing.T) {
	doc := mustDocument(t, `<script type="application/ld+json">{"@type":"Product","name":"Mug"}</script>`)

	res := ExtractStructured(doc, "USD")
	require.NotNil(t, res)
	assert.Equal(t, "Mug", res.Title)
	assert.False(t, res.HasPrice())
}

func TestExtractStructuredPageState(t *testing.T) {
	doc := mustDocument(t, `<script>
window.__INITIAL_STATE__ = {"pageDataV4":{"page":{"data":{"product":{"title":"Running Shoe","finalPrice":{"value":2499,"currency":"INR"},"images":["https://rukminim.example/shoe.jpg"]}}}}};
window.__TRACKING__ = {"x": 1};
</script>`)

	res := ExtractStructured(doc, "USD")
	require.NotNil(t, res)
	assert.Equal(t, "Running Shoe", res.Title)
	assert.Equal(t, 2499.0, res.Price)
	assert.Equal(t, "INR", res.Currency)
	assert.Equal(t, "https://rukminim.example/shoe.jpg", res.ImageURL)
	assert.True(t, res.IsAvailable)
}

func TestExtractStructuredNextData(t *testing.T) {
	doc := mustDocument(t, `<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"item":{"name":"Lamp","price":"$45.00","inStock":false}}}}</script>`)

	res := ExtractStructured(doc, "USD")
	require.NotNil(t, res)
	assert.Equal(t, "Lamp", res.Title)
	assert.Equal(t, 45.0, res.Price)
	assert.False(t, res.IsAvailable)
}

func TestExtractStructuredNothingFound(t *testing.T) {
	doc := mustDocument(t, `<html><body><h1>Plain page</h1></body></html>`)
	assert.Nil(t, ExtractStructured(doc, "USD"))
	assert.Nil(t, ExtractStructured(nil, "USD"))
}

func TestParseStateBlob(t *testing.T) {
	t.Run("trailing script", func(t *testing.T) {
		data, ok := parseStateBlob(` = {"a":{"b":1}};window.x = {"c":2};`)
		require.True(t, ok)
		assert.Equal(t, map[string]interface{}{"a": map[string]interface{}{"b": 1.0}}, data)
	})

	t.Run("no object", func(t *testing.T) {
		_, ok := parseStateBlob(`= undefined;`)
		assert.False(t, ok)
	})

	t.Run("unparseable", func(t *testing.T) {
		_, ok := parseStateBlob(`{"a": [1, 2`)
		assert.False(t, ok)
	})

	t.Run("attempt ceiling", func(t *testing.T) {
		// The valid prefix is buried behind more closing braces than the loop allows
		tail := strings.Repeat(`x}`, maxStateTrimAttempts+5)
		_, ok := parseStateBlob(`{"a":1}` + tail)
		assert.False(t, ok)
	})
}

func TestHighestOffer(t *testing.T) {
	_, ok := highestOffer(nil)
	assert.False(t, ok)

	best, ok := highestOffer([]offer{{price: 10}, {price: 0}, {price: 30}, {price: 20}})
	require.True(t, ok)
	assert.Equal(t, 30.0, best.price)
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, isAvailable(""))
	assert.True(t, isAvailable("https://schema.org/InStock"))
	assert.False(t, isAvailable("https://schema.org/OutOfStock"))
	assert.False(t, isAvailable("http://schema.org/SoldOut"))
	assert.False(t, isAvailable("Discontinued"))
}
