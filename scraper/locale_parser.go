package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const numberPattern = `\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`

var (
	// Currency symbol immediately followed by a number shaped like 1,234.56
	strictPriceRe = regexp.MustCompile(`[$€£₹¥]\s*(` + numberPattern + `)`)

	// "price: 1,299" style labels
	keywordPriceRe = regexp.MustCompile(`(?i)price\s*:?\s*(` + numberPattern + `)`)

	// Any number, including thousands groups and a decimal tail
	anyNumberRe = regexp.MustCompile(`\d+(?:[.,]\d{3})*(?:[.,]\d{1,2})?`)

	// Unit suffixes that mark a number as a product attribute rather than a price
	unitSuffixRe = regexp.MustCompile(`(?i)^\s*(?:mah|ah|v|w|lm|mm|cm|in|inch|inches|kg|g|lb|lbs|oz|mhz|ghz|hz|gb|mb|tb)\b`)

	whitespaceRe   = regexp.MustCompile(`\s+`)
	decimalTailRe  = regexp.MustCompile(`[.,]\d{1,2}$`)
	fragmentTailRe = regexp.MustCompile(`^\s+[\d.,]`)
	digitRe        = regexp.MustCompile(`\d`)
	letterRe       = regexp.MustCompile(`\pL`)
	nonNumericRe   = regexp.MustCompile(`[^\d.,]`)

	// Discount, rating, stock, and financing language
	nonPriceTextRe = regexp.MustCompile(`(?i)\d+\s*%|%\s*off|\bdiscount|\breviews?\b|\bratings?\b|\bstars?\b|out of 5|\bin stock\b|out of stock|\bleft\b|sold out|\bunavailable\b|/mo\b|per month|\bmonthly\b|\bemi\b|starting at|\bfrom\b`)

	// Symbols, codes, and keywords that legitimise alphabetic text in a price token
	priceIndicatorRe = regexp.MustCompile(`(?i)[$€£₹¥]|\b(?:usd|eur|gbp|inr|cad|aud|jpy|sgd|myr|rs\.?|price|mrp|now|sale|deal|our)\b`)
)

// smallQuantityLimit is the bound under which a bare integer is read as a quantity
const smallQuantityLimit = 5

// IsValidPriceText rejects candidate tokens that are not prices: discount,
// review and stock wording, product specs such as "Intel i5" that carry
// letters without any currency or price keyword, and text with no digits.
func IsValidPriceText(text string) bool {
	text = strings.TrimSpace(text)
	if !digitRe.MatchString(text) {
		return false
	}
	if nonPriceTextRe.MatchString(text) {
		return false
	}
	if letterRe.MatchString(text) && !priceIndicatorRe.MatchString(text) {
		return false
	}
	return true
}

// ParsePrice extracts a decimal price from free-form text. It returns 0 when
// no price can be read.
func ParsePrice(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	// Fragmented markup can put whitespace between digits ("$ 2 4 8 . 0 0").
	// The collapsed copy is only consulted when the raw match stops short,
	// since collapsing also glues neighbouring tokens ("$19.99 2 for $30").
	raw := strictPriceRe.FindStringSubmatchIndex(text)
	if raw == nil || looksFragmented(text, raw) {
		collapsed := whitespaceRe.ReplaceAllString(text, "")
		if m := strictPriceRe.FindStringSubmatch(collapsed); m != nil {
			if v := ParseNumber(m[1]); v > 0 && hasAtMostCents(v) {
				return v
			}
		}
	}
	if raw != nil {
		if v := ParseNumber(text[raw[2]:raw[3]]); v > 0 {
			return v
		}
	}

	if m := keywordPriceRe.FindStringSubmatch(text); m != nil {
		if v := ParseNumber(m[1]); v > 0 {
			return v
		}
	}

	return scanNumbers(text)
}

// looksFragmented reports whether a strict match at loc is an integer that
// runs on into more digits or separators after whitespace
func looksFragmented(text string, loc []int) bool {
	if decimalTailRe.MatchString(text[loc[2]:loc[3]]) {
		return false
	}
	return fragmentTailRe.MatchString(text[loc[3]:])
}

func hasAtMostCents(v float64) bool {
	cents := v * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// scanNumbers picks the first number that is neither unit-suffixed nor a bare
// small integer. Small integers are kept as a last resort; unit-suffixed
// numbers never are.
//
// The small-integer rule is a heuristic and misses genuinely cheap items
// priced under 5 without a decimal part.
func scanNumbers(text string) float64 {
	var fallback float64
	for _, loc := range anyNumberRe.FindAllStringIndex(text, -1) {
		token := text[loc[0]:loc[1]]
		if unitSuffixRe.MatchString(text[loc[1]:]) {
			continue
		}
		v := ParseNumber(token)
		if v <= 0 {
			continue
		}
		if v < smallQuantityLimit && !strings.ContainsAny(token, ".,") {
			if fallback == 0 {
				fallback = v
			}
			continue
		}
		return v
	}
	return fallback
}

// ParseNumber converts a digit string with locale punctuation into a float.
//
//   - both "," and "." present: the later one is the decimal point
//   - only ",": decimal when exactly two digits follow the last comma, else thousands
//   - only ".": several dots are thousands separators, a single dot is decimal
func ParseNumber(raw string) float64 {
	cleaned := nonNumericRe.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			// 1,234.56
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 == 2 {
			// 12,99
			cleaned = strings.ReplaceAll(cleaned[:lastComma], ",", "") + "." + cleaned[lastComma+1:]
		} else {
			// 1,299
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		// 1.234.567
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	value, err := strconv.ParseFloat(strings.Trim(cleaned, "."), 64)
	if err != nil {
		return 0
	}
	return value
}

// cleanPriceToken trims whitespace and non-breaking spaces from captured text
func cleanPriceToken(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
