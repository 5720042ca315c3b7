package scraper

import (
	"net/http"
	"regexp"
)

// BotDetector recognises block and CAPTCHA pages from their title
type BotDetector struct {
	titlePatterns []*regexp.Regexp
}

// NewBotDetector creates a new bot detector
func NewBotDetector() *BotDetector {
	return &BotDetector{
		titlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)robot`),
			regexp.MustCompile(`(?i)captcha`),
			regexp.MustCompile(`(?i)access denied`),
			regexp.MustCompile(`(?i)forbidden`),
		},
	}
}

// IsBlocked reports whether an extracted title belongs to a block page.
// Everything harvested alongside a blocked title is untrustworthy.
func (bd *BotDetector) IsBlocked(title string) bool {
	return bd.BlockReason(title) != ""
}

// BlockReason returns the pattern that flagged the title, or ""
func (bd *BotDetector) BlockReason(title string) string {
	if title == "" {
		return ""
	}
	for _, pattern := range bd.titlePatterns {
		if pattern.MatchString(title) {
			return pattern.String()
		}
	}
	return ""
}

// IsBlockStatus reports HTTP statuses that mean the light fetch was refused
func IsBlockStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests
}
