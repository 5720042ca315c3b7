package scraper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

const (
	systemChromium = "/usr/bin/chromium-browser"

	settleDuration = 2 * time.Second
	storeWaitLimit = 10 * time.Second
)

// storeWaitSelectors mark the element a store renders once its product data
// is on the page
var storeWaitSelectors = map[string]string{
	StoreAmazon:  "#productTitle",
	StoreWalmart: `[itemprop="price"]`,
	StoreBestBuy: ".priceView-customer-price",
}

// RenderedPage is the DOM of a page after scripts have run
type RenderedPage struct {
	HTML  string
	Title string
}

// PageRenderer loads a page in a real browser
type PageRenderer interface {
	Render(ctx context.Context, url string) (*RenderedPage, error)
}

// BrowserRenderer launches a headless Chromium for every Render call and
// tears it down before returning
type BrowserRenderer struct {
	bin     string
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewBrowserRenderer creates a renderer. An empty bin uses the system
// Chromium when present, otherwise rod's managed browser.
func NewBrowserRenderer(bin string, timeout time.Duration, logger logrus.FieldLogger) *BrowserRenderer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if bin == "" {
		if _, err := os.Stat(systemChromium); err == nil {
			bin = systemChromium
		}
	}
	return &BrowserRenderer{
		bin:     bin,
		timeout: timeout,
		logger:  logger.WithField("component", "browser"),
	}
}

// Render navigates to url and returns the settled DOM. The browser process is
// closed on every exit path.
func (r *BrowserRenderer) Render(ctx context.Context, url string) (*RenderedPage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true).
		Leakless(false)
	if r.bin != "" {
		l = l.Bin(r.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			r.logger.WithError(err).Debug("Browser close failed")
		}
	}()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	defer page.Close()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      randomUserAgent(),
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		return nil, fmt.Errorf("set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		r.logger.WithError(err).WithField("url", url).Warn("WaitLoad failed, continuing anyway")
	}

	log := r.logger.WithField("url", url)
	if sel, ok := storeWaitSelectors[DetectStore(url)]; ok {
		if _, err := page.Timeout(storeWaitLimit).Element(sel); err != nil {
			log.WithField("selector", sel).Warn("Store element did not appear")
		}
	}
	if err := page.WaitStable(settleDuration); err != nil {
		log.WithError(err).Debug("Page did not settle")
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html: %w", err)
	}

	rendered := &RenderedPage{HTML: html}
	if info, err := page.Info(); err == nil {
		rendered.Title = info.Title
	}
	log.WithField("bytes", len(html)).Info("Page rendered in browser")
	return rendered, nil
}
