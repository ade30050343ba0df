package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
)

// minRenderedLength is the minimum extracted text length for a plain HTTP
// fetch to be considered complete. Shorter pages are likely script-rendered.
const minRenderedLength = 500

// HeadlessFetcher renders pages in a headless browser before extracting
// text. Needed for script-heavy sources that return empty shells over plain
// HTTP. Requires Chrome or Chromium on the host.
type HeadlessFetcher struct {
	timeout   time.Duration
	userAgent string
}

// NewHeadlessFetcher creates a browser-backed page fetcher.
func NewHeadlessFetcher() *HeadlessFetcher {
	return &HeadlessFetcher{
		timeout:   60 * time.Second,
		userAgent: "lexrag-crawler/1.0",
	}
}

// Fetch renders the URL in a headless browser and extracts title and text.
func (f *HeadlessFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, f.timeout)
	defer cancel()

	var rendered string
	err := chromedp.Run(browserCtx,
		emulation.SetUserAgentOverride(f.userAgent),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give client-side rendering a moment to fill the page.
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &rendered),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}

	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}

	title, text := extractText(doc)
	return &Page{URL: url, Title: title, Text: text}, nil
}

// FallbackFetcher tries a plain HTTP fetch first and falls back to headless
// rendering when the extracted text is too short to be real content.
type FallbackFetcher struct {
	plain    Fetcher
	headless Fetcher
}

// NewFallbackFetcher combines a plain and a headless fetcher.
func NewFallbackFetcher(plain, headless Fetcher) *FallbackFetcher {
	return &FallbackFetcher{plain: plain, headless: headless}
}

// Fetch retrieves the URL, preferring the cheap plain fetch.
func (f *FallbackFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	page, err := f.plain.Fetch(ctx, url)
	if err == nil && len(page.Text) >= minRenderedLength {
		return page, nil
	}
	return f.headless.Fetch(ctx, url)
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*HeadlessFetcher)(nil)
	_ Fetcher = (*FallbackFetcher)(nil)
)
