// Package crawler fetches page content for URL-based document ingestion.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Page holds the extracted content of a fetched URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

// Fetcher retrieves and extracts text content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher fetches pages with a plain HTTP GET and extracts visible text
// from the HTML. Suitable for server-rendered pages; use HeadlessFetcher for
// script-heavy sites.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a plain HTTP page fetcher.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "lexrag-crawler/1.0",
	}
}

// Fetch retrieves the URL and extracts title and visible text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	// Cap the body read; judgment pages can be large but not unbounded.
	body := io.LimitReader(resp.Body, 10<<20)

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}

	title, text := extractText(doc)
	return &Page{URL: url, Title: title, Text: text}, nil
}

// skipElements are HTML elements whose text content is never page content.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"iframe":   true,
}

// extractText walks the parsed document collecting the title and visible
// text, separating block-level content with newlines.
func extractText(doc *html.Node) (title, text string) {
	var sb strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipElements[n.Data] {
				return
			}
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}

		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString(" ")
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}

		if n.Type == html.ElementNode && isBlockElement(n.Data) {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	return title, strings.TrimSpace(sb.String())
}

// isBlockElement reports whether the element ends a text block.
func isBlockElement(name string) bool {
	switch name {
	case "p", "div", "section", "article", "li", "br", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
		return true
	}
	return false
}
