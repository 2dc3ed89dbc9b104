package lookup

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

// DefaultDuckDuckGoURL is the HTML endpoint used for web search.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// WebSearch queries DuckDuckGo's HTML interface. The same client serves the
// leadership, talent and competitor channels with a different source type.
type WebSearch struct {
	fetch      *fetcher
	baseURL    string
	sourceType string
	maxResults int
}

// NewWebSearch creates a web search client tagging results with sourceType.
func NewWebSearch(baseURL, sourceType string, opts HTTPOptions, logger *zap.Logger) *WebSearch {
	if baseURL == "" {
		baseURL = DefaultDuckDuckGoURL
	}
	if sourceType == "" {
		sourceType = "web"
	}
	return &WebSearch{
		fetch:      newFetcher("duckduckgo-"+sourceType, opts, logger),
		baseURL:    baseURL,
		sourceType: sourceType,
		maxResults: opts.maxResults(),
	}
}

// Name identifies the client.
func (w *WebSearch) Name() string { return "web:" + w.sourceType }

// Lookup returns search hits as {title, url, content} records.
func (w *WebSearch) Lookup(ctx context.Context, company string, scope map[string]string, query string) ([]research.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = strings.TrimSpace(fmt.Sprintf("%s %s enterprise GTM overview", company, scope["region"]))
	}
	body, err := w.fetch.get(ctx, w.baseURL+"?q="+url.QueryEscape(query), "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	hits, err := parseDuckDuckGo(body, w.maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]research.Record, 0, len(hits))
	for _, h := range hits {
		out = append(out, research.Record{"title": h.title, "url": h.url, "content": h.snippet})
	}
	return out, nil
}

// SourceMetadata attributes every result with a url.
func (w *WebSearch) SourceMetadata(results []research.Record) []research.Source {
	return urlSources(results, w.sourceType)
}

type searchHit struct {
	title   string
	url     string
	snippet string
}

// parseDuckDuckGo extracts result blocks from DuckDuckGo HTML.
func parseDuckDuckGo(body []byte, limit int) ([]searchHit, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var hits []searchHit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if h := extractHit(n); h.url != "" && h.title != "" {
				hits = append(hits, h)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hits, nil
}

func extractHit(n *html.Node) searchHit {
	var h searchHit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				h.url = attr(n, "href")
				h.title = textContent(n)
			case hasClass(n, "result__snippet"):
				h.snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	h.url = unwrapRedirect(h.url)
	return h
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect links.
func unwrapRedirect(link string) string {
	if !strings.Contains(link, "duckduckgo.com/l/") {
		return link
	}
	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
