package lookup

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/util"
)

// DefaultGoogleNewsURL is the RSS search endpoint used for news.
const DefaultGoogleNewsURL = "https://news.google.com/rss/search"

// NewsSearch reads Google News RSS search results.
type NewsSearch struct {
	fetch      *fetcher
	baseURL    string
	maxResults int
}

// NewNewsSearch creates a news client.
func NewNewsSearch(baseURL string, opts HTTPOptions, logger *zap.Logger) *NewsSearch {
	if baseURL == "" {
		baseURL = DefaultGoogleNewsURL
	}
	return &NewsSearch{
		fetch:      newFetcher("google-news", opts, logger),
		baseURL:    baseURL,
		maxResults: opts.maxResults(),
	}
}

type rssFeed struct {
	Items []rssItem `xml:"channel>item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

// Name identifies the client.
func (n *NewsSearch) Name() string { return "news" }

// Lookup returns {title, url, summary, published, publisher} records, deduplicated by url.
func (n *NewsSearch) Lookup(ctx context.Context, company string, _ map[string]string, query string) ([]research.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = company + " news"
	}
	u := fmt.Sprintf("%s?q=%s&hl=en-US&gl=US&ceid=US:en", n.baseURL, url.QueryEscape(query))
	body, err := n.fetch.get(ctx, u, "application/rss+xml, application/xml")
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]research.Record, 0, len(feed.Items))
	for _, it := range feed.Items {
		if len(out) >= n.maxResults {
			break
		}
		link := strings.TrimSpace(it.Link)
		if link != "" && seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, research.Record{
			"title":     util.CleanHTML(it.Title),
			"url":       link,
			"summary":   util.CleanHTML(it.Description),
			"published": strings.TrimSpace(it.PubDate),
			"publisher": strings.TrimSpace(it.Source),
		})
	}
	return out, nil
}

// SourceMetadata attributes every result with a url.
func (n *NewsSearch) SourceMetadata(results []research.Record) []research.Source {
	return urlSources(results, "news")
}
