package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

// DefaultWikipediaURL is the REST API root for summaries.
const DefaultWikipediaURL = "https://en.wikipedia.org/api/rest_v1"

// Wikipedia fetches page summaries.
type Wikipedia struct {
	fetch   *fetcher
	baseURL string
}

// NewWikipedia creates a Wikipedia summary client.
func NewWikipedia(baseURL string, opts HTTPOptions, logger *zap.Logger) *Wikipedia {
	if baseURL == "" {
		baseURL = DefaultWikipediaURL
	}
	return &Wikipedia{fetch: newFetcher("wikipedia", opts, logger), baseURL: strings.TrimRight(baseURL, "/")}
}

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Name identifies the client.
func (w *Wikipedia) Name() string { return "wikipedia" }

// Lookup returns a single {title, summary, url, description} record, or none
// when no page matches.
func (w *Wikipedia) Lookup(ctx context.Context, company string, _ map[string]string, query string) ([]research.Record, error) {
	topic := strings.TrimSpace(query)
	if topic == "" {
		topic = company
	}
	title := url.PathEscape(strings.ReplaceAll(topic, " ", "_"))
	body, err := w.fetch.get(ctx, w.baseURL+"/page/summary/"+title, "application/json")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return []research.Record{}, nil
		}
		return nil, err
	}

	var s wikiSummary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to decode wikipedia summary: %w", err)
	}
	if strings.TrimSpace(s.Extract) == "" {
		return []research.Record{}, nil
	}
	return []research.Record{{
		"title":       s.Title,
		"summary":     strings.TrimSpace(s.Extract),
		"description": s.Description,
		"url":         s.ContentURLs.Desktop.Page,
	}}, nil
}

// SourceMetadata attributes the summary page.
func (w *Wikipedia) SourceMetadata(results []research.Record) []research.Source {
	return urlSources(results, "wikipedia")
}
