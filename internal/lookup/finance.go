package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

// DefaultYahooFinanceURL is the quote search endpoint.
const DefaultYahooFinanceURL = "https://query2.finance.yahoo.com/v1/finance/search"

const yahooQuoteURL = "https://finance.yahoo.com/quote/"

// Finance resolves a company to its listed quote and basic profile.
type Finance struct {
	fetch   *fetcher
	baseURL string
}

// NewFinance creates a finance client.
func NewFinance(baseURL string, opts HTTPOptions, logger *zap.Logger) *Finance {
	if baseURL == "" {
		baseURL = DefaultYahooFinanceURL
	}
	return &Finance{fetch: newFetcher("yahoo-finance", opts, logger), baseURL: baseURL}
}

type yahooSearch struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchDisp"`
		QuoteType string `json:"quoteType"`
		Sector    string `json:"sectorDisp"`
		Industry  string `json:"industryDisp"`
	} `json:"quotes"`
}

// Name identifies the client.
func (f *Finance) Name() string { return "finance" }

// Lookup returns at most one snapshot record shaped as
// {title, summary, metrics, source, symbol, url}. The company name drives the
// quote search; query is only used when the company is unknown.
func (f *Finance) Lookup(ctx context.Context, company string, _ map[string]string, query string) ([]research.Record, error) {
	term := strings.TrimSpace(company)
	if term == "" || term == "the company" {
		term = strings.TrimSpace(query)
	}
	u := fmt.Sprintf("%s?q=%s&quotesCount=1&newsCount=0", f.baseURL, url.QueryEscape(term))
	body, err := f.fetch.get(ctx, u, "application/json")
	if err != nil {
		return nil, err
	}

	var res yahooSearch
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode quote search: %w", err)
	}
	if len(res.Quotes) == 0 || res.Quotes[0].Symbol == "" {
		return []research.Record{}, nil
	}

	q := res.Quotes[0]
	name := q.LongName
	if name == "" {
		name = q.ShortName
	}
	if name == "" {
		name = q.Symbol
	}

	metrics := map[string]any{}
	for k, v := range map[string]string{
		"exchange":   q.Exchange,
		"quote_type": q.QuoteType,
		"sector":     q.Sector,
		"industry":   q.Industry,
	} {
		if v != "" {
			metrics[k] = v
		}
	}

	summary := fmt.Sprintf("%s (%s)", name, q.Symbol)
	if q.Exchange != "" {
		summary += " trades on " + q.Exchange
	}
	summary += "."
	if q.Sector != "" && q.Industry != "" {
		summary += fmt.Sprintf(" Sector: %s; industry: %s.", q.Sector, q.Industry)
	}

	quoteURL := yahooQuoteURL + url.PathEscape(q.Symbol)
	return []research.Record{{
		"title":   name,
		"summary": summary,
		"metrics": metrics,
		"source":  quoteURL,
		"url":     quoteURL,
		"symbol":  q.Symbol,
	}}, nil
}

// SourceMetadata attributes the quote page.
func (f *Finance) SourceMetadata(results []research.Record) []research.Source {
	out := make([]research.Source, 0, len(results))
	for _, r := range results {
		u := r.First("source", "url")
		if u == "" {
			continue
		}
		title := r.String("symbol") + " quote"
		if name := r.String("title"); name != "" {
			title = name + " financial snapshot"
		}
		out = append(out, research.Source{Title: title, URL: u, Type: "finance"})
	}
	return out
}
