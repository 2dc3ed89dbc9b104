package activities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activity"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

func TestRunResearchDefaultCoverage(t *testing.T) {
	reg, fakes := fakeLookups()
	a := NewActivities(&fakeLLM{}, nil, reg, Config{}, zaptest.NewLogger(t))
	sess := session.New("r1")
	sess.SetScopeValue("company", "Acme Corp")

	bundle := a.RunResearch(t.Context(), sess, nil)

	assert.Equal(t, []string{"Acme Corp revenue guidance"}, fakes[research.ChannelFinance].queries)
	assert.Equal(t, []string{"Acme Corp latest earnings and partnerships"}, fakes[research.ChannelNews].queries)
	assert.Empty(t, fakes[research.ChannelWikipedia].queries)

	channels := map[research.Channel]bool{}
	for _, task := range bundle.SearchPlan {
		channels[task.Channel] = true
	}
	for _, ch := range research.MandatoryChannels {
		assert.True(t, channels[ch], "missing %s", ch)
	}
	assert.Equal(t, bundle.SearchPlan, sess.Tasks())
	assert.Same(t, bundle, sess.Bundle())
	assert.Equal(t, session.StageAnalyzing, sess.Stage())
	progress := sess.Progress()
	require.Len(t, progress, len(bundle.SearchPlan)+2)
	assert.Equal(t, "Launching research agents…", progress[0])
	assert.Equal(t, "💹 Finance Lens – Baseline finance insights", progress[1+indexOf(bundle.SearchPlan, research.ChannelFinance)])
	assert.Equal(t, "Research bundle ready for analysis.", progress[len(progress)-1])
}

func TestRunResearchIsolatesFailures(t *testing.T) {
	reg, fakes := fakeLookups()
	fakes[research.ChannelFinance].err = errors.New("rate limited")
	fakes[research.ChannelWeb].results = []research.Record{
		{"title": "Acme &amp; Co", "url": "https://acme.com", "content": "<b>Rockets</b>"},
		{"title": "Dup", "url": "https://acme.com"},
	}
	fakes[research.ChannelNews].results = []research.Record{{"title": "Headline", "summary": "Story"}}
	fakes[research.ChannelWikipedia].results = []research.Record{{"title": "Acme", "summary": "Encyclopedia", "url": "https://wiki/acme"}}

	a := NewActivities(&fakeLLM{}, nil, reg, Config{}, nil)
	sess := session.New("r2")
	sess.SetScopeValue("company_name", "Acme")

	tasks := []research.SearchTask{
		{Channel: research.ChannelWikipedia, Query: "Acme"},
		{Channel: "unknown", Query: "coerced to web"},
	}
	bundle := a.RunResearch(t.Context(), sess, tasks)

	assert.Empty(t, bundle.Financials)
	assert.Len(t, bundle.WebResults, 2)
	assert.Equal(t, "Encyclopedia", bundle.WikiSummary.String("summary"))
	assert.Equal(t, []string{"coerced to web"}, fakes[research.ChannelWeb].queries)

	events := sess.Activity.Snapshot()
	require.Len(t, events, len(bundle.SearchPlan))
	for i, ev := range events {
		assert.Equal(t, bundle.SearchPlan[i].Channel, ev.Channel)
		if ev.Channel == research.ChannelFinance {
			assert.Equal(t, activity.StatusError, ev.Status)
			assert.Equal(t, []activity.Result{{Title: "Error", Snippet: "rate limited", URL: ""}}, ev.Results)
			continue
		}
		assert.Equal(t, activity.StatusComplete, ev.Status, ev.Channel)
		assert.NotEmpty(t, ev.CompletedAt)
	}

	web := events[1]
	require.NotEmpty(t, web.Results)
	assert.Equal(t, "Acme & Co", web.Results[0].Title)
	assert.Equal(t, "Rockets", web.Results[0].Snippet)

	urls := map[string]int{}
	for _, s := range bundle.Sources {
		urls[s.URL]++
	}
	assert.Equal(t, 1, urls["https://acme.com"])
	assert.Equal(t, session.StageAnalyzing, sess.Stage())
}

func TestRunResearchResetsPreviousRun(t *testing.T) {
	reg, _ := fakeLookups()
	a := NewActivities(&fakeLLM{}, nil, reg, Config{}, nil)
	sess := session.New("r3")

	a.RunResearch(t.Context(), sess, nil)
	first := sess.Activity.Len()
	a.RunResearch(t.Context(), sess, nil)
	assert.Equal(t, first, sess.Activity.Len())
}

func TestFinancePreview(t *testing.T) {
	got := financePreview([]research.Record{{
		"summary": "Acme (ACME) trades on NASDAQ.",
		"source":  "https://finance.yahoo.com/quote/ACME",
		"metrics": map[string]any{"market_cap": "10B", "sector": "Industrials", "exchange": "NASDAQ"},
	}})
	require.Len(t, got, 4)
	assert.Equal(t, "Context", got[0].Title)
	assert.Equal(t, "Exchange", got[1].Title)
	assert.Equal(t, "Sector", got[2].Title)
	assert.Equal(t, activity.Result{Title: "Market Cap", Snippet: "10B", URL: "https://finance.yahoo.com/quote/ACME"}, got[3])

	assert.Equal(t, []activity.Result{{Title: "Financials", Snippet: "No structured data available"}}, financePreview(nil))
}

func indexOf(tasks []research.SearchTask, ch research.Channel) int {
	for i, task := range tasks {
		if task.Channel == ch {
			return i
		}
	}
	return -1
}
