package lookup

import (
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

// Endpoints overrides provider base URLs. Empty values use the public defaults.
type Endpoints struct {
	DuckDuckGo string
	GoogleNews string
	Wikipedia  string
	Finance    string
}

// Registry maps channels to their lookup clients.
type Registry map[research.Channel]Client

// NewRegistry builds a client for every known channel. Leadership, talent and
// competitor research reuse web search tagged with their own source type.
// cache may be nil.
func NewRegistry(endpoints Endpoints, opts HTTPOptions, cache Cache, logger *zap.Logger) Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	clients := map[research.Channel]Client{
		research.ChannelWeb:         NewWebSearch(endpoints.DuckDuckGo, research.ChannelWeb.Info().SourceType, opts, logger),
		research.ChannelNews:        NewNewsSearch(endpoints.GoogleNews, opts, logger),
		research.ChannelFinance:     NewFinance(endpoints.Finance, opts, logger),
		research.ChannelWikipedia:   NewWikipedia(endpoints.Wikipedia, opts, logger),
		research.ChannelLeadership:  NewWebSearch(endpoints.DuckDuckGo, research.ChannelLeadership.Info().SourceType, opts, logger),
		research.ChannelTalent:      NewWebSearch(endpoints.DuckDuckGo, research.ChannelTalent.Info().SourceType, opts, logger),
		research.ChannelCompetitors: NewWebSearch(endpoints.DuckDuckGo, research.ChannelCompetitors.Info().SourceType, opts, logger),
	}
	reg := make(Registry, len(clients))
	for ch, c := range clients {
		reg[ch] = Cached(c, cache, logger)
	}
	return reg
}

// For returns the client for ch, falling back to the web client.
func (r Registry) For(ch research.Channel) Client {
	if c, ok := r[ch]; ok {
		return c
	}
	return r[research.DefaultChannel]
}
