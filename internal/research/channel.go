package research

import "strings"

// Channel is one of the fixed information-gathering categories a task can target.
type Channel string

const (
	ChannelWeb         Channel = "web"
	ChannelNews        Channel = "news"
	ChannelWikipedia   Channel = "wikipedia"
	ChannelFinance     Channel = "finance"
	ChannelLeadership  Channel = "leadership"
	ChannelTalent      Channel = "talent"
	ChannelCompetitors Channel = "competitors"
)

// DefaultChannel receives any task whose channel is not recognised.
const DefaultChannel = ChannelWeb

// AllChannels lists every supported channel.
var AllChannels = []Channel{
	ChannelWeb,
	ChannelNews,
	ChannelWikipedia,
	ChannelFinance,
	ChannelLeadership,
	ChannelTalent,
	ChannelCompetitors,
}

// MandatoryChannels must be present in every normalized task list, in this order.
var MandatoryChannels = []Channel{
	ChannelWeb,
	ChannelNews,
	ChannelFinance,
	ChannelLeadership,
	ChannelTalent,
	ChannelCompetitors,
}

// ChannelInfo carries the display labels and defaults for a channel.
type ChannelInfo struct {
	Agent  string
	Source string
	Icon   string
	// Field is the bundle field the channel's payload merges into.
	Field FieldKey
	// TextKey is the result key holding the primary snippet text.
	TextKey string
	// SourceType labels attribution records produced by the channel.
	SourceType string
	// defaultQuery is formatted with the company name.
	defaultQuery string
}

var channelInfo = map[Channel]ChannelInfo{
	ChannelWeb:         {Agent: "Web Scout", Source: "Web search", Icon: "🌐", Field: FieldWebResults, TextKey: "content", SourceType: "web", defaultQuery: "%s enterprise go-to-market"},
	ChannelNews:        {Agent: "News Radar", Source: "Reuters/Bloomberg", Icon: "📰", Field: FieldNewsResults, TextKey: "summary", SourceType: "news", defaultQuery: "%s latest earnings and partnerships"},
	ChannelFinance:     {Agent: "Finance Lens", Source: "Financial filings", Icon: "💹", Field: FieldFinancials, TextKey: "summary", SourceType: "finance", defaultQuery: "%s revenue guidance"},
	ChannelLeadership:  {Agent: "Org Mapper", Source: "Executive bios", Icon: "👥", Field: FieldLeadership, TextKey: "content", SourceType: "leadership", defaultQuery: "%s executive priorities"},
	ChannelTalent:      {Agent: "Talent Scout", Source: "Hiring trackers", Icon: "🧑‍💼", Field: FieldHiringTrends, TextKey: "content", SourceType: "talent", defaultQuery: "%s hiring plans"},
	ChannelCompetitors: {Agent: "Battlecard", Source: "Competitive intel", Icon: "⚔️", Field: FieldCompetitors, TextKey: "content", SourceType: "competitor", defaultQuery: "%s competitive landscape"},
	ChannelWikipedia:   {Agent: "Knowledge Base", Source: "Wikipedia", Icon: "📚", Field: FieldWikiSummary, TextKey: "summary", SourceType: "wikipedia", defaultQuery: "%s"},
}

// ParseChannel trims and lower-cases s and reports whether it names a supported channel.
func ParseChannel(s string) (Channel, bool) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	_, ok := channelInfo[c]
	return c, ok
}

// Info returns the channel metadata. Unknown channels resolve to the default channel's metadata.
func (c Channel) Info() ChannelInfo {
	if info, ok := channelInfo[c]; ok {
		return info
	}
	return channelInfo[DefaultChannel]
}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	_, ok := channelInfo[c]
	return ok
}

// Title returns the capitalised channel name, e.g. "Finance".
func (c Channel) Title() string {
	s := string(c)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
