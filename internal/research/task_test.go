package research

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func channelSet(tasks []SearchTask) map[Channel]bool {
	set := make(map[Channel]bool)
	for _, t := range tasks {
		set[t.Channel] = true
	}
	return set
}

func TestEnsureCoverage_EmptyListGetsBaseline(t *testing.T) {
	tasks := EnsureCoverage("Acme Corp", nil, 12)
	require.Len(t, tasks, len(MandatoryChannels))

	byChannel := make(map[Channel]SearchTask)
	for _, task := range tasks {
		byChannel[task.Channel] = task
	}
	assert.Equal(t, "Acme Corp revenue guidance", byChannel[ChannelFinance].Query)
	assert.Equal(t, "Acme Corp latest earnings and partnerships", byChannel[ChannelNews].Query)
	assert.Equal(t, "Coverage", byChannel[ChannelTalent].Phase)
	assert.Equal(t, "Baseline talent insights", byChannel[ChannelTalent].Goal)
	assert.Equal(t, "Org Mapper", byChannel[ChannelLeadership].Agent)
}

func TestEnsureCoverage_SupersetAndCap(t *testing.T) {
	inputs := [][]SearchTask{
		nil,
		{{Channel: "news", Query: "q"}},
		{{Channel: "bogus", Query: "q"}, {Channel: "wikipedia"}},
	}
	var many []SearchTask
	for i := 0; i < 40; i++ {
		many = append(many, SearchTask{Channel: ChannelWeb, Query: fmt.Sprintf("web %d", i)})
	}
	inputs = append(inputs, many)

	for _, maxTasks := range []int{0, 3, 6, 12, 20} {
		for _, in := range inputs {
			out := EnsureCoverage("Acme", in, maxTasks)
			set := channelSet(out)
			for _, c := range MandatoryChannels {
				assert.True(t, set[c], "missing %s (cap %d)", c, maxTasks)
			}
			assert.LessOrEqual(t, len(out), clampCap(maxTasks))
		}
	}
}

func TestEnsureCoverage_CoercesUnknownChannel(t *testing.T) {
	out := EnsureCoverage("Acme", []SearchTask{{Channel: "Podcasts", Query: " acme podcast "}}, 12)
	require.NotEmpty(t, out)
	assert.Equal(t, ChannelWeb, out[0].Channel)
	assert.Equal(t, "acme podcast", out[0].Query)
	assert.Equal(t, "Web sweep", out[0].Goal)
	assert.Equal(t, "Web Scout", out[0].Agent)
}

func TestEnsureCoverage_KeepsMandatoryWhenTrimming(t *testing.T) {
	var in []SearchTask
	for i := 0; i < 10; i++ {
		in = append(in, SearchTask{Channel: ChannelWikipedia, Query: fmt.Sprintf("wiki %d", i)})
	}
	in = append(in, SearchTask{Channel: ChannelTalent, Query: "acme hiring"})

	out := EnsureCoverage("Acme", in, 8)
	require.Len(t, out, 8)
	assert.Equal(t, "acme hiring", out[2].Query)
	assert.True(t, channelSet(out)[ChannelCompetitors])
}

func TestResolveCompany(t *testing.T) {
	assert.Equal(t, "Acme", ResolveCompany(map[string]string{"company_name": "Acme", "company": "Other"}))
	assert.Equal(t, "Other", ResolveCompany(map[string]string{"company": " Other "}))
	assert.Equal(t, "the company", ResolveCompany(nil))
}

func TestParseChannel(t *testing.T) {
	c, ok := ParseChannel("  FINANCE ")
	assert.True(t, ok)
	assert.Equal(t, ChannelFinance, c)

	_, ok = ParseChannel("podcasts")
	assert.False(t, ok)
	assert.Equal(t, ChannelWeb.Info().Agent, Channel("podcasts").Info().Agent)
}
