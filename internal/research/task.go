package research

import (
	"fmt"
	"strings"
)

// DefaultMaxTasks is the cap applied to task lists when none is configured.
const DefaultMaxTasks = 12

// DefaultAgentLabel is used when a planned task names no agent.
const DefaultAgentLabel = "Research Agent"

// SearchTask is one channel-tagged lookup in a research plan.
type SearchTask struct {
	Phase   string  `json:"phase"`
	Goal    string  `json:"goal"`
	Channel Channel `json:"channel"`
	Query   string  `json:"query"`
	Agent   string  `json:"agent"`
	Source  string  `json:"source"`
}

// ResolveCompany picks the company name used in default queries.
func ResolveCompany(scope map[string]string) string {
	for _, key := range []string{"company_name", "company"} {
		if v := strings.TrimSpace(scope[key]); v != "" {
			return v
		}
	}
	return "the company"
}

// DefaultQuery returns the baseline query for a channel.
func DefaultQuery(c Channel, company string) string {
	return fmt.Sprintf(c.Info().defaultQuery, company)
}

// BaselineTask synthesizes the coverage task for a channel.
func BaselineTask(c Channel, company string) SearchTask {
	info := c.Info()
	return SearchTask{
		Phase:   "Coverage",
		Goal:    fmt.Sprintf("Baseline %s insights", c),
		Channel: c,
		Query:   DefaultQuery(c, company),
		Agent:   info.Agent,
		Source:  info.Source,
	}
}

// clampCap keeps the cap large enough to hold every mandatory channel.
func clampCap(maxTasks int) int {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	if maxTasks < len(MandatoryChannels) {
		maxTasks = len(MandatoryChannels)
	}
	return maxTasks
}

// EnsureCoverage is the executor-side normalization pass. Unknown channels are
// coerced to the default channel, blank labels and queries are filled from
// channel metadata, and a baseline task is appended for every mandatory channel
// the list lacks. The result never exceeds maxTasks; when trimming is needed the
// first task of each mandatory channel is kept ahead of the rest.
func EnsureCoverage(company string, tasks []SearchTask, maxTasks int) []SearchTask {
	maxTasks = clampCap(maxTasks)

	cleaned := make([]SearchTask, 0, len(tasks))
	for _, t := range tasks {
		cleaned = append(cleaned, fillDefaults(t, company))
	}

	required := make(map[int]bool)
	seen := make(map[Channel]bool)
	for i, t := range cleaned {
		if !seen[t.Channel] && isMandatory(t.Channel) {
			required[i] = true
		}
		seen[t.Channel] = true
	}

	var missing []Channel
	for _, c := range MandatoryChannels {
		if !seen[c] {
			missing = append(missing, c)
		}
	}

	extra := maxTasks - len(missing) - len(required)
	out := make([]SearchTask, 0, maxTasks)
	for i, t := range cleaned {
		switch {
		case required[i]:
			out = append(out, t)
		case extra > 0:
			out = append(out, t)
			extra--
		}
	}
	for _, c := range missing {
		out = append(out, BaselineTask(c, company))
	}
	return out
}

func fillDefaults(t SearchTask, company string) SearchTask {
	c, ok := ParseChannel(string(t.Channel))
	if !ok {
		c = DefaultChannel
	}
	info := c.Info()
	t.Channel = c
	t.Phase = strings.TrimSpace(t.Phase)
	t.Goal = strings.TrimSpace(t.Goal)
	t.Query = strings.TrimSpace(t.Query)
	t.Agent = strings.TrimSpace(t.Agent)
	t.Source = strings.TrimSpace(t.Source)
	if t.Query == "" {
		t.Query = DefaultQuery(c, company)
	}
	if t.Goal == "" {
		t.Goal = c.Title() + " sweep"
	}
	if t.Agent == "" {
		t.Agent = info.Agent
	}
	if t.Source == "" {
		t.Source = info.Source
	}
	return t
}

func isMandatory(c Channel) bool {
	for _, m := range MandatoryChannels {
		if m == c {
			return true
		}
	}
	return false
}
