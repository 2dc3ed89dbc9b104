package workflows

import (
	"strings"
	"unicode"
)

// Intent is how a reply to the proposed workplan is read.
type Intent int

const (
	IntentNone Intent = iota
	IntentConfirm
	IntentRevise
)

var confirmPhrases = []string{
	"go", "start", "looks good", "ok", "okay", "yes", "proceed", "ready",
	"yep", "yeah", "sure", "do it", "sounds good", "approved",
}

var revisePhrases = []string{"change", "revise", "add", "update", "modify", "edit", "adjust"}

// ClassifyPlanReply checks confirmation phrases first, then revision phrases.
// Phrases match whole words only, so "go" does not match "category".
func ClassifyPlanReply(text string) Intent {
	tokens := tokenize(text)
	switch {
	case containsAny(tokens, confirmPhrases):
		return IntentConfirm
	case containsAny(tokens, revisePhrases):
		return IntentRevise
	}
	return IntentNone
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAny(tokens []string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(tokens, strings.Fields(p)) {
			return true
		}
	}
	return false
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, w := range phrase {
			if tokens[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
