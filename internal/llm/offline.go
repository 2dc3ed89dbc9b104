package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// OfflineProvider answers without any network access. It echoes the latest
// user turn, which keeps the conversation usable when no API key is set.
type OfflineProvider struct{}

// Name identifies the provider in metrics and logs.
func (OfflineProvider) Name() string { return "offline" }

// Generate returns a deterministic acknowledgement of the last user message.
func (OfflineProvider) Generate(_ context.Context, req Request) (string, error) {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != RoleAssistant {
			last = req.Messages[i].Content
			break
		}
	}
	if r := []rune(last); len(r) > 200 {
		last = string(r[:200])
	}
	text := fmt.Sprintf("I am using an offline fallback. Received: %s", last)
	if req.JSON {
		b, err := json.Marshal(map[string]any{ReplyKey: text})
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return text, nil
}
