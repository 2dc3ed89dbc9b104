package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/lookup"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/streaming"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/workflows"
)

type stubLLM struct{}

func (stubLLM) Chat(_ context.Context, system string, _ []llm.Message) (string, error) {
	if strings.Contains(system, "Final scope context:") {
		return "**Phase 1: Discovery**", nil
	}
	return "Generated section [1]", nil
}

func (stubLLM) StructuredChat(_ context.Context, _ string, msgs []llm.Message) (map[string]any, error) {
	if len(msgs) == 1 && strings.Contains(msgs[0].Content, "Return JSON search tasks only") {
		return map[string]any{"search_tasks": []any{}}, nil
	}
	return map[string]any{
		"assistant_reply": "Got it.",
		"scope_updates":   map[string]any{"company": "Acme Corp", "region": "EMEA"},
		"needs_more_info": false,
	}, nil
}

type stubLookup struct{ ch research.Channel }

func (s stubLookup) Name() string { return string(s.ch) }

func (s stubLookup) Lookup(_ context.Context, company string, _ map[string]string, _ string) ([]research.Record, error) {
	return []research.Record{{"title": company + " " + string(s.ch), "url": "https://example.com/" + string(s.ch)}}, nil
}

func (s stubLookup) SourceMetadata(results []research.Record) []research.Source {
	out := make([]research.Source, 0, len(results))
	for _, r := range results {
		out = append(out, research.Source{Title: r.String("title"), URL: r.String("url"), Type: string(s.ch)})
	}
	return out
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := lookup.Registry{}
	for _, ch := range research.AllChannels {
		reg[ch] = stubLookup{ch: ch}
	}
	acts := activities.NewActivities(stubLLM{}, nil, reg, activities.Config{}, logger)
	ctrl := workflows.NewController(acts, nil, nil, logger)
	return NewServer(session.NewStore(logger), ctrl, acts, nil, logger)
}

func do(t *testing.T, h http.Handler, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestChatFlowAndReport(t *testing.T) {
	h := newTestServer(t).Handler()
	const sid = "http-flow"

	rec := do(t, h, http.MethodPost, "/api/chat", sid, map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "message is required", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/api/chat", sid, map[string]string{"message": "Plan for Acme in EMEA"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Got it.\n\n**Phase 1: Discovery**", body["reply"])
	assert.Equal(t, "CONFIRMING_PLAN", body["stage"])
	assert.Equal(t, sid, body["session_id"])
	assert.Equal(t, false, body["has_account_plan"])
	assert.Equal(t, sid, rec.Header().Get(SessionHeader))

	rec = do(t, h, http.MethodGet, "/api/report", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["sections"])

	rec = do(t, h, http.MethodGet, "/api/report?format=markdown", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/regenerate-section", sid, map[string]string{"section": "news"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/chat", sid, map[string]string{"message": "yes"})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, workflows.ReplyComplete, body["reply"])
	assert.Equal(t, "REVIEWING", body["stage"])
	assert.Equal(t, true, body["has_account_plan"])
	assert.NotEmpty(t, body["progress_log"])
	assert.NotEmpty(t, body["research_activity"])

	rec = do(t, h, http.MethodGet, "/api/report", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "Acme Corp", body["company_name"])
	assert.EqualValues(t, 1, body["version"])
	sections := body["sections"].(map[string]any)
	assert.Len(t, sections, 10)
	assert.Equal(t, "Generated section [1]", sections["plan_30_60_90"])
	assert.NotEmpty(t, body["sources"])

	rec = do(t, h, http.MethodGet, "/api/report?format=markdown", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Acme_Corp_account_plan.md")
	md := rec.Body.String()
	assert.True(t, strings.HasPrefix(md, "# Account Plan: Acme Corp"))
	assert.Contains(t, md, "## Sources")
	assert.Contains(t, md, "Used inline")
}

func TestRegenerateSection(t *testing.T) {
	h := newTestServer(t).Handler()
	const sid = "http-regen"

	do(t, h, http.MethodPost, "/api/chat", sid, map[string]string{"message": "Plan for Acme"})
	do(t, h, http.MethodPost, "/api/chat", sid, map[string]string{"message": "go"})

	rec := do(t, h, http.MethodPost, "/api/regenerate-section", sid, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "section is required", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/api/regenerate-section", sid, map[string]string{"section": "pricing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown section: pricing", decode(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/api/regenerate-section", sid, map[string]string{"section": "SWOT", "instruction": "be blunt"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "swot", body["section"])
	assert.EqualValues(t, 2, body["version"])

	rec = do(t, h, http.MethodGet, "/api/progress", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "REVIEWING", body["stage"])
	assert.Equal(t, []any{"Regenerating SWOT…", "SWOT updated."}, body["progress_log"])
}

func TestRegenerateRejectedWhileBusy(t *testing.T) {
	srv := newTestServer(t)
	sess, _ := srv.store.GetOrCreate("http-busy")
	sess.SetStage(session.StageResearching)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/regenerate-section", "http-busy", map[string]string{"section": "news"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionCreatedOnFirstContact(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/api/progress", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(SessionHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, "PLANNING", decode(t, rec)["stage"])

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, id, cookie.Value)

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, id, rec2.Header().Get(SessionHeader))
}

func TestSSEStreamsSessionEvents(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/progress/stream?session_id=sse-1&types=progress", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected to session sse-1\n", line)

	streaming.Get().Publish("sse-1", streaming.Event{Type: streaming.EventStage, Stage: "RESEARCHING"})
	streaming.Get().Publish("sse-1", streaming.Event{Type: streaming.EventProgress, Message: "Launching research agents…"})

	var data string
	for data == "" {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	var ev streaming.Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, streaming.EventProgress, ev.Type)
	assert.Equal(t, "Launching research agents…", ev.Message)
}

func TestSSERequiresSession(t *testing.T) {
	rec := do(t, newTestServer(t).Handler(), http.MethodGet, "/api/progress/stream", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketReplaysBacklog(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	streaming.Get().Publish("ws-1", streaming.Event{Type: streaming.EventProgress, Message: "first"})
	streaming.Get().Publish("ws-1", streaming.Event{Type: streaming.EventProgress, Message: "second"})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/progress/ws?session_id=ws-1&last_event_id=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev streaming.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "second", ev.Message)
	assert.Equal(t, uint64(2), ev.Seq)
}
