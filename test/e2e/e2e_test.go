package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxlens/internal/analyzer"
	"github.com/hyperjump/taxlens/internal/dataset"
	"github.com/hyperjump/taxlens/internal/llm"
	"github.com/hyperjump/taxlens/internal/memory"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/prompt"
	"github.com/hyperjump/taxlens/internal/query"
	"github.com/hyperjump/taxlens/internal/selector"
	"github.com/hyperjump/taxlens/internal/server"
	"github.com/hyperjump/taxlens/internal/session"
	"github.com/hyperjump/taxlens/internal/storage"
)

// messagesStub mimics the Anthropic messages endpoint and records what it was sent.
type messagesStub struct {
	mu       sync.Mutex
	requests []stubRequest
	status   int
}

type stubRequest struct {
	System   string `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (s *messagesStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req stubRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	status := s.status
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Revenue reached $,1.5M in 2023 ."}],"stop_reason":"end_turn"}`))
}

func (s *messagesStub) last(t *testing.T) stubRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests, "no completion request was sent")
	return s.requests[len(s.requests)-1]
}

func (s *messagesStub) setStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

type pipeline struct {
	api   *httptest.Server
	stub  *messagesStub
	store *dataset.Store
	path  string
}

// newPipeline writes the corpus as ext and wires the full stack behind an HTTP server.
func newPipeline(t *testing.T, corpus *Corpus, ext string, tfidf bool) *pipeline {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filings"+ext)
	require.NoError(t, corpus.WriteFixture(path))

	src, err := storage.Open(storage.Options{Path: path})
	require.NoError(t, err)
	store := dataset.NewStore(src)
	require.NoError(t, store.Load(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	rules := selector.NewRuleSelector(selector.DefaultPlainLimit, selector.DefaultPredictiveLimit)
	var sel selector.Selector = rules
	if tfidf {
		ts := selector.NewTFIDFSelector(rules, selector.DefaultTFIDFResults)
		require.NoError(t, ts.Rebuild(context.Background(), store.Table()))
		store.OnReload(ts.Rebuild)
		t.Cleanup(func() { _ = ts.Close() })
		sel = ts
	}

	stub := &messagesStub{}
	upstream := httptest.NewServer(stub)
	t.Cleanup(upstream.Close)
	client, err := llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: "test-key", BaseURL: upstream.URL})
	require.NoError(t, err)

	an := analyzer.New(store, query.NewClassifier(nil, nil), sel,
		prompt.NewFormatter(prompt.Options{}), client,
		analyzer.Config{Role: analyzer.RoleEfficiency})
	srv := server.NewServer(an, session.NewManager(memory.DefaultCapacity, nil), store, nil, nil,
		server.WithDataPath(path))
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)

	return &pipeline{api: api, stub: stub, store: store, path: path}
}

func (p *pipeline) call(t *testing.T, method, path string, in, out interface{}) int {
	t.Helper()
	var body bytes.Buffer
	if in != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(in))
	}
	req, err := http.NewRequest(method, p.api.URL+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (p *pipeline) newSession(t *testing.T) string {
	t.Helper()
	var info server.SessionInfo
	require.Equal(t, http.StatusCreated, p.call(t, http.MethodPost, "/api/v1/sessions", nil, &info))
	return info.ID
}

func (p *pipeline) ask(t *testing.T, sessionID, question string) models.Answer {
	t.Helper()
	var answer models.Answer
	code := p.call(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/questions", models.Question{Text: question}, &answer)
	require.Equal(t, http.StatusOK, code)
	return answer
}

func TestE2E_QuestionsAcrossSourceFormats(t *testing.T) {
	corpus := BuildCorpus()
	for _, ext := range FixtureFormats {
		t.Run(strings.TrimPrefix(ext, "."), func(t *testing.T) {
			p := newPipeline(t, corpus, ext, false)
			assert.Equal(t, len(corpus.Filings)-corpus.Incomplete, p.store.Table().Len())

			for _, tc := range corpus.Cases {
				sessionID := p.newSession(t)
				answer := p.ask(t, sessionID, tc.Question)
				assert.Equal(t, tc.Class, string(answer.Class), tc.Description)
				assert.False(t, answer.Failed, tc.Description)
				assert.Equal(t, "Revenue reached $1.5M in 2023.", answer.Text)

				req := p.stub.last(t)
				require.Len(t, req.Messages, 1)
				msg := req.Messages[0].Content
				assert.True(t, strings.HasPrefix(msg, "Based on the following tax records:\n\nAnalysis Context:"))
				assert.True(t, strings.HasSuffix(msg, "Question: "+tc.Question))
				for _, want := range tc.MustContain {
					assert.Contains(t, msg, want, tc.Description)
				}
				for _, unwanted := range tc.MustNotHave {
					assert.NotContains(t, msg, unwanted, tc.Description)
				}
				if tc.Class == "predictive" {
					assert.Contains(t, req.System, "present trend")
				} else {
					assert.NotContains(t, req.System, "present trend")
				}
			}
		})
	}
}

func TestE2E_ConversationMemoryAndHistory(t *testing.T) {
	p := newPipeline(t, BuildCorpus(), ".csv", false)
	sessionID := p.newSession(t)

	p.ask(t, sessionID, "What is the revenue of EIN 12-3456789?")
	p.ask(t, sessionID, "And the total assets?")

	msg := p.stub.last(t).Messages[0].Content
	assert.Contains(t, msg, "Recent Conversation Context:\n\nQ: What is the revenue of EIN 12-3456789?\nA: Revenue reached $1.5M in 2023.")

	var hist server.HistoryResponse
	require.Equal(t, http.StatusOK, p.call(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/history", nil, &hist))
	require.Len(t, hist.History, 2)
	assert.Equal(t, "And the total assets?", hist.History[0].Question)

	require.Equal(t, http.StatusOK, p.call(t, http.MethodDelete, "/api/v1/sessions/"+sessionID+"/history", nil, nil))
	p.ask(t, sessionID, "Anything else?")
	assert.NotContains(t, p.stub.last(t).Messages[0].Content, "Recent Conversation Context:")
}

func TestE2E_CompletionFailureIsNotRemembered(t *testing.T) {
	p := newPipeline(t, BuildCorpus(), ".csv", false)
	sessionID := p.newSession(t)

	p.stub.setStatus(http.StatusBadRequest)
	answer := p.ask(t, sessionID, "What is the revenue of EIN 12-3456789?")
	assert.True(t, answer.Failed)
	assert.True(t, strings.HasPrefix(answer.Text, analyzer.ErrorAnswerPrefix), answer.Text)
	assert.Contains(t, answer.Text, "prompt is too long")

	var info server.SessionInfo
	p.call(t, http.MethodGet, "/api/v1/sessions/"+sessionID, nil, &info)
	assert.Equal(t, 0, info.Turns)
	assert.Equal(t, 1, info.Exchanges)

	p.stub.setStatus(http.StatusOK)
	p.ask(t, sessionID, "Try again")
	assert.NotContains(t, p.stub.last(t).Messages[0].Content, "prompt is too long")
}

func TestE2E_FocusRestrictsContext(t *testing.T) {
	p := newPipeline(t, BuildCorpus(), ".xlsx", false)
	sessionID := p.newSession(t)

	var org models.Organization
	code := p.call(t, http.MethodPut, "/api/v1/sessions/"+sessionID+"/focus", server.FocusRequest{EIN: "812223334"}, &org)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Evergreen Land Trust", org.BusinessName)

	p.ask(t, sessionID, "How are expenses split?")
	msg := p.stub.last(t).Messages[0].Content
	assert.Contains(t, msg, "Selected Organization: Evergreen Land Trust (EIN 81-2223334)")
	assert.NotContains(t, msg, "Harbor Food Bank")

	p.ask(t, sessionID, "What is the revenue forecast?")
	msg = p.stub.last(t).Messages[0].Content
	assert.Contains(t, msg, "Evergreen Land Trust (EIN 81-2223334):")
	metrics := len(prompt.DefaultSummaryMetrics)
	assert.Equal(t, metrics, strings.Count(msg, "- 2019-12-31: "), "oldest period once per metric")
	assert.Equal(t, metrics, strings.Count(msg, "- 2023-12-31: "), "latest period once per metric")
}

func TestE2E_TFIDFSelectionAndReload(t *testing.T) {
	corpus := BuildCorpus()
	p := newPipeline(t, corpus, ".csv", true)
	sessionID := p.newSession(t)

	p.ask(t, sessionID, "Tell me about Lakeshore Literacy Project")
	msg := p.stub.last(t).Messages[0].Content
	assert.Contains(t, msg, "Relevant Records:")
	assert.Contains(t, msg, "Lakeshore Literacy Project")
	assert.NotContains(t, msg, "Northside Youth League")

	corpus.Filings = append(corpus.Filings, Filing{
		EIN: "90-1234567", BusinessName: "Meadowbrook Animal Rescue",
		PeriodBegin: "2023-01-01", PeriodEnd: "2023-12-31", TotalRevenue: 90_000,
	})
	require.NoError(t, corpus.WriteFixture(p.path))

	var ov dataset.Overview
	require.Equal(t, http.StatusOK, p.call(t, http.MethodPost, "/api/v1/dataset/reload", nil, &ov))
	assert.Equal(t, len(corpus.Filings)-corpus.Incomplete, ov.TotalRecords)
	assert.Equal(t, 7, ov.Organizations)

	p.ask(t, sessionID, "Tell me about Meadowbrook Animal Rescue")
	assert.Contains(t, p.stub.last(t).Messages[0].Content, "Meadowbrook Animal Rescue")
}
