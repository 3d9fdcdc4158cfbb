package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesrag/salesrag/internal/models"
	"github.com/salesrag/salesrag/pkg/ingest"
	"github.com/salesrag/salesrag/pkg/rag"
)

type fakeEngine struct {
	answer    *rag.Answer
	chunks    []string
	streamErr error
	err       error
}

func (f *fakeEngine) Answer(ctx context.Context, query string) (*rag.Answer, error) {
	return f.answer, f.err
}

func (f *fakeEngine) AnswerStream(ctx context.Context, query string) (<-chan string, <-chan error, *rag.Answer, error) {
	if f.err != nil {
		return nil, nil, nil, f.err
	}
	ch := make(chan string, len(f.chunks)+1)
	for _, chunk := range f.chunks {
		ch <- chunk
	}
	close(ch)

	errs := make(chan error, 1)
	if f.streamErr != nil {
		errs <- f.streamErr
	}
	close(errs)
	return ch, errs, f.answer, nil
}

type fakeIngestor struct {
	report *ingest.Report
	err    error
	gotDir string
}

func (f *fakeIngestor) IngestDirectory(ctx context.Context, dir string) (*ingest.Report, error) {
	f.gotDir = dir
	return f.report, f.err
}

type fakeStore struct {
	records  []models.Record
	clearErr error
}

func (f *fakeStore) Add(ctx context.Context, records []models.Record) error { return nil }

func (f *fakeStore) Query(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	return nil, nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) { return len(f.records), nil }

func (f *fakeStore) Sample(ctx context.Context, n int) ([]models.Record, error) {
	if n > len(f.records) {
		n = len(f.records)
	}
	return f.records[:n], nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.records = nil
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestServer(engine *fakeEngine, ingestor *fakeIngestor, store *fakeStore) *httptest.Server {
	srv := New(Config{
		Collection: "local_docs",
		DocsDir:    "data/local_docs",
	}, engine, ingestor, store)
	return httptest.NewServer(srv.Handler())
}

func TestHandleIndex(t *testing.T) {
	ts := newTestServer(&fakeEngine{}, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(&fakeEngine{}, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["ollama"])
}

func TestHandleQuery(t *testing.T) {
	engine := &fakeEngine{answer: &rag.Answer{
		Text:    "It costs $99 per seat.",
		Sources: []string{"pricing.html"},
	}}
	ts := newTestServer(engine, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/query", "application/json",
		strings.NewReader(`{"query":"How much does it cost?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body queryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "It costs $99 per seat.", body.Answer)
	assert.Equal(t, []string{"pricing.html"}, body.Sources)
}

func TestHandleQueryNoDocuments(t *testing.T) {
	ts := newTestServer(&fakeEngine{err: rag.ErrNoDocuments}, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/query", "application/json",
		strings.NewReader(`{"query":"anything"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body queryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, rag.NoDocumentsMessage, body.Answer)
	assert.Empty(t, body.Sources)
}

func TestHandleQueryValidation(t *testing.T) {
	ts := newTestServer(&fakeEngine{}, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/query", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleQueryEngineError(t *testing.T) {
	ts := newTestServer(&fakeEngine{err: fmt.Errorf("ollama down")}, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/query", "application/json",
		strings.NewReader(`{"query":"anything"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleIngest(t *testing.T) {
	ingestor := &fakeIngestor{report: &ingest.Report{
		Files: []ingest.FileResult{
			{Path: "/docs/a.html", Chunks: 3},
			{Path: "/docs/b.html", Err: fmt.Errorf("parse error")},
		},
		TotalChunks: 3,
	}}
	ts := newTestServer(&fakeEngine{}, ingestor, &fakeStore{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/ingest", "application/json",
		strings.NewReader(`{"path":"/srv/docs"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/srv/docs", ingestor.gotDir)

	var body ingestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Files)
	assert.Equal(t, 1, body.Failed)
	assert.Equal(t, 3, body.Chunks)
	assert.Contains(t, body.Report, "a.html: 3 chunks indexed")
}

func TestHandleIngestDefaultsToDocsDir(t *testing.T) {
	ingestor := &fakeIngestor{report: &ingest.Report{}}
	ts := newTestServer(&fakeEngine{}, ingestor, &fakeStore{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/ingest", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "data/local_docs", ingestor.gotDir)
}

func TestHandleIngestInvalidPath(t *testing.T) {
	ingestor := &fakeIngestor{err: fmt.Errorf("invalid folder path: /nope")}
	ts := newTestServer(&fakeEngine{}, ingestor, &fakeStore{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/ingest", "application/json",
		strings.NewReader(`{"path":"/nope"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleInspect(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		{Chunk: models.Chunk{SourcePath: "/docs/a.html", Title: "A", Text: "alpha"}},
		{Chunk: models.Chunk{SourcePath: "/docs/b.html", Title: "B", Text: "beta"}},
	}}
	ts := newTestServer(&fakeEngine{}, &fakeIngestor{}, store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/inspect")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body inspectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.Contains(t, body.Report, "Found collection 'local_docs' with 2 embedded chunks.")
	assert.Contains(t, body.Report, "Source: a.html")
}

func TestHandleClear(t *testing.T) {
	store := &fakeStore{records: []models.Record{
		{Chunk: models.Chunk{SourcePath: "/docs/a.html"}},
	}}
	ts := newTestServer(&fakeEngine{}, &fakeIngestor{}, store)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/clear", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body["count"])
	assert.Empty(t, store.records)
}

func TestWebSocketChat(t *testing.T) {
	engine := &fakeEngine{
		answer: &rag.Answer{Sources: []string{"pricing.html"}},
		chunks: []string{"It costs ", "$99 per seat."},
	}
	ts := newTestServer(engine, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "How much?"}))

	var messages []Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		messages = append(messages, msg)
		if msg.Type == "done" {
			break
		}
	}

	require.Len(t, messages, 4)
	assert.Equal(t, "sources", messages[0].Type)
	assert.Equal(t, "stream", messages[1].Type)
	assert.Equal(t, "It costs ", messages[1].Content)
	assert.Equal(t, "$99 per seat.", messages[2].Content)
	assert.Equal(t, "done", messages[3].Type)
}

func TestWebSocketStreamsTokensVerbatim(t *testing.T) {
	// A completion whose first token happens to start with "Error:" is still
	// a normal answer and must reach the client as stream messages
	engine := &fakeEngine{
		answer: &rag.Answer{Sources: []string{"faq.html"}},
		chunks: []string{"Error: codes are listed", " in the appendix."},
	}
	ts := newTestServer(engine, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "What are the error codes?"}))

	var messages []Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.NotEqual(t, "error", msg.Type)
		messages = append(messages, msg)
		if msg.Type == "done" {
			break
		}
	}

	require.Len(t, messages, 4)
	assert.Equal(t, "stream", messages[1].Type)
	assert.Equal(t, "Error: codes are listed", messages[1].Content)
	assert.Equal(t, " in the appendix.", messages[2].Content)
}

func TestWebSocketGenerationError(t *testing.T) {
	engine := &fakeEngine{
		answer:    &rag.Answer{Sources: []string{"a.html"}},
		chunks:    []string{"partial "},
		streamErr: fmt.Errorf("model crashed"),
	}
	ts := newTestServer(engine, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "anything"}))

	var messages []Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		messages = append(messages, msg)
		if msg.Type == "error" || msg.Type == "done" {
			break
		}
	}

	last := messages[len(messages)-1]
	assert.Equal(t, "error", last.Type)
	assert.Equal(t, "model crashed", last.Content)
}

func TestWebSocketNoDocuments(t *testing.T) {
	ts := newTestServer(&fakeEngine{err: rag.ErrNoDocuments}, &fakeIngestor{}, &fakeStore{})
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "anything"}))

	var msg Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "response", msg.Type)
	assert.Equal(t, rag.NoDocumentsMessage, msg.Content)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "done", msg.Type)
}
