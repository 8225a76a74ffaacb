package workspace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(Config{BaseURL: srv.URL, Token: "tok", MaxRetries: 2}, zap.NewNop())
	return c, srv
}

func TestFetchPage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/pages/p1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		_, _ = w.Write([]byte(`{
			"id": "p1",
			"properties": {
				"Name": {"type": "title", "title": [{"type": "text", "text": {"content": "Hello"}}]},
				"Status": {"type": "status", "status": {"name": "Queued"}}
			}
		}`))
	}))

	page, err := c.FetchPage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", page.ID)
	assert.Equal(t, "Hello", PlainText(page.Properties["Name"].Title))
	assert.Equal(t, "Queued", page.Properties["Status"].Status.Name)
}

func TestFetchDocumentPaginatesAndRenders(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/pages/p1":
			_, _ = w.Write([]byte(`{"id":"p1","properties":{"title":{"type":"title","title":[{"type":"text","text":{"content":"Doc"}}]}}}`))
		case r.URL.Path == "/v1/blocks/p1/children" && r.URL.Query().Get("start_cursor") == "":
			_, _ = w.Write([]byte(`{
				"results": [
					{"type":"heading_1","heading_1":{"rich_text":[{"type":"text","text":{"content":"Intro"}}]}},
					{"type":"paragraph","paragraph":{"rich_text":[{"type":"text","text":{"content":"first page"}}]}}
				],
				"has_more": true,
				"next_cursor": "c2"
			}`))
		case r.URL.Path == "/v1/blocks/p1/children" && r.URL.Query().Get("start_cursor") == "c2":
			_, _ = w.Write([]byte(`{
				"results": [
					{"type":"bulleted_list_item","bulleted_list_item":{"rich_text":[{"type":"text","text":{"content":"point"}}]}},
					{"type":"numbered_list_item","numbered_list_item":{"rich_text":[{"type":"text","text":{"content":"step"}}]}}
				],
				"has_more": false
			}`))
		default:
			t.Fatalf("unexpected request %s", r.URL)
		}
	}))

	doc, err := c.FetchDocument(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Doc", doc.Title)
	assert.Contains(t, doc.Content, "# Intro")
	assert.Contains(t, doc.Content, "first page")
	assert.Contains(t, doc.Content, "- point")
	assert.Contains(t, doc.Content, "1. step")
}

func TestDoRetriesOnRateLimit(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","properties":{}}`))
	}))

	_, err := c.FetchPage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoSurfacesAPIError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"object_not_found","message":"Could not find page"}`))
	}))

	_, err := c.FetchPage(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not find page")
}

func TestAppendBlocksRejectsOversizedBatch(t *testing.T) {
	c := NewHTTPClient(Config{BaseURL: "http://unreachable.invalid"}, zap.NewNop())

	blocks := make([]Block, AppendBatchCeiling+1)
	for i := range blocks {
		blocks[i] = Paragraph("x")
	}
	err := c.AppendBlocks(context.Background(), "p1", blocks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch ceiling")
}

func TestAppendBlocksSendsChildren(t *testing.T) {
	var captured struct {
		Children []Block `json:"children"`
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/blocks/p1/children", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{}`))
	}))

	require.NoError(t, c.AppendBlocks(context.Background(), "p1", []Block{Paragraph("hello")}))
	require.Len(t, captured.Children, 1)
	assert.Equal(t, "paragraph", captured.Children[0].Type)
}

func TestUpdateProperties(t *testing.T) {
	var captured map[string]map[string]Property
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/pages/p1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{}`))
	}))

	props := map[string]Property{
		"Status": {Status: &SelectName{Name: "Done"}},
	}
	require.NoError(t, c.UpdateProperties(context.Background(), "p1", props))
	assert.Equal(t, "Done", captured["properties"]["Status"].Status.Name)
}

func TestPageTitleFallback(t *testing.T) {
	page := &Page{Properties: map[string]Property{
		"Anything": {Type: "title", Title: Text("Renamed Title")},
	}}
	assert.Equal(t, "Renamed Title", pageTitle(page))

	assert.Equal(t, "Untitled", pageTitle(&Page{Properties: map[string]Property{}}))
}
