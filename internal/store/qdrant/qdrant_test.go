// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package qdrant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-dev/recall/internal/store/qdrant"
)

// fakeQdrant serves just enough of the Qdrant HTTP API for the store.
type fakeQdrant struct {
	mux      *http.ServeMux
	requests []string
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	// Every store starts by ensuring the collection exists.
	f.mux.HandleFunc("PUT /collections/solutions", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return f, srv
}

func newStore(t *testing.T, url string) *qdrant.VectorStore {
	t.Helper()
	v, err := qdrant.New(context.Background(), qdrant.Config{
		URL:        url,
		Collection: "solutions",
		Dimension:  3,
	})
	require.NoError(t, err)
	return v
}

func TestNew_EnsuresCollection(t *testing.T) {
	f, srv := newFakeQdrant(t)
	newStore(t, srv.URL)

	require.NotEmpty(t, f.requests)
	assert.Equal(t, "PUT /collections/solutions", f.requests[0])
}

func TestNew_RequiresURLAndCollection(t *testing.T) {
	_, err := qdrant.New(context.Background(), qdrant.Config{Collection: "solutions"})
	require.Error(t, err)

	_, err = qdrant.New(context.Background(), qdrant.Config{URL: "http://localhost:6333"})
	require.Error(t, err)
}

func TestStore_UpsertsPoint(t *testing.T) {
	f, srv := newFakeQdrant(t)

	var gotPoints []map[string]any
	f.mux.HandleFunc("PUT /collections/solutions/points", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []map[string]any `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPoints = body.Points
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	v := newStore(t, srv.URL)
	err := v.Store(context.Background(), "p1", []float32{1, 0, 0}, map[string]any{"query_text": "alpha"})
	require.NoError(t, err)

	require.Len(t, gotPoints, 1)
	assert.Equal(t, "p1", gotPoints[0]["id"])
	payload, ok := gotPoints[0]["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alpha", payload["query_text"])
}

func TestStore_RejectsDimensionMismatch(t *testing.T) {
	_, srv := newFakeQdrant(t)
	v := newStore(t, srv.URL)

	err := v.Store(context.Background(), "p1", []float32{1, 0}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestSearch_MapsResultsAndThreshold(t *testing.T) {
	f, srv := newFakeQdrant(t)

	var gotRequest map[string]any
	f.mux.HandleFunc("POST /collections/solutions/points/search", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		_, _ = w.Write([]byte(`{"result":[
			{"id":"p1","score":0.92,"payload":{"query_text":"alpha"}},
			{"id":42,"score":0.61,"payload":{}}
		]}`))
	})

	v := newStore(t, srv.URL)
	results, err := v.Search(context.Background(), []float32{1, 0, 0}, 5, 0.4)
	require.NoError(t, err)

	assert.Equal(t, float64(0.4), gotRequest["score_threshold"])
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
	assert.InDelta(t, 0.92, results[0].Score, 1e-9)
	assert.Equal(t, "alpha", results[0].Metadata["query_text"])
	// Integer point ids are normalised to strings.
	assert.Equal(t, "42", results[1].ID)
}

func TestScrollIDs_Paginates(t *testing.T) {
	f, srv := newFakeQdrant(t)

	page := 0
	f.mux.HandleFunc("POST /collections/solutions/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if page == 0 {
			assert.NotContains(t, body, "offset")
			_, _ = w.Write([]byte(`{"result":{"points":[{"id":"a"},{"id":"b"}],"next_page_offset":"b"}}`))
		} else {
			assert.Equal(t, "b", body["offset"])
			_, _ = w.Write([]byte(`{"result":{"points":[{"id":"c"}],"next_page_offset":null}}`))
		}
		page++
	})

	v := newStore(t, srv.URL)
	ids, err := v.ScrollIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 2, page)
}

func TestDelete_SendsIDs(t *testing.T) {
	f, srv := newFakeQdrant(t)

	var gotBody map[string]any
	f.mux.HandleFunc("POST /collections/solutions/points/delete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	v := newStore(t, srv.URL)
	require.NoError(t, v.Delete(context.Background(), []string{"a", "b"}))
	assert.Equal(t, []any{"a", "b"}, gotBody["points"])

	// Empty delete never touches the server.
	before := len(f.requests)
	require.NoError(t, v.Delete(context.Background(), nil))
	assert.Len(t, f.requests, before)
}

func TestSearch_UpstreamError(t *testing.T) {
	f, srv := newFakeQdrant(t)
	f.mux.HandleFunc("POST /collections/solutions/points/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","error":"wrong vector size"}`))
	})

	v := newStore(t, srv.URL)
	_, err := v.Search(context.Background(), []float32{1, 0, 0}, 5, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong vector size")
}
