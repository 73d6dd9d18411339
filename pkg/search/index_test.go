package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/require"
)

func TestExpandHitsFlattensCollapse(t *testing.T) {
	inner := []*elastic.SearchHit{
		{Source: json.RawMessage(`{"claim_id":"aaaa"}`)},
		{Source: json.RawMessage(`{"claim_id":"bbbb"}`)},
	}
	collapsed := &elastic.SearchHit{
		Source: json.RawMessage(`{"claim_id":"outer"}`),
		InnerHits: map[string]*elastic.SearchHitInnerHits{
			"channel_id.keyword": {Hits: &elastic.SearchHits{Hits: inner}},
		},
	}

	docs, err := expandHits([]*elastic.SearchHit{collapsed})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "aaaa", docs[0].ClaimID)
	require.Equal(t, "bbbb", docs[1].ClaimID)
}

func TestExpandHitsPlainPage(t *testing.T) {
	docs, err := expandHits([]*elastic.SearchHit{
		{Source: json.RawMessage(`{"claim_id":"cccc"}`)},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "cccc", docs[0].ClaimID)

	_, err = expandHits([]*elastic.SearchHit{{Source: json.RawMessage(`{`)}})
	require.Error(t, err)
}

func newTestIndex(t *testing.T, handler http.Handler) *Index {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := elastic.NewSimpleClient(elastic.SetURL(srv.URL))
	require.NoError(t, err)
	return NewIndex(client, "test_")
}

func TestSearchMissingIndexIsEmptyPage(t *testing.T) {
	index := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`)
	}))

	docs, total, err := index.Search(context.Background(), elastic.NewSearchSource())
	require.NoError(t, err)
	require.Empty(t, docs)
	require.Zero(t, total)
}

func TestEnsureIndexAlreadyExists(t *testing.T) {
	index := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"resource_already_exists_exception","reason":"index exists"},"status":400}`)
	}))

	require.NoError(t, index.EnsureIndex(context.Background()))
}

func TestIndexName(t *testing.T) {
	index := newTestIndex(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	require.Equal(t, "test_claims", index.Name())
	require.True(t, strings.HasSuffix(index.Name(), "claims"))
}
