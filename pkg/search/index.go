// Package search implements the claim search index: document codec, query
// compiler, index maintenance, URL resolution and censorship filtering.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/olivere/elastic/v7"

	"github.com/claimhub/search-service/pkg/types"
)

var log = logging.Logger("search")

// indexSettings is the schema applied when the index is first created. The
// default analyzer splits on whitespace so claim names keep their punctuation,
// and refresh is manual: the writer refreshes explicitly around each sync.
var indexSettings = map[string]any{
	"settings": map[string]any{
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"default": map[string]any{
					"tokenizer": "whitespace",
					"filter":    []string{"lowercase", "porter_stem"},
				},
			},
		},
		"index": map[string]any{
			"refresh_interval":   -1,
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"claim_id": map[string]any{
				"type": "text",
				"fields": map[string]any{
					"keyword": map[string]any{
						"type":         "keyword",
						"ignore_above": 256,
					},
				},
				"index_prefixes": map[string]any{
					"min_chars": 1,
					"max_chars": 10,
				},
			},
			"height":         map[string]any{"type": "integer"},
			"claim_type":     map[string]any{"type": "byte"},
			"censor_type":    map[string]any{"type": "byte"},
			"trending_mixed": map[string]any{"type": "float"},
		},
	},
}

// Index wraps the claims index of an elasticsearch cluster.
type Index struct {
	client *elastic.Client
	name   string
}

// NewIndex returns an index named by prefixing "claims" with the given
// prefix, so multiple deployments can share a cluster.
func NewIndex(client *elastic.Client, prefix string) *Index {
	return &Index{client: client, name: prefix + "claims"}
}

// Name returns the full index name.
func (i *Index) Name() string {
	return i.name
}

// WaitReady blocks until the cluster reports at least yellow health, retrying
// every second until the context cancels.
func (i *Index) WaitReady(ctx context.Context) error {
	for {
		_, err := i.client.ClusterHealth().WaitForYellowStatus().Timeout("30s").Do(ctx)
		if err == nil {
			return nil
		}
		log.Warnf("cluster not ready: %s", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// EnsureIndex creates the claims index with its settings and mappings.
// An index that already exists is left untouched.
func (i *Index) EnsureIndex(ctx context.Context) error {
	_, err := i.client.CreateIndex(i.name).BodyJson(indexSettings).Do(ctx)
	if err != nil && !elastic.IsStatusCode(err, http.StatusBadRequest) {
		return fmt.Errorf("creating index %s: %w", i.name, err)
	}
	return nil
}

// DeleteIndex removes the claims index and everything in it.
func (i *Index) DeleteIndex(ctx context.Context) error {
	_, err := i.client.DeleteIndex(i.name).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return fmt.Errorf("deleting index %s: %w", i.name, err)
	}
	return nil
}

// Refresh makes all writes so far visible to search.
func (i *Index) Refresh(ctx context.Context) error {
	_, err := i.client.Refresh(i.name).Do(ctx)
	return err
}

// Flush commits the transaction log to disk.
func (i *Index) Flush(ctx context.Context) error {
	_, err := i.client.Flush(i.name).Do(ctx)
	return err
}

// Search executes a compiled source against the index, returning the matching
// documents and the total hit count. A missing index yields an empty page
// rather than an error so a fresh deployment serves queries immediately.
func (i *Index) Search(ctx context.Context, source *elastic.SearchSource) ([]*types.ClaimDoc, int64, error) {
	res, err := i.client.Search(i.name).SearchSource(source).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("searching %s: %w", i.name, err)
	}
	docs, err := expandHits(res.Hits.Hits)
	if err != nil {
		return nil, 0, err
	}
	return docs, res.TotalHits(), nil
}

// expandHits decodes a page of hits. When the page was collapsed per channel
// the real documents live in inner hits, so a page containing any inner hits
// is replaced by the union of them.
func expandHits(hits []*elastic.SearchHit) ([]*types.ClaimDoc, error) {
	var inner []*elastic.SearchHit
	docs := make([]*types.ClaimDoc, 0, len(hits))
	for _, hit := range hits {
		if len(hit.InnerHits) > 0 {
			for _, innerHit := range hit.InnerHits {
				if innerHit.Hits != nil {
					inner = append(inner, innerHit.Hits.Hits...)
				}
			}
			continue
		}
		var doc types.ClaimDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decoding hit: %w", err)
		}
		docs = append(docs, &doc)
	}
	if len(inner) > 0 {
		return expandHits(inner)
	}
	return docs, nil
}

// GetDocs fetches documents by claim ID. IDs with no document are skipped, so
// the result can be shorter than the input.
func (i *Index) GetDocs(ctx context.Context, claimIDs []string) ([]*types.ClaimDoc, error) {
	if len(claimIDs) == 0 {
		return nil, nil
	}
	mget := i.client.Mget()
	for _, id := range claimIDs {
		mget = mget.Add(elastic.NewMultiGetItem().
			Index(i.name).
			Id(id).
			FetchSource(elastic.NewFetchSourceContext(true).Exclude("description", "title")))
	}
	res, err := mget.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %d docs: %w", len(claimIDs), err)
	}
	docs := make([]*types.ClaimDoc, 0, len(res.Docs))
	for _, item := range res.Docs {
		if !item.Found {
			continue
		}
		var doc types.ClaimDoc
		if err := json.Unmarshal(item.Source, &doc); err != nil {
			return nil, fmt.Errorf("decoding doc %s: %w", item.Id, err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}
