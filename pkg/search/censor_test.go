package search

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/require"

	"github.com/claimhub/search-service/pkg/internal/testutil"
	"github.com/claimhub/search-service/pkg/types"
)

func newCensorTestIndex(t *testing.T) (*Index, *fakeES) {
	t.Helper()
	es := &fakeES{}
	srv := httptest.NewServer(es.handler())
	t.Cleanup(srv.Close)

	client, err := elastic.NewSimpleClient(elastic.SetURL(srv.URL))
	require.NoError(t, err)
	return NewIndex(client, ""), es
}

func censoredDoc(level byte, channelID string) *types.ClaimDoc {
	doc := testutil.RandomClaimDoc()
	doc.CensorType = level
	doc.CensoringChannelHash = &channelID
	return doc
}

func TestCensorLevels(t *testing.T) {
	channelID := testutil.RandomClaimID()
	clean := namedDoc("clean")
	filtered := censoredDoc(types.CensorFilter, channelID)
	blocked := censoredDoc(types.CensorBlock, channelID)

	searchCensor := NewCensor(CensorSearch)
	kept := searchCensor.Apply([]*types.ClaimDoc{clean, filtered, blocked})
	require.Equal(t, []*types.ClaimDoc{clean}, kept)
	require.Equal(t, 2, searchCensor.Censored())
	require.Equal(t, map[string]int{channelID: 2}, searchCensor.Counts())

	resolveCensor := NewCensor(CensorResolve)
	kept = resolveCensor.Apply([]*types.ClaimDoc{clean, filtered, blocked})
	require.Equal(t, []*types.ClaimDoc{clean, filtered}, kept)
	require.Equal(t, 1, resolveCensor.Censored())
}

func TestCensorRequiresChannel(t *testing.T) {
	doc := testutil.RandomClaimDoc()
	doc.CensorType = types.CensorBlock
	doc.CensoringChannelHash = nil

	censor := NewCensor(CensorResolve)
	require.False(t, censor.Censors(doc))
	require.Zero(t, censor.Censored())
}

func TestCensorUpdateStreams(t *testing.T) {
	claimID := testutil.RandomClaimID()
	censoringID := testutil.RandomClaimID()

	query, script, err := censorUpdate(CensorResolve, map[string]string{claimID: censoringID}, false)
	require.NoError(t, err)

	querySrc, err := query.Source()
	require.NoError(t, err)
	queryJSON, err := json.Marshal(querySrc)
	require.NoError(t, err)
	require.Contains(t, string(queryJSON), `"claim_id.keyword":["`+claimID+`"]`)
	require.Contains(t, string(queryJSON), `"censor_type":{`)
	require.Contains(t, string(queryJSON), `"include_upper":false`)

	scriptSrc, err := script.Source()
	require.NoError(t, err)
	scriptJSON, err := json.Marshal(scriptSrc)
	require.NoError(t, err)
	require.Contains(t, string(scriptJSON), "ctx._source.censor_type=2")
	require.Contains(t, string(scriptJSON), "params[ctx._source.claim_id]")
	require.Contains(t, string(scriptJSON), `"`+claimID+`":"`+censoringID+`"`)
	require.Contains(t, string(scriptJSON), `"lang":"painless"`)
}

func TestCensorUpdateChannels(t *testing.T) {
	channelID := testutil.RandomClaimID()
	censoringID := testutil.RandomClaimID()

	query, script, err := censorUpdate(CensorSearch, map[string]string{channelID: censoringID}, true)
	require.NoError(t, err)

	querySrc, err := query.Source()
	require.NoError(t, err)
	queryJSON, err := json.Marshal(querySrc)
	require.NoError(t, err)
	require.Contains(t, string(queryJSON), `"channel_id.keyword":["`+channelID+`"]`)

	scriptSrc, err := script.Source()
	require.NoError(t, err)
	scriptJSON, err := json.Marshal(scriptSrc)
	require.NoError(t, err)
	require.Contains(t, string(scriptJSON), "ctx._source.censor_type=1")
	require.Contains(t, string(scriptJSON), "params[ctx._source.channel_id]")
}

func TestApplyFiltersChannelProtocol(t *testing.T) {
	index, es := newCensorTestIndex(t)
	channelID := testutil.RandomClaimID()
	censoringID := testutil.RandomClaimID()

	blocked := map[string]string{channelID: censoringID}
	require.NoError(t, index.ApplyFilters(context.Background(), nil, nil, nil, blocked))

	// a channel list is stamped in two passes, each made visible before the
	// next so the level gate holds
	require.Equal(t, []string{"update", "refresh", "update", "refresh"}, es.calls)
	require.Len(t, es.updates, 2)
	require.Contains(t, es.updates[0], `"claim_id.keyword":["`+channelID+`"]`)
	require.Contains(t, es.updates[0], "params[ctx._source.claim_id]")
	require.Contains(t, es.updates[1], `"channel_id.keyword":["`+channelID+`"]`)
	require.Contains(t, es.updates[1], "params[ctx._source.channel_id]")
	for _, update := range es.updates {
		require.Contains(t, update, "ctx._source.censor_type=2")
	}
}

func TestApplyFiltersFilterBeforeBlock(t *testing.T) {
	index, es := newCensorTestIndex(t)
	censoringID := testutil.RandomClaimID()

	filtered := map[string]string{testutil.RandomClaimID(): censoringID}
	blocked := map[string]string{testutil.RandomClaimID(): censoringID}
	require.NoError(t, index.ApplyFilters(context.Background(), filtered, nil, blocked, nil))

	require.Equal(t, []string{"update", "refresh", "update", "refresh"}, es.calls)
	require.Len(t, es.updates, 2)
	require.Contains(t, es.updates[0], "ctx._source.censor_type=1")
	require.Contains(t, es.updates[1], "ctx._source.censor_type=2")
}

func TestApplyFiltersEmptyListsNoCalls(t *testing.T) {
	index, es := newCensorTestIndex(t)
	require.NoError(t, index.ApplyFilters(context.Background(), nil, nil, nil, nil))
	require.Empty(t, es.calls)
}
