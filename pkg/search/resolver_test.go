package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/require"

	"github.com/claimhub/search-service/pkg/internal/testutil"
	"github.com/claimhub/search-service/pkg/types"
)

// fakeBackend serves canned search pages in order and documents by id,
// recording every call.
type fakeBackend struct {
	searches []string
	pages    [][]*types.ClaimDoc
	docs     map[string]*types.ClaimDoc
	getCalls [][]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: make(map[string]*types.ClaimDoc)}
}

func (f *fakeBackend) addDoc(doc *types.ClaimDoc) *types.ClaimDoc {
	f.docs[doc.ClaimID] = doc
	return doc
}

func (f *fakeBackend) Search(_ context.Context, source *elastic.SearchSource) ([]*types.ClaimDoc, int64, error) {
	body, err := source.Source()
	if err != nil {
		return nil, 0, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	f.searches = append(f.searches, string(data))
	if len(f.pages) == 0 {
		return nil, 0, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, int64(len(page)), nil
}

func (f *fakeBackend) GetDocs(_ context.Context, claimIDs []string) ([]*types.ClaimDoc, error) {
	f.getCalls = append(f.getCalls, claimIDs)
	var out []*types.ClaimDoc
	for _, id := range claimIDs {
		if doc, ok := f.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func namedDoc(name string) *types.ClaimDoc {
	doc := testutil.RandomClaimDoc()
	doc.ClaimName = name
	doc.Normalized = name
	doc.CensorType = types.NotCensored
	doc.CensoringChannelHash = nil
	doc.RepostedClaimID = nil
	doc.ChannelID = nil
	return doc
}

func TestResolveChannelStream(t *testing.T) {
	backend := newFakeBackend()
	channel := backend.addDoc(namedDoc("@alice"))
	stream := backend.addDoc(namedDoc("song"))
	stream.ChannelID = &channel.ClaimID
	backend.pages = [][]*types.ClaimDoc{{channel}, {stream}}

	r, err := NewResolver(backend)
	require.NoError(t, err)

	res, err := r.ResolveURL(context.Background(), "@alice/song")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, stream, res.Claim)

	// the channel lookup resolves the controlling claim
	require.Len(t, backend.searches, 2)
	require.Contains(t, backend.searches[0], `"is_controlling":true`)
	require.Contains(t, backend.searches[0], `"normalized.keyword":"@alice"`)
	// the stream lookup is scoped to the channel and requires a valid signature
	require.Contains(t, backend.searches[1], `"channel_id.keyword":"`+channel.ClaimID+`"`)
	require.Contains(t, backend.searches[1], `"signature_valid":true`)
	require.Contains(t, backend.searches[1], `"effective_amount":{"order":"desc"}`)

	// both lookups are cached
	id, ok := r.channelCache.Get("cid:@alice")
	require.True(t, ok)
	require.Equal(t, channel.ClaimID, id)
	id, ok = r.channelCache.Get(channel.ClaimID + "/song")
	require.True(t, ok)
	require.Equal(t, stream.ClaimID, id)
	cached, ok := r.searchCache.Get(stream.ClaimID)
	require.True(t, ok)
	require.Equal(t, stream, cached)
}

func TestResolveChannelOnly(t *testing.T) {
	backend := newFakeBackend()
	channel := backend.addDoc(namedDoc("@alice"))
	backend.pages = [][]*types.ClaimDoc{{channel}}

	r, err := NewResolver(backend)
	require.NoError(t, err)

	res, err := r.ResolveURL(context.Background(), "@alice")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, channel, res.Claim)
	require.Len(t, backend.searches, 1)

	_, ok := r.channelCache.Get("cid:@alice")
	require.True(t, ok)
}

func TestResolveFullClaimIDSkipsSearch(t *testing.T) {
	backend := newFakeBackend()
	stream := backend.addDoc(namedDoc("song"))

	r, err := NewResolver(backend)
	require.NoError(t, err)

	res, err := r.ResolveURL(context.Background(), "song#"+stream.ClaimID)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, stream, res.Claim)
	require.Empty(t, backend.searches)
	require.Equal(t, [][]string{{stream.ClaimID}}, backend.getCalls)
}

func TestResolveParseError(t *testing.T) {
	backend := newFakeBackend()
	r, err := NewResolver(backend)
	require.NoError(t, err)

	res, err := r.ResolveURL(context.Background(), "@@not@a@url")
	require.NoError(t, err)
	require.Nil(t, res.Claim)
	var parseErr *types.URLParseError
	require.ErrorAs(t, res.Err, &parseErr)
}

func TestResolveChannelNotFound(t *testing.T) {
	backend := newFakeBackend()
	r, err := NewResolver(backend)
	require.NoError(t, err)

	res, err := r.ResolveURL(context.Background(), "@ghost/song")
	require.NoError(t, err)
	require.Nil(t, res.Claim)
	var lookupErr *types.LookupError
	require.ErrorAs(t, res.Err, &lookupErr)
	require.True(t, lookupErr.Channel)
	// lookup misses are not cached
	_, ok := r.channelCache.Get("cid:@ghost")
	require.False(t, ok)
}

func TestResolveStreamNotFound(t *testing.T) {
	backend := newFakeBackend()
	channel := backend.addDoc(namedDoc("@alice"))
	backend.pages = [][]*types.ClaimDoc{{channel}, {}}

	r, err := NewResolver(backend)
	require.NoError(t, err)

	res, err := r.ResolveURL(context.Background(), "@alice/ghost")
	require.NoError(t, err)
	var lookupErr *types.LookupError
	require.ErrorAs(t, res.Err, &lookupErr)
	require.False(t, lookupErr.Channel)
}

func TestResolvePartialChannelID(t *testing.T) {
	backend := newFakeBackend()
	channel := backend.addDoc(namedDoc("@alice"))
	backend.pages = [][]*types.ClaimDoc{{channel}}

	r, err := NewResolver(backend)
	require.NoError(t, err)

	res, err := r.ResolveURL(context.Background(), "@alice#"+channel.ClaimID[:4])
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, channel, res.Claim)
	// a partial id orders candidates oldest first instead of by control
	require.Contains(t, backend.searches[0], `"prefix":{"claim_id":"`+channel.ClaimID[:4]+`"}`)
	require.Contains(t, backend.searches[0], `"creation_height":{"order":"asc"}`)
	require.NotContains(t, backend.searches[0], `"is_controlling"`)
}

func TestGetManyOrderAndCaching(t *testing.T) {
	backend := newFakeBackend()
	a := backend.addDoc(namedDoc("a"))
	b := backend.addDoc(namedDoc("b"))

	r, err := NewResolver(backend)
	require.NoError(t, err)

	docs, err := r.GetMany(context.Background(), b.ClaimID, "missing", a.ClaimID)
	require.NoError(t, err)
	require.Equal(t, []*types.ClaimDoc{b, a}, docs)

	// second call is served entirely from cache, except the known miss
	docs, err = r.GetMany(context.Background(), b.ClaimID, a.ClaimID)
	require.NoError(t, err)
	require.Equal(t, []*types.ClaimDoc{b, a}, docs)
	require.Len(t, backend.getCalls, 1)
}

func TestClearCaches(t *testing.T) {
	backend := newFakeBackend()
	a := backend.addDoc(namedDoc("a"))

	r, err := NewResolver(backend)
	require.NoError(t, err)
	_, err = r.GetMany(context.Background(), a.ClaimID)
	require.NoError(t, err)
	r.ClearCaches()

	_, err = r.GetMany(context.Background(), a.ClaimID)
	require.NoError(t, err)
	require.Len(t, backend.getCalls, 2)
}
