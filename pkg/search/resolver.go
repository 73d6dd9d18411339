package search

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/olivere/elastic/v7"

	"github.com/claimhub/search-service/pkg/claimurl"
	"github.com/claimhub/search-service/pkg/types"
)

// Backend is what resolution needs from the index. Declared here so tests can
// resolve against a fake and sessions can share one live index.
type Backend interface {
	Search(ctx context.Context, source *elastic.SearchSource) ([]*types.ClaimDoc, int64, error)
	GetDocs(ctx context.Context, claimIDs []string) ([]*types.ClaimDoc, error)
}

// resolverCacheSize bounds each of the two resolution caches.
const resolverCacheSize = 1 << 16

// Resolution is the outcome of resolving one URL. Exactly one of Claim and
// Err is set; Err is a carried value (parse failure, lookup miss or a
// censorship block), never a transport failure.
type Resolution struct {
	URL   string
	Claim *types.ClaimDoc
	Err   error
}

// Resolver turns claim URLs into claim documents. It caches short-id and
// winner lookups and the documents themselves; both caches are purged after
// every index sync since any write can change a winner.
type Resolver struct {
	backend      Backend
	channelCache types.Cache[string, string]
	searchCache  types.Cache[string, *types.ClaimDoc]
}

// NewResolver returns a resolver over the given backend.
func NewResolver(backend Backend) (*Resolver, error) {
	channelCache, err := lru.New[string, string](resolverCacheSize)
	if err != nil {
		return nil, err
	}
	searchCache, err := lru.New[string, *types.ClaimDoc](resolverCacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		backend:      backend,
		channelCache: channelCache,
		searchCache:  searchCache,
	}, nil
}

// ClearCaches drops all cached lookups and documents.
func (r *Resolver) ClearCaches() {
	r.channelCache.Purge()
	r.searchCache.Purge()
}

// ResolveURL resolves one URL. Failures specific to the URL (parse failures
// and lookup misses) come back inside the Resolution; only backend failures
// are returned as errors.
func (r *Resolver) ResolveURL(ctx context.Context, raw string) (Resolution, error) {
	parsed, err := claimurl.Parse(raw)
	if err != nil {
		return Resolution{URL: raw, Err: &types.URLParseError{URL: raw, Err: err}}, nil
	}

	channelID, err := r.resolveChannelID(ctx, parsed)
	if err != nil {
		return carried(raw, err)
	}

	claimID := channelID
	if parsed.HasStream() {
		claimID, err = r.resolveStreamID(ctx, parsed, channelID)
		if err != nil {
			return carried(raw, err)
		}
	}

	docs, err := r.GetMany(ctx, claimID)
	if err != nil {
		return Resolution{}, err
	}
	if len(docs) == 0 {
		return Resolution{URL: raw, Err: &types.LookupError{URL: raw, Channel: !parsed.HasStream()}}, nil
	}
	return Resolution{URL: raw, Claim: docs[0]}, nil
}

// carried folds lookup misses into the resolution and passes every other
// error through.
func carried(raw string, err error) (Resolution, error) {
	var lookupErr *types.LookupError
	if errors.As(err, &lookupErr) {
		return Resolution{URL: raw, Err: err}, nil
	}
	return Resolution{}, err
}

// resolveChannelID finds the claim ID of the URL's channel segment. A URL
// without a channel yields an empty ID.
func (r *Resolver) resolveChannelID(ctx context.Context, u *claimurl.URL) (string, error) {
	if !u.HasChannel() {
		return "", nil
	}
	seg := u.Channel
	if len(seg.ClaimID) == fullClaimIDLen {
		return seg.ClaimID, nil
	}

	key := "cid:" + seg.String()
	if id, ok := r.channelCache.Get(key); ok {
		return id, nil
	}

	opts := segmentOptions(seg)
	if segmentOnlyName(seg) {
		controlling := true
		opts.IsControlling = &controlling
	} else {
		opts.OrderBy = []string{"^creation_height"}
	}
	id, err := r.searchOne(ctx, opts)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &types.LookupError{URL: u.String(), Channel: true}
	}
	r.channelCache.Add(key, id)
	return id, nil
}

// resolveStreamID finds the claim ID of the URL's stream segment, scoped to
// channelID when the URL carries a channel. Streams inside a channel must be
// validly signed by it; a bare name resolves to the controlling claim.
func (r *Resolver) resolveStreamID(ctx context.Context, u *claimurl.URL, channelID string) (string, error) {
	seg := u.Stream
	if len(seg.ClaimID) == fullClaimIDLen {
		return seg.ClaimID, nil
	}

	key := channelID + "/" + seg.String()
	if id, ok := r.channelCache.Get(key); ok {
		return id, nil
	}

	opts := segmentOptions(seg)
	switch {
	case channelID != "":
		opts.ChannelID = channelID
		valid := true
		opts.SignatureValid = &valid
		if segmentOnlyName(seg) {
			opts.OrderBy = []string{"effective_amount", "^height"}
		} else {
			opts.OrderBy = []string{"^channel_join"}
		}
	case seg.ClaimID != "":
		opts.OrderBy = []string{"^creation_height"}
	case segmentOnlyName(seg):
		controlling := true
		opts.IsControlling = &controlling
	}
	id, err := r.searchOne(ctx, opts)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &types.LookupError{URL: u.String()}
	}
	r.channelCache.Add(key, id)
	return id, nil
}

// searchOne runs a resolution query and returns the single winning claim ID,
// or empty when nothing matched.
func (r *Resolver) searchOne(ctx context.Context, opts *SearchOptions) (string, error) {
	one := 1
	opts.Limit = &one
	source, err := Compile(opts)
	if err != nil {
		return "", err
	}
	docs, _, err := r.backend.Search(ctx, source)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].ClaimID, nil
}

// GetMany fetches documents by claim ID, serving from cache where possible.
// Results come back in input order; IDs with no document are skipped. Only
// successful fetches are cached.
func (r *Resolver) GetMany(ctx context.Context, claimIDs ...string) ([]*types.ClaimDoc, error) {
	var missing []string
	for _, id := range claimIDs {
		if _, ok := r.searchCache.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		docs, err := r.backend.GetDocs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			r.searchCache.Add(doc.ClaimID, doc)
		}
	}
	out := make([]*types.ClaimDoc, 0, len(claimIDs))
	for _, id := range claimIDs {
		if doc, ok := r.searchCache.Get(id); ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func segmentOptions(seg *claimurl.Segment) *SearchOptions {
	return &SearchOptions{
		Name:        seg.Name,
		ClaimID:     seg.ClaimID,
		AmountOrder: seg.AmountOrder,
	}
}

// segmentOnlyName reports whether the segment carries no qualifier. Sequence
// is parsed but intentionally not a search constraint, so it does not count.
func segmentOnlyName(seg *claimurl.Segment) bool {
	return seg.ClaimID == "" && seg.AmountOrder == 0
}
