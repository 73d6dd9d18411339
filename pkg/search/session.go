package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/claimhub/search-service/pkg/telemetry"
	"github.com/claimhub/search-service/pkg/types"
)

// Session dispatches resolve and search queries, applies censorship masking
// and expands the channel and repost references clients need to inflate the
// results.
type Session struct {
	backend  Backend
	resolver *Resolver
}

// NewSession returns a session over the given backend and resolver.
func NewSession(backend Backend, resolver *Resolver) *Session {
	return &Session{backend: backend, resolver: resolver}
}

// ErrUnknownQuery means the query selector named neither resolve nor search.
var ErrUnknownQuery = errors.New("unknown query")

// Result error codes.
const (
	ErrCodeInvalidURL = "invalid_url"
	ErrCodeNotFound   = "not_found"
	ErrCodeBlocked    = "blocked"
)

// ResultError is the wire form of a carried per-result error.
type ResultError struct {
	Code               string `json:"code"`
	Message            string `json:"message"`
	CensoringChannelID string `json:"censoring_channel_id,omitempty"`
}

// Result is one primary result: either a claim document or a carried error.
type Result struct {
	Claim *types.ClaimDoc `json:"claim,omitempty"`
	Error *ResultError    `json:"error,omitempty"`
}

// Outputs is the structured bundle a session query produces: primary results,
// the referenced channels and reposts, pagination metadata and the censorship
// summary. Extra always lists channels before reposts.
type Outputs struct {
	Txos       []Result          `json:"txos"`
	Extra      []*types.ClaimDoc `json:"extra_txos"`
	Offset     int               `json:"offset"`
	Total      int64             `json:"total"`
	Censored   int               `json:"censored"`
	CensoredBy map[string]int    `json:"censored_by,omitempty"`
}

// Query dispatches a query by name. "resolve" takes a JSON list of URLs,
// "search" takes the option map.
func (s *Session) Query(ctx context.Context, name string, payload json.RawMessage) (*Outputs, error) {
	switch name {
	case "resolve":
		var urls []string
		if err := json.Unmarshal(payload, &urls); err != nil {
			return nil, fmt.Errorf("decoding resolve payload: %w", err)
		}
		return s.Resolve(ctx, urls)
	case "search":
		var params map[string]any
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, fmt.Errorf("decoding search payload: %w", err)
		}
		return s.Search(ctx, params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
	}
}

// Resolve resolves each URL in order. Claims subject to a block come back as
// a carried censored error naming the responsible channel, and the censoring
// channels themselves are included in the references.
func (s *Session) Resolve(ctx context.Context, urls []string) (*Outputs, error) {
	ctx, span := telemetry.StartSpan(ctx, "Session.Resolve")
	defer span.End()

	censor := NewCensor(CensorResolve)
	results := make([]Result, 0, len(urls))
	var claims []*types.ClaimDoc
	for _, url := range urls {
		res, err := s.resolver.ResolveURL(ctx, url)
		if err != nil {
			return nil, err
		}
		if res.Claim != nil && censor.Censors(res.Claim) {
			censoredErr := &types.CensoredError{
				URL:                url,
				CensoringChannelID: *res.Claim.CensoringChannelHash,
			}
			results = append(results, Result{Error: resultError(censoredErr)})
			// the masked claim still contributes its channel and repost to
			// the references
			claims = append(claims, res.Claim)
			continue
		}
		if res.Err != nil {
			results = append(results, Result{Error: resultError(res.Err)})
			continue
		}
		claims = append(claims, res.Claim)
		results = append(results, Result{Claim: res.Claim})
	}

	extra, err := s.referencedRows(ctx, claims, censor.Counts())
	if err != nil {
		return nil, err
	}
	return &Outputs{
		Txos:       results,
		Extra:      extra,
		Total:      int64(len(results)),
		Censored:   censor.Censored(),
		CensoredBy: censor.Counts(),
	}, nil
}

// Search compiles the option map and returns a masked page of hits. A channel
// URL constraint that does not resolve yields an empty page. When any hit was
// masked, the same predicate is re-run with censorship excluded and both hit
// lists feed reference expansion, so clients still receive the channels
// responsible for what was withheld.
func (s *Session) Search(ctx context.Context, params map[string]any) (*Outputs, error) {
	ctx, span := telemetry.StartSpan(ctx, "Session.Search")
	defer span.End()

	opts := DecodeOptions(params)

	if opts.Channel != "" {
		res, err := s.resolver.ResolveURL(ctx, opts.Channel)
		if err != nil {
			return nil, err
		}
		if res.Claim == nil {
			return &Outputs{Txos: []Result{}}, nil
		}
		opts.ChannelID = res.Claim.ClaimID
		opts.Channel = ""
	}

	censor := NewCensor(CensorSearch)
	source, err := Compile(opts)
	if err != nil {
		return nil, err
	}
	docs, total, err := s.backend.Search(ctx, source)
	if err != nil {
		return nil, err
	}
	hits := censor.Apply(docs)

	referenced := hits
	if censor.Censored() > 0 {
		span.AddEvent("re-running without censorship for references")
		uncensored := *opts
		uncensored.CensorType = &RangeField{Op: RangeEQ, Value: 0}
		source, err := Compile(&uncensored)
		if err != nil {
			return nil, err
		}
		clean, _, err := s.backend.Search(ctx, source)
		if err != nil {
			return nil, err
		}
		referenced = mergeDocs(hits, clean)
	}

	extra, err := s.referencedRows(ctx, referenced, censor.Counts())
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, doc := range hits {
		results = append(results, Result{Claim: doc})
	}
	return &Outputs{
		Txos:       results,
		Extra:      extra,
		Offset:     opts.Offset,
		Total:      total,
		Censored:   censor.Censored(),
		CensoredBy: censor.Counts(),
	}, nil
}

// referencedRows fetches every channel and repost the given rows reference,
// plus the channels responsible for censoring. Reposts are fetched first so
// their channels are included; the return lists channels before reposts.
func (s *Session) referencedRows(ctx context.Context, rows []*types.ClaimDoc, censorChannels map[string]int) ([]*types.ClaimDoc, error) {
	repostIDs := make(map[string]struct{})
	channelIDs := make(map[string]struct{})
	for _, row := range rows {
		if row.RepostedClaimID != nil {
			repostIDs[*row.RepostedClaimID] = struct{}{}
		}
		if row.ChannelID != nil {
			channelIDs[*row.ChannelID] = struct{}{}
		}
	}
	for id := range censorChannels {
		channelIDs[id] = struct{}{}
	}

	var reposts []*types.ClaimDoc
	if len(repostIDs) > 0 {
		var err error
		reposts, err = s.resolver.GetMany(ctx, sortedKeys(repostIDs)...)
		if err != nil {
			return nil, err
		}
		for _, repost := range reposts {
			if repost.ChannelID != nil {
				channelIDs[*repost.ChannelID] = struct{}{}
			}
		}
	}

	var channels []*types.ClaimDoc
	if len(channelIDs) > 0 {
		var err error
		channels, err = s.resolver.GetMany(ctx, sortedKeys(channelIDs)...)
		if err != nil {
			return nil, err
		}
	}
	return append(channels, reposts...), nil
}

func resultError(err error) *ResultError {
	var censoredErr *types.CensoredError
	var parseErr *types.URLParseError
	var lookupErr *types.LookupError
	switch {
	case errors.As(err, &censoredErr):
		return &ResultError{
			Code:               ErrCodeBlocked,
			Message:            err.Error(),
			CensoringChannelID: censoredErr.CensoringChannelID,
		}
	case errors.As(err, &parseErr):
		return &ResultError{Code: ErrCodeInvalidURL, Message: err.Error()}
	case errors.As(err, &lookupErr):
		return &ResultError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return &ResultError{Code: "error", Message: err.Error()}
}

func mergeDocs(lists ...[]*types.ClaimDoc) []*types.ClaimDoc {
	seen := make(map[string]struct{})
	var merged []*types.ClaimDoc
	for _, list := range lists {
		for _, doc := range list {
			if _, ok := seen[doc.ClaimID]; ok {
				continue
			}
			seen[doc.ClaimID] = struct{}{}
			merged = append(merged, doc)
		}
	}
	return merged
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
