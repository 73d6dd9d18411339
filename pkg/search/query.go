package search

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/olivere/elastic/v7"

	"github.com/claimhub/search-service/pkg/types"
)

// textFields are indexed as analyzed text with a raw `.keyword` subfield.
// Exact term clauses and ordering go against the subfield; the root field is
// reserved for analysis.
var textFields = map[string]bool{
	"author":            true,
	"canonical_url":     true,
	"channel_id":        true,
	"claim_name":        true,
	"description":       true,
	"claim_id":          true,
	"media_type":        true,
	"normalized":        true,
	"public_key_bytes":  true,
	"public_key_hash":   true,
	"short_url":         true,
	"signature":         true,
	"signature_digest":  true,
	"stream_type":       true,
	"title":             true,
	"tx_id":             true,
	"fee_currency":      true,
	"reposted_claim_id": true,
	"tags":              true,
}

var orderReplacements = map[string]string{
	"name":       "normalized",
	"txid":       "tx_id",
	"claim_hash": "_id",
}

const fullClaimIDLen = 40

// Compile translates the option set into a backend search source. It is pure:
// compiling the same options twice yields equal sources, and the source always
// excludes description and title from returned documents.
func Compile(opts *SearchOptions) (*elastic.SearchSource, error) {
	if opts.AmountOrder > 0 {
		rewritten := *opts
		one := 1
		rewritten.Limit = &one
		rewritten.OrderBy = []string{"effective_amount"}
		rewritten.Offset = opts.AmountOrder - 1
		rewritten.AmountOrder = 0
		opts = &rewritten
	}

	query, err := compileQuery(opts)
	if err != nil {
		return nil, err
	}

	source := elastic.NewSearchSource().
		Query(query).
		FetchSourceContext(elastic.NewFetchSourceContext(true).Exclude("description", "title"))

	if opts.Limit != nil {
		source = source.Size(*opts.Limit)
	}
	if opts.Offset > 0 {
		source = source.From(opts.Offset)
	}

	sorters := compileSort(opts.OrderBy)
	if len(sorters) > 0 {
		source = source.SortBy(sorters...)
	}

	if opts.LimitClaimsPerChannel > 0 {
		inner := elastic.NewInnerHit().
			Name("channel_id.keyword").
			Size(opts.LimitClaimsPerChannel)
		if len(sorters) > 0 {
			inner = inner.SortBy(sorters...)
		}
		source = source.Collapse(elastic.NewCollapseBuilder("channel_id.keyword").InnerHit(inner))
	}

	return source, nil
}

func compileQuery(opts *SearchOptions) (*elastic.BoolQuery, error) {
	q := elastic.NewBoolQuery()

	if opts.Name != "" {
		q.Must(elastic.NewTermQuery("normalized.keyword", normalizeName(opts.Name)))
	}

	if opts.ClaimID != "" {
		if len(opts.ClaimID) < fullClaimIDLen {
			q.Must(elastic.NewPrefixQuery("claim_id", opts.ClaimID))
		} else {
			q.Must(elastic.NewTermQuery("claim_id.keyword", opts.ClaimID))
		}
	}
	if len(opts.ClaimIDs) > 0 {
		q.Must(elastic.NewTermsQuery("claim_id.keyword", toAny(opts.ClaimIDs)...))
	}
	for _, id := range opts.NotClaimID {
		q.MustNot(elastic.NewTermQuery("claim_id.keyword", id))
	}

	if opts.ChannelID != "" {
		q.Must(elastic.NewTermQuery("channel_id.keyword", opts.ChannelID))
	}
	if len(opts.ChannelIDs) > 0 {
		q.Must(elastic.NewTermsQuery("channel_id.keyword", toAny(opts.ChannelIDs)...))
	}
	// excluded channels are filtered both as signers and as claims themselves
	for _, id := range opts.NotChannelIDs {
		q.MustNot(elastic.NewTermQuery("channel_id.keyword", id))
		q.MustNot(elastic.NewTermQuery("_id", id))
	}

	if opts.RepostedClaimID != "" {
		q.Must(elastic.NewTermQuery("reposted_claim_id.keyword", opts.RepostedClaimID))
	}

	if opts.PublicKeyID != "" {
		decoded := base58.Decode(opts.PublicKeyID)
		if len(decoded) < 21 {
			return nil, fmt.Errorf("invalid public key id %q", opts.PublicKeyID)
		}
		q.Must(elastic.NewTermQuery("public_key_hash.keyword", hex.EncodeToString(decoded[1:21])))
	}
	if opts.PublicKeyHash != "" {
		q.Must(elastic.NewTermQuery("public_key_hash.keyword", opts.PublicKeyHash))
	}

	if len(opts.ClaimType) > 0 {
		codes, err := typeCodes(opts.ClaimType, types.ClaimTypes, "claim")
		if err != nil {
			return nil, err
		}
		if len(codes) == 1 {
			q.Must(elastic.NewTermQuery("claim_type", codes[0]))
		} else {
			q.Must(elastic.NewTermsQuery("claim_type", codes...))
		}
	}
	if len(opts.StreamTypes) > 0 {
		codes, err := typeCodes(opts.StreamTypes, types.StreamTypes, "stream")
		if err != nil {
			return nil, err
		}
		q.Must(elastic.NewTermsQuery("stream_type", codes...))
	}

	if opts.MediaType != "" {
		q.Must(elastic.NewTermQuery("media_type.keyword", opts.MediaType))
	}
	if len(opts.MediaTypes) > 0 {
		q.Must(elastic.NewTermsQuery("media_type.keyword", toAny(opts.MediaTypes)...))
	}

	if tags := cleanTags(opts.AnyTags); len(tags) > 0 {
		q.Must(elastic.NewTermsQuery("tags.keyword", toAny(tags)...))
	}
	for _, tag := range cleanTags(opts.AllTags) {
		q.Must(elastic.NewTermQuery("tags.keyword", tag))
	}
	for _, tag := range cleanTags(opts.NotTags) {
		q.MustNot(elastic.NewTermQuery("tags.keyword", tag))
	}
	if langs := cleanTags(opts.AnyLanguages); len(langs) > 0 {
		q.Must(elastic.NewTermsQuery("languages", toAny(langs)...))
	}
	for _, lang := range opts.AllLanguages {
		q.Must(elastic.NewTermQuery("languages", lang))
	}

	if opts.ClaimName != "" {
		q.Must(elastic.NewTermQuery("claim_name.keyword", opts.ClaimName))
	}
	if opts.ShortURL != "" {
		q.Must(elastic.NewTermQuery("short_url.keyword", opts.ShortURL))
	}
	if opts.CanonicalURL != "" {
		q.Must(elastic.NewTermQuery("canonical_url.keyword", opts.CanonicalURL))
	}
	if opts.Title != "" {
		q.Must(elastic.NewTermQuery("title.keyword", opts.Title))
	}
	if opts.Author != "" {
		q.Must(elastic.NewTermQuery("author.keyword", opts.Author))
	}
	if opts.Description != "" {
		q.Must(elastic.NewTermQuery("description.keyword", opts.Description))
	}
	if opts.FeeCurrency != "" {
		q.Must(elastic.NewTermQuery("fee_currency.keyword", opts.FeeCurrency))
	}
	if opts.TxID != "" {
		q.Must(elastic.NewTermQuery("tx_id.keyword", opts.TxID))
	}
	if opts.TxNout != nil {
		q.Must(elastic.NewTermQuery("tx_nout", *opts.TxNout))
	}

	if opts.IsControlling != nil && *opts.IsControlling {
		q.Must(elastic.NewTermQuery("is_controlling", true))
	}

	rangeClause(q, "height", opts.Height)
	rangeClause(q, "creation_height", opts.CreationHeight)
	rangeClause(q, "activation_height", opts.ActivationHeight)
	rangeClause(q, "expiration_height", opts.ExpirationHeight)
	rangeClause(q, "timestamp", opts.Timestamp)
	rangeClause(q, "creation_timestamp", opts.CreationTimestamp)
	rangeClause(q, "release_time", opts.ReleaseTime)
	rangeClause(q, "duration", opts.Duration)
	rangeClause(q, "fee_amount", opts.FeeAmount)
	rangeClause(q, "tx_position", opts.TxPosition)
	rangeClause(q, "channel_join", opts.ChannelJoin)
	rangeClause(q, "reposted", opts.Reposted)
	rangeClause(q, "amount", opts.Amount)
	rangeClause(q, "effective_amount", opts.EffectiveAmount)
	rangeClause(q, "support_amount", opts.SupportAmount)
	rangeClause(q, "trending_group", opts.TrendingGroup)
	rangeClause(q, "trending_mixed", opts.TrendingMixed)
	rangeClause(q, "trending_local", opts.TrendingLocal)
	rangeClause(q, "trending_global", opts.TrendingGlobal)
	rangeClause(q, "censor_type", opts.CensorType)

	if opts.HasChannelSignature {
		q.Must(elastic.NewExistsQuery("signature_digest"))
		if opts.SignatureValid != nil {
			q.Must(elastic.NewTermQuery("signature_valid", *opts.SignatureValid))
		}
	} else if opts.SignatureValid != nil {
		// either not signed at all, or signed with the requested validity
		q.MinimumNumberShouldMatch(1)
		q.Should(elastic.NewBoolQuery().MustNot(elastic.NewExistsQuery("signature_digest")))
		q.Should(elastic.NewTermQuery("signature_valid", *opts.SignatureValid))
	}

	if opts.Text != "" {
		q.Must(elastic.NewSimpleQueryStringQuery(opts.Text).
			FieldWithBoost("claim_name", 4).
			FieldWithBoost("channel_name", 8).
			FieldWithBoost("title", 1).
			FieldWithBoost("description", 0.5).
			FieldWithBoost("author", 1).
			FieldWithBoost("tags", 0.5))
	}

	return q, nil
}

func rangeClause(q *elastic.BoolQuery, field string, rf *RangeField) {
	if rf == nil {
		return
	}
	value := rf.Value
	if field == "fee_amount" {
		value = scaleFee(value)
	}
	if rf.Op == RangeEQ {
		q.Must(elastic.NewTermQuery(field, value))
		return
	}
	r := elastic.NewRangeQuery(field)
	switch rf.Op {
	case RangeLT:
		r = r.Lt(value)
	case RangeLTE:
		r = r.Lte(value)
	case RangeGT:
		r = r.Gt(value)
	case RangeGTE:
		r = r.Gte(value)
	}
	q.Must(r)
}

// scaleFee converts a user-facing decimal fee into the integer thousandths
// stored in the index. Non-numeric strings pass through unchanged so the
// backend surfaces the error.
func scaleFee(v any) any {
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return val
		}
		return int64(math.Round(f * 1000))
	case float64:
		return int64(math.Round(val * 1000))
	case float32:
		return int64(math.Round(float64(val) * 1000))
	case int:
		return int64(val) * 1000
	case int64:
		return val * 1000
	case uint64:
		return val * 1000
	}
	return v
}

func typeCodes(names []string, codes map[string]byte, kind string) ([]any, error) {
	out := make([]any, 0, len(names))
	for _, name := range names {
		code, ok := codes[name]
		if !ok {
			return nil, fmt.Errorf("unknown %s type %q", kind, name)
		}
		out = append(out, int(code))
	}
	return out, nil
}

func compileSort(orderBy []string) []elastic.Sorter {
	var sorters []elastic.Sorter
	for _, field := range orderBy {
		// trending_group components sort flat under variable decay, skip them
		if strings.Contains(field, "trending_group") {
			continue
		}
		asc := strings.HasPrefix(field, "^")
		field = strings.TrimPrefix(field, "^")
		if repl, ok := orderReplacements[field]; ok {
			field = repl
		}
		if textFields[field] {
			field += ".keyword"
		}
		sort := elastic.NewFieldSort(field)
		if asc {
			sort = sort.Asc()
		} else {
			sort = sort.Desc()
		}
		sorters = append(sorters, sort)
	}
	return sorters
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
