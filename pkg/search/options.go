package search

import (
	"strings"
)

// RangeOp is a comparison operator for range-filterable fields.
type RangeOp int

const (
	RangeEQ RangeOp = iota
	RangeLT
	RangeLTE
	RangeGT
	RangeGTE
)

// RangeField is an explicit {op, value} pair parsed from the caller's
// operator-prefix convention at the boundary, keeping the compiler pure.
// Value may be a raw string when the content after the operator was not
// numeric; the backend surfaces the error in that case.
type RangeField struct {
	Op    RangeOp
	Value any
}

var rangeOps = []struct {
	prefix string
	op     RangeOp
}{
	// two-character operators must be tried first
	{"<=", RangeLTE},
	{">=", RangeGTE},
	{"<", RangeLT},
	{">", RangeGT},
}

// ParseRange converts a caller-supplied range value into a RangeField.
// Strings may carry an operator prefix (`<`, `<=`, `>`, `>=`); anything else
// is an equality match.
func ParseRange(value any) *RangeField {
	if s, ok := value.(string); ok {
		for _, candidate := range rangeOps {
			if strings.HasPrefix(s, candidate.prefix) {
				return &RangeField{Op: candidate.op, Value: s[len(candidate.prefix):]}
			}
		}
	}
	return &RangeField{Op: RangeEQ, Value: value}
}

// SearchOptions enumerates every option the query compiler recognizes. The
// dynamic option map accepted over the wire is converted by DecodeOptions;
// the resolver builds it directly.
type SearchOptions struct {
	// Name is normalized before matching against the `normalized` field.
	Name string
	// ClaimID shorter than a full 40 hex characters compiles to a prefix
	// match; empty is omitted.
	ClaimID         string
	ClaimIDs        []string
	NotClaimID      []string
	ChannelID       string
	ChannelIDs      []string
	NotChannelIDs   []string
	RepostedClaimID string

	// PublicKeyID is base58-check encoded; it is decoded and re-keyed to
	// public_key_hash.
	PublicKeyID   string
	PublicKeyHash string

	ClaimType   []string
	StreamTypes []string
	MediaType   string
	MediaTypes  []string

	AnyTags      []string
	AllTags      []string
	NotTags      []string
	AnyLanguages []string
	AllLanguages []string

	ClaimName    string
	ShortURL     string
	CanonicalURL string
	Title        string
	Author       string
	Description  string
	FeeCurrency  string
	TxID         string
	TxNout       *int

	Height            *RangeField
	CreationHeight    *RangeField
	ActivationHeight  *RangeField
	ExpirationHeight  *RangeField
	Timestamp         *RangeField
	CreationTimestamp *RangeField
	ReleaseTime       *RangeField
	Duration          *RangeField
	FeeAmount         *RangeField
	TxPosition        *RangeField
	ChannelJoin       *RangeField
	Reposted          *RangeField
	Amount            *RangeField
	EffectiveAmount   *RangeField
	SupportAmount     *RangeField
	TrendingGroup     *RangeField
	TrendingMixed     *RangeField
	TrendingLocal     *RangeField
	TrendingGlobal    *RangeField
	CensorType        *RangeField

	// IsControlling false is dropped, only the positive assertion matters.
	IsControlling       *bool
	HasChannelSignature bool
	SignatureValid      *bool

	// AmountOrder n rewrites the query to limit 1, ordered by
	// effective_amount, offset n-1.
	AmountOrder int

	Text string

	// Channel is a channel URL resolved to a ChannelID before compiling.
	Channel string

	OrderBy               []string
	Limit                 *int
	Offset                int
	LimitClaimsPerChannel int
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asStringList accepts a scalar or a list, dropping nil and empty elements.
func asStringList(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// DecodeOptions converts a dynamic option map into the typed option set.
// Unrecognized keys are silently ignored; empty lists and nil elements are
// filtered out rather than materialized as empty clauses.
func DecodeOptions(raw map[string]any) *SearchOptions {
	opts := &SearchOptions{}
	for key, value := range raw {
		if value == nil {
			continue
		}
		key = strings.TrimPrefix(key, "claim.")
		many := false
		if strings.HasSuffix(key, "__in") {
			key = strings.TrimSuffix(key, "__in")
			many = true
		}
		switch key {
		case "name":
			opts.Name = asString(value)
		case "claim_id", "_id", "claim_hash":
			if many {
				opts.ClaimIDs = append(opts.ClaimIDs, asStringList(value)...)
			} else if list, ok := value.([]any); ok {
				opts.ClaimIDs = append(opts.ClaimIDs, asStringList(list)...)
			} else {
				opts.ClaimID = asString(value)
			}
		case "claim_ids":
			opts.ClaimIDs = append(opts.ClaimIDs, asStringList(value)...)
		case "not_claim_id":
			opts.NotClaimID = asStringList(value)
		case "channel_id":
			if many {
				opts.ChannelIDs = append(opts.ChannelIDs, asStringList(value)...)
			} else {
				opts.ChannelID = asString(value)
			}
		case "channel_ids":
			opts.ChannelIDs = append(opts.ChannelIDs, asStringList(value)...)
		case "not_channel_ids":
			opts.NotChannelIDs = asStringList(value)
		case "reposted_claim_id":
			opts.RepostedClaimID = asString(value)
		case "public_key_id":
			opts.PublicKeyID = asString(value)
		case "public_key_hash":
			opts.PublicKeyHash = asString(value)
		case "claim_type":
			opts.ClaimType = asStringList(value)
		case "stream_types", "stream_type":
			opts.StreamTypes = append(opts.StreamTypes, asStringList(value)...)
		case "media_type":
			opts.MediaType = asString(value)
		case "media_types":
			opts.MediaTypes = asStringList(value)
		case "any_tags":
			opts.AnyTags = asStringList(value)
		case "all_tags":
			opts.AllTags = asStringList(value)
		case "not_tags":
			opts.NotTags = asStringList(value)
		case "any_languages":
			opts.AnyLanguages = asStringList(value)
		case "all_languages":
			opts.AllLanguages = asStringList(value)
		case "claim_name":
			opts.ClaimName = asString(value)
		case "short_url":
			opts.ShortURL = asString(value)
		case "canonical_url":
			opts.CanonicalURL = asString(value)
		case "title":
			opts.Title = asString(value)
		case "author":
			opts.Author = asString(value)
		case "description":
			opts.Description = asString(value)
		case "fee_currency":
			opts.FeeCurrency = asString(value)
		case "tx_id", "txid":
			opts.TxID = asString(value)
		case "tx_nout":
			if n, ok := asInt(value); ok {
				opts.TxNout = &n
			}
		case "height":
			opts.Height = ParseRange(value)
		case "creation_height":
			opts.CreationHeight = ParseRange(value)
		case "activation_height":
			opts.ActivationHeight = ParseRange(value)
		case "expiration_height":
			opts.ExpirationHeight = ParseRange(value)
		case "timestamp":
			opts.Timestamp = ParseRange(value)
		case "creation_timestamp":
			opts.CreationTimestamp = ParseRange(value)
		case "release_time":
			opts.ReleaseTime = ParseRange(value)
		case "duration":
			opts.Duration = ParseRange(value)
		case "fee_amount":
			opts.FeeAmount = ParseRange(value)
		case "tx_position":
			opts.TxPosition = ParseRange(value)
		case "channel_join":
			opts.ChannelJoin = ParseRange(value)
		case "reposted":
			opts.Reposted = ParseRange(value)
		case "amount":
			opts.Amount = ParseRange(value)
		case "effective_amount":
			opts.EffectiveAmount = ParseRange(value)
		case "support_amount":
			opts.SupportAmount = ParseRange(value)
		case "trending_group":
			opts.TrendingGroup = ParseRange(value)
		case "trending_mixed":
			opts.TrendingMixed = ParseRange(value)
		case "trending_local":
			opts.TrendingLocal = ParseRange(value)
		case "trending_global":
			opts.TrendingGlobal = ParseRange(value)
		case "censor_type":
			opts.CensorType = ParseRange(value)
		case "is_controlling":
			if b, ok := asBool(value); ok {
				opts.IsControlling = &b
			}
		case "has_channel_signature":
			if b, ok := asBool(value); ok {
				opts.HasChannelSignature = b
			}
		case "signature_valid":
			if b, ok := asBool(value); ok {
				opts.SignatureValid = &b
			}
		case "amount_order":
			if n, ok := asInt(value); ok {
				opts.AmountOrder = n
			}
		case "text":
			opts.Text = asString(value)
		case "channel":
			opts.Channel = asString(value)
		case "order_by":
			opts.OrderBy = asStringList(value)
		case "limit":
			if n, ok := asInt(value); ok {
				opts.Limit = &n
			}
		case "offset":
			if n, ok := asInt(value); ok {
				opts.Offset = n
			}
		case "limit_claims_per_channel":
			if n, ok := asInt(value); ok {
				opts.LimitClaimsPerChannel = n
			}
		}
	}
	return opts
}

func (o RangeOp) String() string {
	switch o {
	case RangeLT:
		return "lt"
	case RangeLTE:
		return "lte"
	case RangeGT:
		return "gt"
	case RangeGTE:
		return "gte"
	}
	return "eq"
}
