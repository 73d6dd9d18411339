package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Claim is the binary representation of a claim as exchanged with the
// blockchain ingester. Hash fields are raw 20-byte arrays in display order;
// TxoHash is the 32-byte transaction hash followed by the little-endian
// output index.
type Claim struct {
	ClaimHash            []byte
	RepostedClaimHash    []byte
	ChannelHash          []byte
	CensoringChannelHash []byte
	TxoHash              []byte
	// TxHash is derived from TxoHash when decoding from the index.
	TxHash []byte

	Signature       []byte
	SignatureDigest []byte
	PublicKeyBytes  []byte
	PublicKeyHash   []byte

	ClaimName    string
	Normalized   string
	ShortURL     string
	CanonicalURL string

	IsControlling      bool
	SignatureValid     bool
	LastTakeOverHeight uint32
	ClaimsInChannel    uint32
	ChannelJoin        uint32

	Height            uint32
	CreationHeight    uint32
	ActivationHeight  uint32
	ExpirationHeight  uint32
	TxPosition        uint32
	Timestamp         uint32
	CreationTimestamp uint32
	ReleaseTime       int64

	Amount          uint64
	EffectiveAmount uint64
	SupportAmount   uint64
	// FeeAmount is integer thousandths of the fee currency unit.
	FeeAmount   uint64
	FeeCurrency string

	ClaimType  byte
	StreamType byte
	CensorType byte

	TrendingGroup  uint32
	TrendingMixed  float32
	TrendingLocal  float32
	TrendingGlobal float32
	Reposted       uint32

	Title       string
	Author      string
	Description string
	MediaType   string
	Duration    uint32

	Tags      []string
	Languages []string
}

// ClaimDoc is the claim document as stored in the search index. Hash-typed
// fields hold the hex encoding of the reversed binary hash. Nullable fields
// are pointers so that they serialize as JSON null rather than being omitted,
// which keeps `exists` queries on them meaningful.
type ClaimDoc struct {
	ClaimID              string  `json:"claim_id"`
	RepostedClaimID      *string `json:"reposted_claim_id"`
	ChannelID            *string `json:"channel_id"`
	CensoringChannelHash *string `json:"censoring_channel_hash"`
	TxID                 string  `json:"tx_id"`
	TxNout               uint32  `json:"tx_nout"`

	Signature       *string `json:"signature"`
	SignatureDigest *string `json:"signature_digest"`
	PublicKeyBytes  *string `json:"public_key_bytes"`
	PublicKeyHash   *string `json:"public_key_hash"`

	ClaimName    string `json:"claim_name"`
	Normalized   string `json:"normalized"`
	ShortURL     string `json:"short_url"`
	CanonicalURL string `json:"canonical_url"`

	IsControlling      bool   `json:"is_controlling"`
	SignatureValid     bool   `json:"signature_valid"`
	LastTakeOverHeight uint32 `json:"last_take_over_height"`
	ClaimsInChannel    uint32 `json:"claims_in_channel"`
	ChannelJoin        uint32 `json:"channel_join"`

	Height            uint32 `json:"height"`
	CreationHeight    uint32 `json:"creation_height"`
	ActivationHeight  uint32 `json:"activation_height"`
	ExpirationHeight  uint32 `json:"expiration_height"`
	TxPosition        uint32 `json:"tx_position"`
	Timestamp         uint32 `json:"timestamp"`
	CreationTimestamp uint32 `json:"creation_timestamp"`
	ReleaseTime       int64  `json:"release_time"`

	Amount          uint64 `json:"amount"`
	EffectiveAmount uint64 `json:"effective_amount"`
	SupportAmount   uint64 `json:"support_amount"`
	FeeAmount       uint64 `json:"fee_amount"`
	FeeCurrency     string `json:"fee_currency"`

	ClaimType  byte `json:"claim_type"`
	StreamType byte `json:"stream_type"`
	CensorType byte `json:"censor_type"`

	TrendingGroup  uint32  `json:"trending_group"`
	TrendingMixed  float32 `json:"trending_mixed"`
	TrendingLocal  float32 `json:"trending_local"`
	TrendingGlobal float32 `json:"trending_global"`
	Reposted       uint32  `json:"reposted"`

	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	MediaType   string `json:"media_type"`
	Duration    uint32 `json:"duration"`

	Tags      []string `json:"tags"`
	Languages []string `json:"languages"`
}

const (
	claimHashLen = 20
	txHashLen    = 32
	txoHashLen   = txHashLen + 4
)

// HashToID converts a binary hash in display order to its indexed form: the
// hex encoding of the reversed bytes.
func HashToID(hash []byte) string {
	return hex.EncodeToString(reversed(hash))
}

// IDToHash is the inverse of HashToID.
func IDToHash(id string) ([]byte, error) {
	b, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("decoding hash hex %q: %w", id, err)
	}
	return reversed(b), nil
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func optionalID(hash []byte) *string {
	if len(hash) == 0 {
		return nil
	}
	id := HashToID(hash)
	return &id
}

func optionalHex(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := hex.EncodeToString(b)
	return &s
}

func optionalIDToHash(id *string) ([]byte, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	return IDToHash(*id)
}

func optionalHexToBytes(s *string) ([]byte, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	return hex.DecodeString(*s)
}

// Doc converts the binary claim to its indexed document form. The returned
// document is keyed by ClaimID when upserted.
func (c *Claim) Doc() (*ClaimDoc, error) {
	if len(c.ClaimHash) != claimHashLen {
		return nil, fmt.Errorf("claim hash must be %d bytes, got %d", claimHashLen, len(c.ClaimHash))
	}
	if len(c.TxoHash) != txoHashLen {
		return nil, fmt.Errorf("txo hash must be %d bytes, got %d", txoHashLen, len(c.TxoHash))
	}
	return &ClaimDoc{
		ClaimID:              HashToID(c.ClaimHash),
		RepostedClaimID:      optionalID(c.RepostedClaimHash),
		ChannelID:            optionalID(c.ChannelHash),
		CensoringChannelHash: optionalID(c.CensoringChannelHash),
		TxID:                 HashToID(c.TxoHash[:txHashLen]),
		TxNout:               binary.LittleEndian.Uint32(c.TxoHash[txHashLen:]),

		Signature:       optionalHex(c.Signature),
		SignatureDigest: optionalHex(c.SignatureDigest),
		PublicKeyBytes:  optionalHex(c.PublicKeyBytes),
		PublicKeyHash:   optionalHex(c.PublicKeyHash),

		ClaimName:    c.ClaimName,
		Normalized:   c.Normalized,
		ShortURL:     c.ShortURL,
		CanonicalURL: c.CanonicalURL,

		IsControlling:      c.IsControlling,
		SignatureValid:     c.SignatureValid,
		LastTakeOverHeight: c.LastTakeOverHeight,
		ClaimsInChannel:    c.ClaimsInChannel,
		ChannelJoin:        c.ChannelJoin,

		Height:            c.Height,
		CreationHeight:    c.CreationHeight,
		ActivationHeight:  c.ActivationHeight,
		ExpirationHeight:  c.ExpirationHeight,
		TxPosition:        c.TxPosition,
		Timestamp:         c.Timestamp,
		CreationTimestamp: c.CreationTimestamp,
		ReleaseTime:       c.ReleaseTime,

		Amount:          c.Amount,
		EffectiveAmount: c.EffectiveAmount,
		SupportAmount:   c.SupportAmount,
		FeeAmount:       c.FeeAmount,
		FeeCurrency:     c.FeeCurrency,

		ClaimType:  c.ClaimType,
		StreamType: c.StreamType,
		CensorType: c.CensorType,

		TrendingGroup:  c.TrendingGroup,
		TrendingMixed:  c.TrendingMixed,
		TrendingLocal:  c.TrendingLocal,
		TrendingGlobal: c.TrendingGlobal,
		Reposted:       c.Reposted,

		Title:       c.Title,
		Author:      c.Author,
		Description: c.Description,
		MediaType:   c.MediaType,
		Duration:    c.Duration,

		Tags:      c.Tags,
		Languages: c.Languages,
	}, nil
}

// Claim converts an indexed document back to its binary form, repacking
// TxoHash from TxID and TxNout and deriving TxHash.
func (d *ClaimDoc) Claim() (*Claim, error) {
	claimHash, err := IDToHash(d.ClaimID)
	if err != nil {
		return nil, err
	}
	repostedHash, err := optionalIDToHash(d.RepostedClaimID)
	if err != nil {
		return nil, err
	}
	channelHash, err := optionalIDToHash(d.ChannelID)
	if err != nil {
		return nil, err
	}
	censoringHash, err := optionalIDToHash(d.CensoringChannelHash)
	if err != nil {
		return nil, err
	}
	txHash, err := IDToHash(d.TxID)
	if err != nil {
		return nil, err
	}
	if len(txHash) != txHashLen {
		return nil, fmt.Errorf("tx hash must be %d bytes, got %d", txHashLen, len(txHash))
	}
	txoHash := make([]byte, txoHashLen)
	copy(txoHash, txHash)
	binary.LittleEndian.PutUint32(txoHash[txHashLen:], d.TxNout)

	signature, err := optionalHexToBytes(d.Signature)
	if err != nil {
		return nil, err
	}
	signatureDigest, err := optionalHexToBytes(d.SignatureDigest)
	if err != nil {
		return nil, err
	}
	publicKeyBytes, err := optionalHexToBytes(d.PublicKeyBytes)
	if err != nil {
		return nil, err
	}
	publicKeyHash, err := optionalHexToBytes(d.PublicKeyHash)
	if err != nil {
		return nil, err
	}

	return &Claim{
		ClaimHash:            claimHash,
		RepostedClaimHash:    repostedHash,
		ChannelHash:          channelHash,
		CensoringChannelHash: censoringHash,
		TxoHash:              txoHash,
		TxHash:               txHash,

		Signature:       signature,
		SignatureDigest: signatureDigest,
		PublicKeyBytes:  publicKeyBytes,
		PublicKeyHash:   publicKeyHash,

		ClaimName:    d.ClaimName,
		Normalized:   d.Normalized,
		ShortURL:     d.ShortURL,
		CanonicalURL: d.CanonicalURL,

		IsControlling:      d.IsControlling,
		SignatureValid:     d.SignatureValid,
		LastTakeOverHeight: d.LastTakeOverHeight,
		ClaimsInChannel:    d.ClaimsInChannel,
		ChannelJoin:        d.ChannelJoin,

		Height:            d.Height,
		CreationHeight:    d.CreationHeight,
		ActivationHeight:  d.ActivationHeight,
		ExpirationHeight:  d.ExpirationHeight,
		TxPosition:        d.TxPosition,
		Timestamp:         d.Timestamp,
		CreationTimestamp: d.CreationTimestamp,
		ReleaseTime:       d.ReleaseTime,

		Amount:          d.Amount,
		EffectiveAmount: d.EffectiveAmount,
		SupportAmount:   d.SupportAmount,
		FeeAmount:       d.FeeAmount,
		FeeCurrency:     d.FeeCurrency,

		ClaimType:  d.ClaimType,
		StreamType: d.StreamType,
		CensorType: d.CensorType,

		TrendingGroup:  d.TrendingGroup,
		TrendingMixed:  d.TrendingMixed,
		TrendingLocal:  d.TrendingLocal,
		TrendingGlobal: d.TrendingGlobal,
		Reposted:       d.Reposted,

		Title:       d.Title,
		Author:      d.Author,
		Description: d.Description,
		MediaType:   d.MediaType,
		Duration:    d.Duration,

		Tags:      d.Tags,
		Languages: d.Languages,
	}, nil
}
