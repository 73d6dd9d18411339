package testutil

import (
	crand "crypto/rand"
	"encoding/hex"
	"math/rand"

	"github.com/claimhub/search-service/pkg/types"
)

func RandomBytes(size int) []byte {
	bytes := make([]byte, size)
	_, _ = crand.Read(bytes)
	return bytes
}

func RandomClaimHash() []byte {
	return RandomBytes(20)
}

func RandomTxoHash() []byte {
	return RandomBytes(36)
}

// RandomClaimID returns a 40 character hex claim id as stored in the index.
func RandomClaimID() string {
	return hex.EncodeToString(RandomBytes(20))
}

// RandomClaim returns a fully populated binary claim suitable for codec and
// writer tests.
func RandomClaim() *types.Claim {
	return &types.Claim{
		ClaimHash:            RandomClaimHash(),
		RepostedClaimHash:    RandomClaimHash(),
		ChannelHash:          RandomClaimHash(),
		CensoringChannelHash: RandomClaimHash(),
		TxoHash:              RandomTxoHash(),

		Signature:       RandomBytes(64),
		SignatureDigest: RandomBytes(32),
		PublicKeyBytes:  RandomBytes(33),
		PublicKeyHash:   RandomBytes(20),

		ClaimName:    "test-claim",
		Normalized:   "test-claim",
		ShortURL:     "test-claim#a",
		CanonicalURL: "@test#b/test-claim#a",

		IsControlling:      rand.Intn(2) == 0,
		SignatureValid:     true,
		LastTakeOverHeight: rand.Uint32(),
		ClaimsInChannel:    uint32(rand.Intn(1000)),
		ChannelJoin:        rand.Uint32(),

		Height:            rand.Uint32(),
		CreationHeight:    rand.Uint32(),
		ActivationHeight:  rand.Uint32(),
		ExpirationHeight:  rand.Uint32(),
		TxPosition:        uint32(rand.Intn(5000)),
		Timestamp:         rand.Uint32(),
		CreationTimestamp: rand.Uint32(),
		ReleaseTime:       rand.Int63(),

		Amount:          rand.Uint64(),
		EffectiveAmount: rand.Uint64(),
		SupportAmount:   rand.Uint64(),
		FeeAmount:       uint64(rand.Intn(100000)),
		FeeCurrency:     "usd",

		ClaimType:  types.ClaimTypeStream,
		StreamType: types.StreamTypeVideo,
		CensorType: types.NotCensored,

		TrendingGroup:  rand.Uint32(),
		TrendingMixed:  rand.Float32(),
		TrendingLocal:  rand.Float32(),
		TrendingGlobal: rand.Float32(),
		Reposted:       uint32(rand.Intn(100)),

		Title:       "A Test Claim",
		Author:      "tester",
		Description: "a claim generated for tests",
		MediaType:   "video/mp4",
		Duration:    uint32(rand.Intn(7200)),

		Tags:      []string{"test", "generated"},
		Languages: []string{"en"},
	}
}

// RandomClaimDoc returns an indexed document for a random claim.
func RandomClaimDoc() *types.ClaimDoc {
	doc, err := RandomClaim().Doc()
	if err != nil {
		panic(err)
	}
	return doc
}
