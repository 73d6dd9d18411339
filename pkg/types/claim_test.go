package types_test

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/claimhub/search-service/pkg/internal/testutil"
	"github.com/claimhub/search-service/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestClaimDocRoundTrip(t *testing.T) {
	claim := testutil.RandomClaim()
	// the codec derives TxHash on decode, set the expectation up front
	claim.TxHash = append([]byte(nil), claim.TxoHash[:32]...)

	doc, err := claim.Doc()
	require.NoError(t, err)

	back, err := doc.Claim()
	require.NoError(t, err)
	require.Equal(t, claim, back)
}

func TestClaimDocHashEncoding(t *testing.T) {
	claim := testutil.RandomClaim()
	doc, err := claim.Doc()
	require.NoError(t, err)

	// indexed ids are the hex of the reversed binary hash
	wantID := make([]byte, len(claim.ClaimHash))
	for i, b := range claim.ClaimHash {
		wantID[len(claim.ClaimHash)-1-i] = b
	}
	require.Equal(t, hex.EncodeToString(wantID), doc.ClaimID)

	// txo pointer splits into reversed-hex tx id and little-endian nout
	require.Equal(t, binary.LittleEndian.Uint32(claim.TxoHash[32:]), doc.TxNout)
	txID, err := types.IDToHash(doc.TxID)
	require.NoError(t, err)
	require.Equal(t, claim.TxoHash[:32], txID)
}

func TestClaimDocNullCollapsing(t *testing.T) {
	claim := testutil.RandomClaim()
	claim.RepostedClaimHash = nil
	claim.ChannelHash = nil
	claim.CensoringChannelHash = nil
	claim.Signature = nil
	claim.SignatureDigest = nil
	claim.PublicKeyBytes = nil
	claim.PublicKeyHash = nil

	doc, err := claim.Doc()
	require.NoError(t, err)
	require.Nil(t, doc.RepostedClaimID)
	require.Nil(t, doc.ChannelID)
	require.Nil(t, doc.CensoringChannelHash)
	require.Nil(t, doc.Signature)
	require.Nil(t, doc.SignatureDigest)
	require.Nil(t, doc.PublicKeyBytes)
	require.Nil(t, doc.PublicKeyHash)

	back, err := doc.Claim()
	require.NoError(t, err)
	require.Nil(t, back.ChannelHash)
	require.Nil(t, back.RepostedClaimHash)
}

func TestHashToIDRoundTrip(t *testing.T) {
	hash := testutil.RandomBytes(20)
	id := types.HashToID(hash)
	back, err := types.IDToHash(id)
	require.NoError(t, err)
	require.Equal(t, hash, back)
}

func TestClaimDocRejectsBadLengths(t *testing.T) {
	claim := testutil.RandomClaim()
	claim.ClaimHash = claim.ClaimHash[:10]
	_, err := claim.Doc()
	require.Error(t, err)

	claim = testutil.RandomClaim()
	claim.TxoHash = claim.TxoHash[:35]
	_, err = claim.Doc()
	require.Error(t, err)
}
