package types

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound means the key did not exist in the cache
var ErrKeyNotFound = errors.New("key not found")

// Claim type codes as stored in the index.
const (
	ClaimTypeStream     byte = 1
	ClaimTypeChannel    byte = 2
	ClaimTypeRepost     byte = 3
	ClaimTypeCollection byte = 4
)

// Stream type codes as stored in the index.
const (
	StreamTypeVideo    byte = 1
	StreamTypeAudio    byte = 2
	StreamTypeImage    byte = 3
	StreamTypeDocument byte = 4
	StreamTypeBinary   byte = 5
	StreamTypeModel    byte = 6
)

// ClaimTypes maps the caller-facing claim type names to their byte codes.
var ClaimTypes = map[string]byte{
	"stream":     ClaimTypeStream,
	"channel":    ClaimTypeChannel,
	"repost":     ClaimTypeRepost,
	"collection": ClaimTypeCollection,
}

// StreamTypes maps the caller-facing stream type names to their byte codes.
var StreamTypes = map[string]byte{
	"video":    StreamTypeVideo,
	"audio":    StreamTypeAudio,
	"image":    StreamTypeImage,
	"document": StreamTypeDocument,
	"binary":   StreamTypeBinary,
	"model":    StreamTypeModel,
}

// Censorship categories. Blocking dominates filtering: a document is only
// ever re-tagged upward.
const (
	NotCensored  byte = 0
	CensorFilter byte = 1
	CensorBlock  byte = 2
)

// Cache is the subset of cache behavior the resolver relies on. It is
// satisfied by hashicorp/golang-lru/v2.
type Cache[Key comparable, Value any] interface {
	Get(key Key) (Value, bool)
	Add(key Key, value Value) bool
	Purge()
}

// URLParseError is carried as a per-URL resolution value when the input
// cannot be parsed. It is never raised out of a multi-URL resolve.
type URLParseError struct {
	URL string
	Err error
}

func (e *URLParseError) Error() string {
	return fmt.Sprintf("invalid claim URL %q: %s", e.URL, e.Err)
}

func (e *URLParseError) Unwrap() error { return e.Err }

// LookupError means resolution found no claim for a URL. Channel reports
// whether the channel segment (rather than the stream) failed to resolve.
type LookupError struct {
	URL     string
	Channel bool
}

func (e *LookupError) Error() string {
	if e.Channel {
		return fmt.Sprintf("could not find channel in %q", e.URL)
	}
	return fmt.Sprintf("could not find claim at %q", e.URL)
}

// CensoredError is carried in place of a resolved claim that is subject to a
// block. CensoringChannelID is the hex claim id of the responsible channel.
type CensoredError struct {
	URL                string
	CensoringChannelID string
}

func (e *CensoredError) Error() string {
	return fmt.Sprintf("resolve of %q was censored by channel with claim id %s", e.URL, e.CensoringChannelID)
}
