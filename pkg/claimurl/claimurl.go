// Package claimurl parses user-facing claim URLs into their channel and
// stream segments. A URL has an optional scheme, at most one channel segment
// (prefixed with @) and at most one stream segment. Each segment carries a
// name and at most one qualifier: a full or partial hex claim id ("#" or ":"),
// a sequence number ("*") or an amount-order position ("$").
package claimurl

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidURL means the input does not match the claim URL grammar.
var ErrInvalidURL = errors.New("invalid claim URL")

// Segment is one path component of a claim URL.
type Segment struct {
	Name        string
	ClaimID     string
	Sequence    int
	AmountOrder int
}

// String renders the segment with its qualifier, e.g. "@alice#1f".
func (s *Segment) String() string {
	switch {
	case s.ClaimID != "":
		return s.Name + "#" + s.ClaimID
	case s.Sequence > 0:
		return s.Name + "*" + strconv.Itoa(s.Sequence)
	case s.AmountOrder > 0:
		return s.Name + "$" + strconv.Itoa(s.AmountOrder)
	}
	return s.Name
}

// URL is a parsed claim URL.
type URL struct {
	Channel *Segment
	Stream  *Segment
}

func (u *URL) HasChannel() bool { return u.Channel != nil }
func (u *URL) HasStream() bool  { return u.Stream != nil }

func (u *URL) String() string {
	var parts []string
	if u.Channel != nil {
		parts = append(parts, u.Channel.String())
	}
	if u.Stream != nil {
		parts = append(parts, u.Stream.String())
	}
	return strings.Join(parts, "/")
}

// Characters that may not appear in a claim name: URL grammar metacharacters,
// control characters and the unicode spaces and noncharacters.
const nameChars = `[^=&#:$*@%?;"/<>%{}|^~` + "`" + `\[\]` +
	`\x00-\x20\x{00a0}\x{2000}-\x{200f}\x{2028}-\x{202f}\x{205f}-\x{206e}\x{3000}\x{feff}\x{ffff}]+`

func named(name, re string) string { return "(?P<" + name + ">" + re + ")" }

func oneOf(choices ...string) string { return "(?:" + strings.Join(choices, "|") + ")" }

// segment builds the pattern for one path component. The channel prefix "@"
// is part of the name group: channel claims are named with their @ on chain.
func segment(group, prefix string) string {
	return named(group+"_name", prefix+nameChars) +
		oneOf(
			`[:#]`+named(group+"_claim_id", `[0-9a-f]{1,40}`),
			`\*`+named(group+"_sequence", `[1-9][0-9]*`),
			`\$`+named(group+"_amount_order", `[1-9][0-9]*`),
		) + `?`
}

var urlRE = regexp.MustCompile(
	`^(?:[a-zA-Z][a-zA-Z0-9+.-]*://)?` +
		oneOf(
			segment("cs_channel", "@")+`/`+segment("cs_stream", ""),
			segment("channel", "@"),
			segment("stream", ""),
		) + `$`,
)

var groupIndex = func() map[string]int {
	idx := make(map[string]int)
	for i, name := range urlRE.SubexpNames() {
		if name != "" {
			idx[name] = i
		}
	}
	return idx
}()

func segmentFromMatch(match []string, group string) *Segment {
	name := match[groupIndex[group+"_name"]]
	if name == "" {
		return nil
	}
	seg := &Segment{Name: name, ClaimID: match[groupIndex[group+"_claim_id"]]}
	if s := match[groupIndex[group+"_sequence"]]; s != "" {
		seg.Sequence, _ = strconv.Atoi(s)
	}
	if s := match[groupIndex[group+"_amount_order"]]; s != "" {
		seg.AmountOrder, _ = strconv.Atoi(s)
	}
	return seg
}

// Parse parses a raw claim URL. It never panics on malformed input; callers
// carry the returned error as a per-URL value.
func Parse(raw string) (*URL, error) {
	match := urlRE.FindStringSubmatch(raw)
	if match == nil {
		return nil, ErrInvalidURL
	}
	url := &URL{}
	if seg := segmentFromMatch(match, "cs_channel"); seg != nil {
		url.Channel = seg
		url.Stream = segmentFromMatch(match, "cs_stream")
	} else if seg := segmentFromMatch(match, "channel"); seg != nil {
		url.Channel = seg
	} else if seg := segmentFromMatch(match, "stream"); seg != nil {
		url.Stream = seg
	} else {
		return nil, ErrInvalidURL
	}
	return url, nil
}
