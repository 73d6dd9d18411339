package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/olivere/elastic/v7"

	"github.com/claimhub/search-service/pkg/types"
)

const (
	// CensorSearch masks filtered and blocked claims out of search results.
	CensorSearch = types.CensorFilter
	// CensorResolve masks only blocked claims; resolution still reaches
	// filtered ones.
	CensorResolve = types.CensorBlock
)

// updateByQuerySlices parallelizes censorship updates across index shards.
const updateByQuerySlices = 32

// Censor is a masking policy applied to a batch of documents. It remembers
// which censoring channel masked how many documents so responses can report
// a summary of what was withheld.
type Censor struct {
	level    byte
	censored map[string]int
	total    int
}

// NewCensor returns a policy masking documents whose censor level is at
// least the given one.
func NewCensor(level byte) *Censor {
	return &Censor{level: level, censored: make(map[string]int)}
}

// Censors reports whether the policy masks doc, recording the censoring
// channel when it does. Documents without a censoring channel are never
// masked.
func (c *Censor) Censors(doc *types.ClaimDoc) bool {
	if doc.CensorType < c.level || doc.CensoringChannelHash == nil {
		return false
	}
	c.censored[*doc.CensoringChannelHash]++
	c.total++
	return true
}

// Apply returns docs with every masked document removed.
func (c *Censor) Apply(docs []*types.ClaimDoc) []*types.ClaimDoc {
	kept := make([]*types.ClaimDoc, 0, len(docs))
	for _, doc := range docs {
		if !c.Censors(doc) {
			kept = append(kept, doc)
		}
	}
	return kept
}

// Censored returns how many documents the policy has masked so far.
func (c *Censor) Censored() int {
	return c.total
}

// Counts returns the number of masked documents per censoring channel ID.
func (c *Censor) Counts() map[string]int {
	return c.censored
}

// ApplyFilters stamps censorship onto indexed documents. Each map goes from
// claim ID (or channel ID for the channel maps) to the ID of the channel
// that censors it. Filter lists are applied before block lists so a claim on
// both ends up with the stronger block level, and channel lists censor both
// the channel's own claim and everything signed by it.
func (i *Index) ApplyFilters(ctx context.Context, filteredStreams, filteredChannels, blockedStreams, blockedChannels map[string]string) error {
	if len(filteredStreams) > 0 {
		if err := i.updateCensor(ctx, CensorSearch, filteredStreams, false); err != nil {
			return err
		}
	}
	if len(filteredChannels) > 0 {
		if err := i.updateCensor(ctx, CensorSearch, filteredChannels, false); err != nil {
			return err
		}
		if err := i.updateCensor(ctx, CensorSearch, filteredChannels, true); err != nil {
			return err
		}
	}
	if len(blockedStreams) > 0 {
		if err := i.updateCensor(ctx, CensorResolve, blockedStreams, false); err != nil {
			return err
		}
	}
	if len(blockedChannels) > 0 {
		if err := i.updateCensor(ctx, CensorResolve, blockedChannels, false); err != nil {
			return err
		}
		if err := i.updateCensor(ctx, CensorResolve, blockedChannels, true); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) updateCensor(ctx context.Context, level byte, censoring map[string]string, channels bool) error {
	query, script, err := censorUpdate(level, censoring, channels)
	if err != nil {
		return err
	}
	_, err = i.client.UpdateByQuery(i.name).
		Query(query).
		Script(script).
		Slices(updateByQuerySlices).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("updating censor level %d: %w", level, err)
	}
	// later updates must see these stamps to honor the level gate
	return i.Refresh(ctx)
}

// censorUpdate builds the query and script for one censorship pass: match
// documents in the censoring set whose current level is below the new one,
// then stamp the level and the censoring channel looked up per document.
func censorUpdate(level byte, censoring map[string]string, channels bool) (elastic.Query, *elastic.Script, error) {
	ids := make([]string, 0, len(censoring))
	for id := range censoring {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	opts := &SearchOptions{
		CensorType: &RangeField{Op: RangeLT, Value: int(level)},
	}
	key := "claim_id"
	if channels {
		opts.ChannelIDs = ids
		key = "channel_id"
	} else {
		opts.ClaimIDs = ids
	}
	query, err := compileQuery(opts)
	if err != nil {
		return nil, nil, err
	}

	params := make(map[string]any, len(censoring))
	for id, channelID := range censoring {
		params[id] = channelID
	}
	source := fmt.Sprintf(
		"ctx._source.censor_type=%d; ctx._source.censoring_channel_hash=params[ctx._source.%s]",
		level, key)
	script := elastic.NewScript(source).Lang("painless").Params(params)
	return query, script, nil
}
