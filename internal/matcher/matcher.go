package matcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// Lookuper is the read side of the fingerprint index.
type Lookuper interface {
	Lookup(ctx context.Context, key uint64) ([]model.Occurrence, error)
}

type candidate struct {
	songID string
	offset int64
}

// tally tracks votes and the first hit, as (query index, occurrence index)
// packed into one ordinal, so ties resolve the same way on every run.
type tally struct {
	votes int
	first uint64
}

type ballot map[candidate]*tally

func (b ballot) add(c candidate, n int, ordinal uint64) {
	t, ok := b[c]
	if !ok {
		b[c] = &tally{votes: n, first: ordinal}
		return
	}
	t.votes += n
	if ordinal < t.first {
		t.first = ordinal
	}
}

// Matcher scores query fingerprints against an index.
type Matcher struct {
	index    Lookuper
	strategy Strategy
	workers  int
}

func New(index Lookuper, strategy Strategy, workers int) *Matcher {
	if workers <= 0 {
		workers = 1
	}
	return &Matcher{index: index, strategy: strategy, workers: workers}
}

func (m *Matcher) Strategy() Strategy { return m.strategy }

// Match looks up every query fingerprint, votes per strategy bucket and
// returns the bucket with the most votes. The result is Matched only when
// that count reaches the strategy threshold. Any lookup failure aborts the
// whole request.
func (m *Matcher) Match(ctx context.Context, query []fingerprint.Fingerprint) (model.MatchResult, error) {
	if len(query) == 0 {
		return model.MatchResult{}, nil
	}

	workers := min(m.workers, len(query))
	chunk := (len(query) + workers - 1) / workers
	partials := make([]ballot, 0, workers)
	for start := 0; start < len(query); start += chunk {
		partials = append(partials, make(ballot))
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := range partials {
		lo, hi := w*chunk, min((w+1)*chunk, len(query))
		local := partials[w]
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				q := query[i]
				occs, err := m.index.Lookup(gctx, q.Key())
				if err != nil {
					return fmt.Errorf("lookup fingerprint %d: %w", i, err)
				}
				for j, occ := range occs {
					c := candidate{songID: occ.SongID, offset: m.strategy.offset(q, occ)}
					local.add(c, 1, uint64(i)<<32|uint64(j))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.MatchResult{}, err
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		for c, t := range p {
			merged.add(c, t.votes, t.first)
		}
	}

	return decide(merged, m.strategy.Threshold()), nil
}

func decide(votes ballot, threshold int) model.MatchResult {
	var (
		best  candidate
		bestT *tally
	)
	for c, t := range votes {
		if bestT == nil || t.votes > bestT.votes || (t.votes == bestT.votes && t.first < bestT.first) {
			best, bestT = c, t
		}
	}
	if bestT == nil {
		return model.MatchResult{}
	}
	return model.MatchResult{
		Matched: bestT.votes >= threshold,
		SongID:  best.songID,
		Votes:   bestT.votes,
		Offset:  best.offset,
	}
}
