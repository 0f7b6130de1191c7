package matcher

import (
	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// Strategy decides which vote bucket a (query fingerprint, stored
// occurrence) hit lands in and how many votes a winner needs.
type Strategy interface {
	Name() string
	Threshold() int
	offset(query fingerprint.Fingerprint, occ model.Occurrence) int64
}

// OffsetAlignment buckets hits by (song, stored anchor - query anchor). A
// true match piles its votes onto one offset; collisions scatter.
type OffsetAlignment struct {
	MinMatches int
}

func (OffsetAlignment) Name() string     { return config.StrategyOffsetAlignment }
func (s OffsetAlignment) Threshold() int { return s.MinMatches }

func (OffsetAlignment) offset(q fingerprint.Fingerprint, occ model.Occurrence) int64 {
	return int64(occ.AnchorTime) - int64(q.AnchorTime)
}

// HashCount ignores timing and counts raw key hits per song.
type HashCount struct {
	MinMatches int
}

func (HashCount) Name() string     { return config.StrategyHashCount }
func (s HashCount) Threshold() int { return s.MinMatches }

func (HashCount) offset(fingerprint.Fingerprint, model.Occurrence) int64 { return 0 }

// StrategyFromConfig returns the strategy named by cfg.Strategy with its
// configured threshold.
func StrategyFromConfig(cfg config.Config) Strategy {
	if cfg.Strategy == config.StrategyHashCount {
		return HashCount{MinMatches: cfg.HashCountMinMatches}
	}
	return OffsetAlignment{MinMatches: cfg.MinMatches}
}
