package services

import (
	"math/rand"

	"artist-census/utils"
)

// NameIndex answers whether a name is already accounted for by a ledger.
type NameIndex interface {
	Known(name string) bool
}

// Sampler draws the next batch of genuinely new names.
type Sampler struct {
	index  NameIndex
	logger *utils.Logger
}

func NewSampler(index NameIndex, logger *utils.Logger) *Sampler {
	return &Sampler{index: index, logger: logger}
}

// Next shuffles the whole name set with seed and walks the permutation from
// the front, skipping known names, until n new names are collected.
//
// The full set is reshuffled on every call, not just the unseen remainder,
// so a fixed seed visits the same order each run and larger n reaches
// further into it. Fewer than n results means the name space is exhausted.
// n <= 0 draws every unseen name.
func (s *Sampler) Next(names []string, seed int64, n int) []string {
	if len(names) == 0 {
		return nil
	}
	all := n <= 0
	if all {
		n = len(names)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(len(names))
	batch := make([]string, 0, min(n, len(names)))
	skipped := 0
	for _, i := range perm {
		if len(batch) == n {
			break
		}
		if s.index.Known(names[i]) {
			skipped++
			continue
		}
		batch = append(batch, names[i])
	}

	if len(batch) < n && !all {
		s.logger.Warn("[sampler] Name space exhausted: %d new of %d requested (%d already known)",
			len(batch), n, skipped)
	} else {
		s.logger.Info("[sampler] Drew %d new names, skipped %d known", len(batch), skipped)
	}
	return batch
}
