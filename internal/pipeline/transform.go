package pipeline

import (
	"github.com/couchcryptid/quakewatch/internal/domain"
)

// Deduplicator passes on only earthquakes the relay has not published yet.
// The feeds overlap heavily between cycles, so most of each fetch is
// dropped here.
type Deduplicator struct {
	seen *seenSet
}

// NewDeduplicator remembers up to size ids.
func NewDeduplicator(size int) *Deduplicator {
	return &Deduplicator{seen: newSeenSet(size)}
}

// Unseen returns the earthquakes whose ids are not yet marked, in input
// order. Duplicate ids within quakes are returned once.
func (d *Deduplicator) Unseen(quakes []domain.Earthquake) []domain.Earthquake {
	out := make([]domain.Earthquake, 0, len(quakes))
	batch := make(map[string]struct{}, len(quakes))
	for _, q := range quakes {
		if _, dup := batch[q.ID]; dup {
			continue
		}
		batch[q.ID] = struct{}{}
		if !d.seen.contains(q.ID) {
			out = append(out, q)
		}
	}
	return out
}

// Mark records the earthquakes as published.
func (d *Deduplicator) Mark(quakes []domain.Earthquake) {
	for _, q := range quakes {
		d.seen.add(q.ID)
	}
}
