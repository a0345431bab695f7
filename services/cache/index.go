package cache

import (
	"github.com/viterin/vek/vek32"
)

// vectorIndex is a flat inner-product similarity index with a bidirectional
// key<->slot mapping. Removals are soft deletes so that slot positions never
// shift under a live entry; the slices are compacted once tombstones reach
// half the index. This keeps the entry map and the index consistent by
// construction: a key is either present in both or in neither.
type vectorIndex struct {
	vectors [][]float32
	keys    []uint64
	deleted []bool
	slots   map[uint64]int
	live    int
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{
		slots: make(map[uint64]int),
	}
}

// Add inserts the vector for key, replacing any previous vector for the same
// key.
func (ix *vectorIndex) Add(key uint64, vec []float32) {
	if slot, ok := ix.slots[key]; ok && !ix.deleted[slot] {
		ix.deleted[slot] = true
		ix.live--
	}
	ix.vectors = append(ix.vectors, vec)
	ix.keys = append(ix.keys, key)
	ix.deleted = append(ix.deleted, false)
	ix.slots[key] = len(ix.vectors) - 1
	ix.live++
	ix.maybeCompact()
}

// Remove tombstones the vector for key. Removing an absent key is a no-op.
func (ix *vectorIndex) Remove(key uint64) {
	slot, ok := ix.slots[key]
	if !ok || ix.deleted[slot] {
		return
	}
	ix.deleted[slot] = true
	ix.live--
	delete(ix.slots, key)
	ix.maybeCompact()
}

// Search returns the key of the most similar live vector and its
// inner-product similarity. ok is false when the index holds no live vectors.
func (ix *vectorIndex) Search(query []float32) (key uint64, similarity float32, ok bool) {
	best := float32(0)
	for slot, vec := range ix.vectors {
		if ix.deleted[slot] || len(vec) != len(query) {
			continue
		}
		sim := vek32.Dot(query, vec)
		if !ok || sim > best {
			best = sim
			key = ix.keys[slot]
			ok = true
		}
	}
	return key, best, ok
}

// Len returns the number of live vectors
func (ix *vectorIndex) Len() int {
	return ix.live
}

// maybeCompact rebuilds the slices once at least half the slots are
// tombstones, re-deriving the slot map from the surviving order.
func (ix *vectorIndex) maybeCompact() {
	tombstones := len(ix.vectors) - ix.live
	if tombstones < 16 || tombstones < ix.live {
		return
	}

	vectors := make([][]float32, 0, ix.live)
	keys := make([]uint64, 0, ix.live)
	slots := make(map[uint64]int, ix.live)
	for slot, vec := range ix.vectors {
		if ix.deleted[slot] {
			continue
		}
		slots[ix.keys[slot]] = len(vectors)
		vectors = append(vectors, vec)
		keys = append(keys, ix.keys[slot])
	}

	ix.vectors = vectors
	ix.keys = keys
	ix.deleted = make([]bool, len(vectors))
	ix.slots = slots
}
