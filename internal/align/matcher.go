package align

import (
	"math"
	"sort"
)

// Candidate is a scored reference/target pairing.
type Candidate struct {
	ReferenceID string
	TargetID    string
	Score       float32
}

// Match is an accepted pairing for one reference row.
type Match struct {
	TargetID string
	Score    float32
}

// Assignment maps each reference id to at most one target id. No target id
// is ever claimed by two reference rows. Immutable once returned.
type Assignment struct {
	Pairs   map[string]Match
	claimed map[string]string // target id -> reference id
}

// TargetClaimedBy returns the reference id that claimed the given target
// id, or "" if the target is orphaned.
func (a Assignment) TargetClaimedBy(targetID string) string {
	return a.claimed[targetID]
}

// Orphans returns the ids of target rows never claimed, in target order.
func (a Assignment) Orphans(target *ContentSet) []string {
	var out []string
	for _, row := range target.Rows {
		if a.TargetClaimedBy(row.ID) == "" {
			out = append(out, row.ID)
		}
	}
	return out
}

// Cosine returns the cosine similarity of two vectors, in [-1, 1]. Zero
// vectors and vectors of unequal length score 0; the latter is never a
// valid comparison and callers are expected to reject it upstream.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb))))
}

// Matcher pairs reference rows with target rows by embedding similarity.
// Stateless; the same inputs always produce the same Assignment.
type Matcher struct {
	threshold float32
}

func NewMatcher(threshold float32) *Matcher {
	return &Matcher{threshold: threshold}
}

// Match computes all candidates at or above the threshold and accepts them
// greedily, best first. Ties break by reference id then target id so the
// result is deterministic. Rows without an embedding never participate.
func (m *Matcher) Match(reference, target *ContentSet) Assignment {
	refRows := reference.EmbeddedRows()
	targetRows := target.EmbeddedRows()

	candidates := make([]Candidate, 0, len(refRows))
	for _, ref := range refRows {
		for _, tgt := range targetRows {
			score := Cosine(ref.Embedding, tgt.Embedding)
			if score >= m.threshold {
				candidates = append(candidates, Candidate{
					ReferenceID: ref.ID,
					TargetID:    tgt.ID,
					Score:       score,
				})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].ReferenceID != candidates[j].ReferenceID {
			return candidates[i].ReferenceID < candidates[j].ReferenceID
		}
		return candidates[i].TargetID < candidates[j].TargetID
	})

	assignment := Assignment{
		Pairs:   make(map[string]Match),
		claimed: make(map[string]string),
	}
	for _, c := range candidates {
		if _, ok := assignment.Pairs[c.ReferenceID]; ok {
			continue
		}
		if _, ok := assignment.claimed[c.TargetID]; ok {
			continue
		}
		assignment.Pairs[c.ReferenceID] = Match{TargetID: c.TargetID, Score: c.Score}
		assignment.claimed[c.TargetID] = c.ReferenceID
	}
	return assignment
}
