package retrieval

import "sort"

const rrfK = 60

// fuseRRF combines any number of independently ranked candidate lists with
// Reciprocal Rank Fusion: score = Σ 1/(k + rank_i), summed across every list
// a chunk appears in (rank is 1-based within its own list).
func fuseRRF(lists ...[]Candidate) []Candidate {
	scores := make(map[string]float64)
	byID := make(map[string]Candidate)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, c := range list {
			key := c.ChunkID.String()
			if _, seen := byID[key]; !seen {
				byID[key] = c
				order = append(order, key)
			}
			scores[key] += 1.0 / float64(rrfK+rank+1)
		}
	}

	fused := make([]Candidate, 0, len(order))
	for _, key := range order {
		c := byID[key]
		c.Score = scores[key]
		fused = append(fused, c)
	}
	sortCandidates(fused)
	return fused
}

// sortCandidates orders by score descending, tie-broken by
// (document_id, chunk_index) for determinism.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		if cs[i].DocumentID != cs[j].DocumentID {
			return cs[i].DocumentID.String() < cs[j].DocumentID.String()
		}
		return cs[i].ChunkIndex < cs[j].ChunkIndex
	})
}
