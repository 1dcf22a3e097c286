package store

import (
	"cmp"
	"math"
	"slices"

	"docrag/internal/domain"
)

// Candidate is a stored record considered by a brute-force query.
type Candidate struct {
	ID     string
	Text   string
	Vector []float32
}

// CosineDistance returns 1 - cosine similarity. A zero-magnitude vector is
// treated as orthogonal to everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))
}

// RankNearest scores every candidate against query and returns the k nearest,
// ordered by ascending distance. Ties break by id.
func RankNearest(query []float32, candidates []Candidate, k int) domain.QueryResult {
	if k <= 0 || len(candidates) == 0 {
		return domain.QueryResult{}
	}

	hits := make([]domain.Hit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, domain.Hit{
			ID:       c.ID,
			Text:     c.Text,
			Distance: CosineDistance(query, c.Vector),
		})
	}
	return rankHits(hits, k)
}

// rankHits orders hits, truncates to k and assigns 1-based ranks.
func rankHits(hits []domain.Hit, k int) domain.QueryResult {
	slices.SortFunc(hits, func(a, b domain.Hit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if k > len(hits) {
		k = len(hits)
	}
	result := make(domain.QueryResult, k)
	for i := 0; i < k; i++ {
		result[i] = hits[i]
		result[i].Rank = i + 1
	}
	return result
}
