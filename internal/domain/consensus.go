package domain

import "math"

// CosineSimilarity returns the cosine similarity between two vectors,
// defined as 1 - cosine distance, in [-1, 1]. Vectors of mismatched or
// zero length, and vectors with zero norm, yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ConsensusScore measures how much the target embedding agrees with the
// rest of the pool. It returns the arithmetic mean of cosine similarities
// between the target and every other embedding that is not vector-identical
// to it and has nonzero length.
//
// Fewer than two embeddings in the pool, or no comparable peers, yield 0.
// High values indicate the candidate is semantically close to most other
// candidates, a proxy for consensus among independent models.
func ConsensusScore(target []float64, pool [][]float64) float64 {
	if len(pool) < 2 || len(target) == 0 {
		return 0
	}

	var sum float64
	var count int
	for _, peer := range pool {
		if len(peer) == 0 || vectorsEqual(target, peer) {
			continue
		}
		sum += CosineSimilarity(target, peer)
		count++
	}
	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// vectorsEqual reports exact element-wise equality. Used to exclude the
// target's own embedding from its peer set.
func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
