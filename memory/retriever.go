package memory

import (
	"context"
	"math"
	"sort"
	"time"
)

// Retriever ranks stored chunks against a query embedding. The score combines
// cosine similarity with exponential time decay and the chunk's importance
// weight:
//
//	score = cos(query, chunk) * exp(-decayRate * ageHours / 24) * importance
//
// A decay rate of 0 disables decay entirely.
type Retriever struct {
	store     *Store
	decayRate float64
	scanLimit int
	now       func() time.Time
}

func NewRetriever(store *Store, decayRate float64, scanLimit int) *Retriever {
	if scanLimit <= 0 {
		scanLimit = 100
	}
	return &Retriever{
		store:     store,
		decayRate: decayRate,
		scanLimit: scanLimit,
		now:       time.Now,
	}
}

func (r *Retriever) decay(ageHours float64) float64 {
	if r.decayRate == 0 {
		return 1
	}
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-r.decayRate * ageHours / 24)
}

// Retrieve returns the texts of the topN highest-scoring chunks for the chat.
// Ties keep the candidate scan order (newest first); the sort is stable.
func (r *Retriever) Retrieve(ctx context.Context, chatID int64, query []float64, topN int) ([]string, error) {
	if topN <= 0 {
		return nil, nil
	}
	chunks, err := r.store.RecentChunks(ctx, chatID, r.scanLimit)
	if err != nil {
		return nil, err
	}

	now := r.now()
	type scored struct {
		text  string
		score float64
	}
	candidates := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		sim := CosineSimilarity(query, c.Embedding)
		age := now.Sub(c.CreatedAt).Hours()
		candidates = append(candidates, scored{
			text:  c.Text,
			score: sim * r.decay(age) * c.Importance,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.text)
	}
	return out, nil
}
