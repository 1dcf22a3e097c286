package usecase

import (
	"context"
	"fmt"
	"math"

	"docrag/internal/domain"
)

// EvalCase is one labelled query: the ids a good retrieval should return.
type EvalCase struct {
	Query    string   `yaml:"query" json:"query"`
	Relevant []string `yaml:"relevant" json:"relevant"`
}

type EvalResult struct {
	Query          string   `json:"query"`
	Retrieved      []string `json:"retrieved"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	ReciprocalRank float64  `json:"reciprocal_rank"`
	NDCG           float64  `json:"ndcg"`
}

// EvalReport averages the per-query metrics.
type EvalReport struct {
	Results   []EvalResult `json:"results"`
	Precision float64      `json:"precision"`
	Recall    float64      `json:"recall"`
	MRR       float64      `json:"mrr"`
	NDCG      float64      `json:"ndcg"`
}

// Retriever is satisfied by RetrieveUseCase.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (domain.QueryResult, error)
}

// Evaluate runs every case through the retriever. The first retrieval error
// aborts the run.
func Evaluate(ctx context.Context, r Retriever, cases []EvalCase) (*EvalReport, error) {
	report := &EvalReport{Results: make([]EvalResult, 0, len(cases))}
	if len(cases) == 0 {
		return report, nil
	}

	for _, c := range cases {
		result, err := r.Retrieve(ctx, c.Query)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", c.Query, err)
		}
		ids := result.IDs()

		res := EvalResult{
			Query:          c.Query,
			Retrieved:      ids,
			Precision:      PrecisionAtK(ids, c.Relevant),
			Recall:         RecallAtK(ids, c.Relevant),
			ReciprocalRank: ReciprocalRank(ids, c.Relevant),
			NDCG:           NDCG(ids, c.Relevant),
		}
		report.Results = append(report.Results, res)
		report.Precision += res.Precision
		report.Recall += res.Recall
		report.MRR += res.ReciprocalRank
		report.NDCG += res.NDCG
	}

	n := float64(len(cases))
	report.Precision /= n
	report.Recall /= n
	report.MRR /= n
	report.NDCG /= n
	return report, nil
}

func PrecisionAtK(retrieved, relevant []string) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	return float64(countRelevant(retrieved, relevant)) / float64(len(retrieved))
}

func RecallAtK(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	return float64(countRelevant(retrieved, relevant)) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant id, or 0.
func ReciprocalRank(retrieved, relevant []string) float64 {
	set := toSet(relevant)
	for i, id := range retrieved {
		if set[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCG uses binary relevance.
func NDCG(retrieved, relevant []string) float64 {
	set := toSet(relevant)
	var dcg float64
	for i, id := range retrieved {
		if set[id] {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}

	ideal := min(len(relevant), len(retrieved))
	var idcg float64
	for i := 0; i < ideal; i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func countRelevant(retrieved, relevant []string) int {
	set := toSet(relevant)
	hits := 0
	for _, id := range retrieved {
		if set[id] {
			hits++
		}
	}
	return hits
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
