package store

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineDistance = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRankNearest_TiesBreakByID(t *testing.T) {
	candidates := []Candidate{
		{ID: "c", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1, 0}},
	}

	for i := 0; i < 5; i++ {
		result := RankNearest([]float32{1, 0}, candidates, 3)
		ids := result.IDs()
		if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
			t.Fatalf("expected deterministic [a b c], got %v", ids)
		}
	}
}

func TestRankNearest_Limits(t *testing.T) {
	candidates := []Candidate{{ID: "a", Vector: []float32{1}}}

	if got := RankNearest([]float32{1}, candidates, 0); len(got) != 0 {
		t.Errorf("k=0 should return nothing, got %d", len(got))
	}
	if got := RankNearest([]float32{1}, nil, 3); len(got) != 0 {
		t.Errorf("no candidates should return nothing, got %d", len(got))
	}
	got := RankNearest([]float32{1}, candidates, 3)
	if len(got) != 1 || got[0].Rank != 1 {
		t.Errorf("expected single rank-1 hit, got %+v", got)
	}
}

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float32{0.25, -1.5, 3}
	got, err := DecodeEmbedding(EncodeEmbedding(vec))
	if err != nil {
		t.Fatal(err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("decoded %v, want %v", got, vec)
		}
	}

	if _, err := DecodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
