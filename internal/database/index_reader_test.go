package database

import (
	"context"
	"testing"
)

func TestIndexReader(t *testing.T) {
	ctx := context.Background()
	idx := NewFingerprintIndex("dct", MetricCosine)
	reader := NewIndexReader(idx)

	matches, err := reader.FindSimilar(ctx, "dct", []float32{1, 0}, 3)
	if err != nil || len(matches) != 0 {
		t.Errorf("FindSimilar on empty index = (%v, %v); want no matches", matches, err)
	}

	if err := idx.Upsert(testFingerprint("aaa", "a.jpg", 1, 0)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	tests := []struct {
		name      string
		algorithm string
		wantHas   bool
		wantCount int
	}{
		{"same algorithm", "dct", true, 1},
		{"other algorithm", "goldberg", false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			has, err := reader.Has(ctx, "aaa", tc.algorithm)
			if err != nil || has != tc.wantHas {
				t.Errorf("Has = (%v, %v); want %v", has, err, tc.wantHas)
			}
			count, err := reader.Count(ctx, tc.algorithm)
			if err != nil || count != tc.wantCount {
				t.Errorf("Count = (%d, %v); want %d", count, err, tc.wantCount)
			}
			matches, err := reader.FindSimilar(ctx, tc.algorithm, []float32{1, 0}, 3)
			if err != nil || len(matches) != tc.wantCount {
				t.Errorf("FindSimilar = (%v, %v); want %d matches", matches, err, tc.wantCount)
			}
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := reader.FindSimilar(cancelled, "dct", []float32{1, 0}, 1); err == nil {
		t.Error("FindSimilar with cancelled context should fail")
	}
}
