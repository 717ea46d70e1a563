package database

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFingerprintIndexUpsertAndSearch(t *testing.T) {
	idx := NewFingerprintIndex("dct", MetricCosine)

	fps := []StoredFingerprint{
		testFingerprint("aaa", "a.jpg", 1, 0, 0),
		testFingerprint("bbb", "b.jpg", 0.9, 0.1, 0),
		testFingerprint("ccc", "c.jpg", 0, 0, 1),
	}
	if err := idx.UpsertBatch(fps); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	if idx.Count() != 3 {
		t.Errorf("Count() = %d; want 3", idx.Count())
	}
	if idx.Dim() != 3 {
		t.Errorf("Dim() = %d; want 3", idx.Dim())
	}

	matches, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Search returned %d matches; want 2", len(matches))
	}
	if matches[0].SHA256 != "aaa" || matches[0].Source != "a.jpg" {
		t.Errorf("best match = %+v; want aaa/a.jpg", matches[0])
	}
	if math.Abs(matches[0].Distance) > 1e-6 || math.Abs(matches[0].Similarity-1) > 1e-6 {
		t.Errorf("exact match distance/similarity = %v/%v; want 0/1", matches[0].Distance, matches[0].Similarity)
	}
	if matches[1].SHA256 != "bbb" {
		t.Errorf("second match = %s; want bbb", matches[1].SHA256)
	}
}

func TestFingerprintIndexUpsertReplaces(t *testing.T) {
	idx := NewFingerprintIndex("dct", MetricEuclidean)

	if err := idx.Upsert(testFingerprint("aaa", "old.jpg", 1, 1)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(testFingerprint("bbb", "b.jpg", 5, 5)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(testFingerprint("aaa", "new.jpg", 10, 10)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if idx.Count() != 2 {
		t.Errorf("Count() = %d; want 2", idx.Count())
	}
	got := idx.Get("aaa")
	if got == nil || got.Source != "new.jpg" || got.Vector[0] != 10 {
		t.Errorf("Get(aaa) = %+v; want replaced record", got)
	}

	matches, err := idx.Search([]float32{10, 10}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].SHA256 != "aaa" {
		t.Errorf("Search = %+v; want aaa", matches)
	}
	if matches[0].Similarity != -matches[0].Distance {
		t.Errorf("euclidean similarity = %v; want %v", matches[0].Similarity, -matches[0].Distance)
	}
}

func TestFingerprintIndexErrors(t *testing.T) {
	idx := NewFingerprintIndex("dct", MetricCosine)

	if _, err := idx.Search([]float32{1}, 1); !errors.Is(err, ErrIndexNotInitialized) {
		t.Errorf("Search on empty index error = %v; want ErrIndexNotInitialized", err)
	}

	if err := idx.Upsert(testFingerprint("aaa", "a.jpg", 1, 2, 3)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	tests := []struct {
		name string
		fp   StoredFingerprint
		want error
	}{
		{"wrong dimension", testFingerprint("bbb", "b.jpg", 1, 2), ErrDimensionMismatch},
		{"empty vector", StoredFingerprint{SHA256: "ccc", Algorithm: "dct"}, ErrDimensionMismatch},
		{"wrong algorithm", StoredFingerprint{SHA256: "ddd", Algorithm: "goldberg", Vector: []float32{1, 2, 3}}, ErrAlgorithmMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := idx.Upsert(tc.fp); !errors.Is(err, tc.want) {
				t.Errorf("Upsert error = %v; want %v", err, tc.want)
			}
		})
	}

	if _, err := idx.Search([]float32{1, 2}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search with wrong dimension error = %v; want ErrDimensionMismatch", err)
	}
}

func TestFingerprintIndexDelete(t *testing.T) {
	idx := NewFingerprintIndex("dct", MetricCosine)
	if err := idx.UpsertBatch([]StoredFingerprint{
		testFingerprint("aaa", "a.jpg", 1, 0),
		testFingerprint("bbb", "b.jpg", 0, 1),
	}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	if !idx.Delete("aaa") {
		t.Error("Delete(aaa) = false; want true")
	}
	if idx.Delete("aaa") {
		t.Error("second Delete(aaa) = true; want false")
	}
	if idx.Get("aaa") != nil {
		t.Error("deleted fingerprint still returned by Get")
	}

	matches, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, m := range matches {
		if m.SHA256 == "aaa" {
			t.Error("deleted fingerprint returned by Search")
		}
	}

	idx.Delete("bbb")
	if idx.Count() != 0 || idx.Dim() != 0 {
		t.Errorf("empty index has Count=%d Dim=%d; want 0/0", idx.Count(), idx.Dim())
	}
}

func TestFingerprintIndexZeroVectors(t *testing.T) {
	idx := NewFingerprintIndex("phash", MetricCosine)
	if err := idx.UpsertBatch([]StoredFingerprint{
		{SHA256: "flat", Algorithm: "phash", Vector: []float32{0, 0, 0, 0}},
		{SHA256: "half", Algorithm: "phash", Vector: []float32{1, 1, 0, 0}},
	}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	matches, err := idx.Search([]float32{0, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) == 0 || matches[0].SHA256 != "flat" || matches[0].Distance != 0 {
		t.Errorf("Search = %+v; want flat at distance 0 first", matches)
	}
}

func TestFingerprintIndexSaveLoad(t *testing.T) {
	for _, metric := range Metrics() {
		t.Run(string(metric), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fingerprints.hnsw")

			idx := NewFingerprintIndex("goldberg", metric)
			for i := range 20 {
				fp := testFingerprint(string(rune('a'+i))+"hash", "img.jpg", float32(i), float32(20-i), 1)
				fp.Algorithm = "goldberg"
				if err := idx.Upsert(fp); err != nil {
					t.Fatalf("Upsert failed: %v", err)
				}
			}

			meta, err := idx.Save(path)
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if meta.Count != 20 || meta.Dim != 3 || meta.Algorithm != "goldberg" || meta.Metric != metric {
				t.Errorf("metadata = %+v", meta)
			}

			loadedMeta, err := LoadIndexMetadata(path)
			if err != nil {
				t.Fatalf("LoadIndexMetadata failed: %v", err)
			}
			if loadedMeta.BuildID != meta.BuildID {
				t.Errorf("BuildID = %s; want %s", loadedMeta.BuildID, meta.BuildID)
			}

			loaded, err := LoadFingerprintIndex(path)
			if err != nil {
				t.Fatalf("LoadFingerprintIndex failed: %v", err)
			}
			if loaded.Count() != 20 || loaded.Dim() != 3 || loaded.Metric() != metric {
				t.Errorf("loaded index Count=%d Dim=%d Metric=%s", loaded.Count(), loaded.Dim(), loaded.Metric())
			}

			query := []float32{5, 15, 1}
			want, err := idx.Search(query, 1)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			got, err := loaded.Search(query, 1)
			if err != nil {
				t.Fatalf("Search on loaded index failed: %v", err)
			}
			if len(got) != 1 || got[0].SHA256 != want[0].SHA256 {
				t.Errorf("loaded Search = %+v; want %+v", got, want)
			}

			// The loaded index stays writable.
			extra := testFingerprint("zzz", "z.jpg", 1, 1, 1)
			extra.Algorithm = "goldberg"
			if err := loaded.Upsert(extra); err != nil {
				t.Errorf("Upsert on loaded index failed: %v", err)
			}
		})
	}
}

func TestSaveEmptyIndexRemovesFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.hnsw")

	idx := NewFingerprintIndex("dct", MetricCosine)
	if err := idx.Upsert(testFingerprint("aaa", "a.jpg", 1, 2)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	idx.Delete("aaa")
	if _, err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for _, p := range []string{path, path + metadataSuffix, path + recordsSuffix} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", p)
		}
	}
}

func TestOpenFingerprintIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.hnsw")

	idx, err := OpenFingerprintIndex(path, "dct", MetricCosine)
	if err != nil {
		t.Fatalf("OpenFingerprintIndex on missing file failed: %v", err)
	}
	if idx.Count() != 0 {
		t.Errorf("new index Count() = %d; want 0", idx.Count())
	}

	if err := idx.Upsert(testFingerprint("aaa", "a.jpg", 1, 2)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := OpenFingerprintIndex(path, "dct", MetricCosine)
	if err != nil {
		t.Fatalf("OpenFingerprintIndex failed: %v", err)
	}
	if reopened.Count() != 1 {
		t.Errorf("reopened Count() = %d; want 1", reopened.Count())
	}

	if _, err := OpenFingerprintIndex(path, "goldberg", MetricCosine); !errors.Is(err, ErrAlgorithmMismatch) {
		t.Errorf("OpenFingerprintIndex with other algorithm error = %v; want ErrAlgorithmMismatch", err)
	}
	if _, err := OpenFingerprintIndex(path, "dct", MetricDot); err == nil {
		t.Error("OpenFingerprintIndex with other metric should fail")
	}
}

func TestFingerprintIndexSaveDuringUpserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.hnsw")
	idx := NewFingerprintIndex("dct", MetricCosine)
	if err := idx.Upsert(testFingerprint("seed", "seed.jpg", 1, 0, 0)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := range 300 {
			fp := testFingerprint(fmt.Sprintf("img%03d", i), "", 1, float32(i), float32(i%7))
			if err := idx.Upsert(fp); err != nil {
				t.Errorf("Upsert %d failed: %v", i, err)
				return
			}
		}
	}()

	for saves := 0; ; saves++ {
		select {
		case <-done:
			wg.Wait()
			if saves == 0 {
				t.Log("writer finished before the first checkpoint")
			}
			return
		default:
		}

		meta, err := idx.Save(path)
		if err != nil {
			t.Fatalf("checkpoint %d: Save failed: %v", saves, err)
		}
		loaded, err := LoadFingerprintIndex(path)
		if err != nil {
			t.Fatalf("checkpoint %d: unloadable: %v", saves, err)
		}
		if loaded.Count() != meta.Count {
			t.Fatalf("checkpoint %d: loaded %d records; metadata says %d", saves, loaded.Count(), meta.Count)
		}
	}
}

func TestMetrics(t *testing.T) {
	tests := []struct {
		name     string
		metric   Metric
		a, b     []float32
		expected float64
	}{
		{"cosine identical", MetricCosine, []float32{1, 2}, []float32{2, 4}, 0},
		{"cosine opposite", MetricCosine, []float32{1, 0}, []float32{-1, 0}, 2},
		{"cosine both zero", MetricCosine, []float32{0, 0}, []float32{0, 0}, 0},
		{"cosine one zero", MetricCosine, []float32{0, 0}, []float32{1, 0}, 1},
		{"cosine length mismatch", MetricCosine, []float32{1}, []float32{1, 0}, math.Inf(1)},
		{"euclidean", MetricEuclidean, []float32{0, 0}, []float32{3, 4}, 5},
		{"euclidean length mismatch", MetricEuclidean, []float32{0}, []float32{3, 4}, math.Inf(1)},
		{"dot", MetricDot, []float32{1, 2}, []float32{3, 4}, -11},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if math.IsInf(tc.expected, 1) {
				if got := tc.metric.Distance(tc.a, tc.b); !math.IsInf(got, 1) {
					t.Errorf("Distance(%v, %v) = %v; want +Inf", tc.a, tc.b, got)
				}
				return
			}
			if got := tc.metric.Distance(tc.a, tc.b); math.Abs(got-tc.expected) > 1e-6 {
				t.Errorf("Distance(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	for _, name := range []string{"cosine", "Euclidean", " dot "} {
		if _, err := ParseMetric(name); err != nil {
			t.Errorf("ParseMetric(%q) unexpected error: %v", name, err)
		}
	}
	if _, err := ParseMetric("manhattan"); !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("ParseMetric(manhattan) error = %v; want ErrUnknownMetric", err)
	}
}

// Helper functions

func testFingerprint(sha, source string, vector ...float32) StoredFingerprint {
	return StoredFingerprint{
		SHA256:    sha,
		Algorithm: "dct",
		Source:    source,
		Vector:    vector,
	}
}
