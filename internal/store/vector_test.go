package store_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/store"
	"github.com/starford/mimir/internal/testutil"
)

func TestCosineSimilarity(t *testing.T) {
	db := testutil.TestStore(t)

	sim, err := db.CosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim-1.0) > 1e-6 {
		t.Errorf("identical vectors: sim = %f, want 1", sim)
	}

	sim, err = db.CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim) > 1e-6 {
		t.Errorf("orthogonal vectors: sim = %f, want 0", sim)
	}

	ab, err := db.CosineSimilarity([]float32{1, 0, 0}, []float32{0.5, 0.5, 0})
	if err != nil {
		t.Fatal(err)
	}
	ba, err := db.CosineSimilarity([]float32{0.5, 0.5, 0}, []float32{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ab-ba) > 1e-6 {
		t.Errorf("similarity not symmetric: %f vs %f", ab, ba)
	}

	if _, err := db.CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); !errors.Is(err, apperr.ErrDimension) {
		t.Fatalf("dimension mismatch err = %v, want ErrDimension", err)
	}
}

func TestSetEmbeddingAndCoverage(t *testing.T) {
	db := testutil.TestStore(t)
	testutil.MustUpsert(t, db, testutil.Entry("a", "pattern", "A", nil, "a"))
	testutil.MustUpsert(t, db, testutil.Entry("b", "pattern", "B", nil, "b"))

	if err := db.SetEmbedding("a", []float32{1, 0}, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	with, total, err := db.EmbeddingCoverage()
	if err != nil {
		t.Fatal(err)
	}
	if with != 1 || total != 2 {
		t.Errorf("coverage = %d/%d, want 1/2", with, total)
	}

	if err := db.SetEmbedding("missing", []float32{1, 0}, time.Now().UTC()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("set on missing entry err = %v, want ErrNotFound", err)
	}
}

func TestSimilarPairsBand(t *testing.T) {
	db := testutil.TestStore(t)

	// Three embedded entries: a and b identical, c orthogonal to both.
	for _, fix := range []struct {
		id  string
		vec []float32
	}{
		{"a", []float32{1, 0}},
		{"b", []float32{1, 0}},
		{"c", []float32{0, 1}},
	} {
		e := testutil.Entry(fix.id, "pattern", fix.id, nil, fix.id)
		e.Embedding = fix.vec
		testutil.MustUpsert(t, db, e)
	}
	// An entry without a vector never participates.
	testutil.MustUpsert(t, db, testutil.Entry("plain", "pattern", "Plain", nil, "plain"))

	pairs, err := db.SimilarPairs(0.92, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	p := pairs[0]
	if p.ID1 != "a" || p.ID2 != "b" {
		t.Errorf("pair = %s/%s, want a/b", p.ID1, p.ID2)
	}
	if p.ID1 == p.ID2 {
		t.Error("self pair emitted")
	}

	// The lower bound is exclusive: a/b at similarity 1.0 is outside (0.0, 0.5].
	pairs, err = db.SimilarPairs(0.0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pairs {
		if p.Similarity > 0.5 {
			t.Errorf("pair %s/%s sim %f above band max", p.ID1, p.ID2, p.Similarity)
		}
	}
}

func TestSimilarPairsReportsIdenticalVectors(t *testing.T) {
	db := testutil.TestStore(t)

	// Float32 rounding can push the computed self-similarity of a messy
	// vector past 1.0; such pairs must still land in the top band.
	vec := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	for _, id := range []string{"a", "b"} {
		e := testutil.Entry(id, "pattern", id, nil, id)
		e.Embedding = vec
		testutil.MustUpsert(t, db, e)
	}

	pairs, err := db.SimilarPairs(0.92, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want the identical a/b pair", len(pairs))
	}
	p := pairs[0]
	if p.ID1 != "a" || p.ID2 != "b" {
		t.Errorf("pair = %s/%s, want a/b", p.ID1, p.ID2)
	}
	if p.Similarity > 1.0 {
		t.Errorf("similarity = %v, want clamped to at most 1.0", p.Similarity)
	}
	if p.Similarity < 0.999 {
		t.Errorf("similarity = %v, want ~1 for identical vectors", p.Similarity)
	}
}

func TestSearchSimilar(t *testing.T) {
	db := testutil.TestStore(t)
	for _, fix := range []struct {
		id, category string
		tags         []string
		vec          []float32
	}{
		{"close-pattern", "pattern", []string{"go"}, []float32{1, 0}},
		{"close-decision", "decision", []string{"infra"}, []float32{0.9, 0.1}},
		{"far-away", "pattern", []string{"go"}, []float32{0, 1}},
	} {
		e := testutil.Entry(fix.id, fix.category, fix.id, fix.tags, "body "+fix.id)
		e.Embedding = fix.vec
		testutil.MustUpsert(t, db, e)
	}

	got, err := db.SearchSimilar([]float32{1, 0}, store.SimilarFilter{Threshold: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %v, want 2 above threshold", got)
	}
	if got[0].ID != "close-pattern" {
		t.Errorf("ranking: first = %s", got[0].ID)
	}

	got, err = db.SearchSimilar([]float32{1, 0}, store.SimilarFilter{Threshold: 0.7, Category: "decision"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "close-decision" {
		t.Errorf("category filter: %v", got)
	}

	got, err = db.SearchSimilar([]float32{1, 0}, store.SimilarFilter{Threshold: 0.7, Tags: []string{"infra"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "close-decision" {
		t.Errorf("tag filter: %v", got)
	}
}

func TestSearchSimilarDateFilter(t *testing.T) {
	db := testutil.TestStore(t)

	stale := testutil.Entry("stale", "pattern", "Stale", nil, "stale body")
	stale.Embedding = []float32{1, 0}
	stale.Updated = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testutil.MustUpsert(t, db, stale)
	fresh := testutil.Entry("fresh", "pattern", "Fresh", nil, "fresh body")
	fresh.Embedding = []float32{1, 0}
	testutil.MustUpsert(t, db, fresh)

	got, err := db.SearchSimilar([]float32{1, 0}, store.SimilarFilter{
		Threshold: 0.7,
		DateAfter: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("date filter: %v", got)
	}
}
