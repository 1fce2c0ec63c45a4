package vectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/matsen/papersim/internal/reference"
)

// memCorpus is an in-memory CorpusSource.
type memCorpus struct {
	mu     sync.Mutex
	papers []reference.Paper
	err    error
}

func (c *memCorpus) ListPapers(ctx context.Context) ([]reference.Paper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return append([]reference.Paper(nil), c.papers...), nil
}

func (c *memCorpus) add(p reference.Paper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.papers = append(c.papers, p)
}

func (c *memCorpus) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func testCorpus() *memCorpus {
	return &memCorpus{papers: []reference.Paper{
		{ID: "p1", Title: "Graph Neural Networks", Abstract: "Message passing on graphs.", Authors: "Ada Lovelace"},
		{ID: "p2", Title: "Protein Folding", Abstract: "Predicting protein structure with deep networks.", Authors: "Alan Turing"},
		{ID: "p3", Title: "Bayesian Phylogenetics", Abstract: "Markov chain Monte Carlo for trees.", Authors: "Grace Hopper"},
		{ID: "p4", Title: "Graph Kernels", Abstract: "Kernels for comparing graphs.", Authors: "Ada Lovelace, Alan Turing"},
	}}
}

func snapshotPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cache", SnapshotFileName)
}

func TestOpen_BuildsWhenMissing(t *testing.T) {
	path := snapshotPath(t)

	idx, err := Open(context.Background(), path, testCorpus())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !idx.Ready() {
		t.Error("index should be ready after Open")
	}
	if !Exists(path) {
		t.Error("Open should persist a snapshot when none exists")
	}

	info, err := idx.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.PaperCount != 4 {
		t.Errorf("expected 4 papers, got %d", info.PaperCount)
	}
	if info.VocabularySize == 0 || info.SizeBytes == 0 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestOpen_CreatesNestedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache", SnapshotFileName)

	idx, err := Open(context.Background(), path, testCorpus())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !idx.Ready() || !Exists(path) {
		t.Error("Open should build and persist under a missing directory")
	}

	idx = New(filepath.Join(t.TempDir(), "fresh", SnapshotFileName), testCorpus())
	if err := idx.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !Exists(idx.Path()) {
		t.Error("Refresh should persist under a missing directory")
	}
}

func TestOpen_LoadsExistingSnapshot(t *testing.T) {
	path := snapshotPath(t)
	ctx := context.Background()

	if _, err := Open(ctx, path, testCorpus()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// A failing source proves the second Open does not rebuild.
	broken := &memCorpus{err: errors.New("store offline")}
	idx, err := Open(ctx, path, broken)
	if err != nil {
		t.Fatalf("Open from snapshot failed: %v", err)
	}
	if !idx.HasPaper("p3") {
		t.Error("loaded index should contain p3")
	}
}

func TestOpen_EmptyCorpus(t *testing.T) {
	path := snapshotPath(t)

	_, err := Open(context.Background(), path, &memCorpus{})
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if Exists(path) {
		t.Error("no snapshot should be written for an empty corpus")
	}
}

func TestOpen_CorruptSnapshotFallsBackToBuild(t *testing.T) {
	path := snapshotPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	idx, err := Open(context.Background(), path, testCorpus())
	if err != nil {
		t.Fatalf("Open should rebuild over a corrupt snapshot, got %v", err)
	}
	if !idx.Ready() {
		t.Error("index should be ready after fallback build")
	}

	if _, err := LoadSnapshot(path); err != nil {
		t.Errorf("rebuilt snapshot should load cleanly: %v", err)
	}
}

func TestIndex_NotReady(t *testing.T) {
	idx := New(snapshotPath(t), testCorpus())

	if _, err := idx.Similarities("graph"); !errors.Is(err, ErrIndexNotReady) {
		t.Errorf("Similarities: expected ErrIndexNotReady, got %v", err)
	}
	if _, err := idx.Similar("p1", 3); !errors.Is(err, ErrIndexNotReady) {
		t.Errorf("Similar: expected ErrIndexNotReady, got %v", err)
	}
	if _, err := idx.Info(); !errors.Is(err, ErrIndexNotReady) {
		t.Errorf("Info: expected ErrIndexNotReady, got %v", err)
	}
	if idx.HasPaper("p1") {
		t.Error("HasPaper should be false before load")
	}
}

func TestSimilarities(t *testing.T) {
	idx, err := Open(context.Background(), snapshotPath(t), testCorpus())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	t.Run("aligned to corpus order", func(t *testing.T) {
		scores, err := idx.Similarities("GRAPH")
		if err != nil {
			t.Fatalf("Similarities failed: %v", err)
		}
		if len(scores) != 4 {
			t.Fatalf("expected 4 scores, got %d", len(scores))
		}
		for i, s := range scores {
			if s.Position != i {
				t.Errorf("scores[%d].Position = %d", i, s.Position)
			}
		}
		if scores[0].Score <= 0 || scores[3].Score <= 0 {
			t.Error("graph papers should score above zero")
		}
		if scores[2].Score != 0 {
			t.Errorf("phylogenetics paper should score zero, got %v", scores[2].Score)
		}
	})

	t.Run("empty query scores zero", func(t *testing.T) {
		scores, err := idx.Similarities("")
		if err != nil {
			t.Fatalf("Similarities failed: %v", err)
		}
		for _, s := range scores {
			if s.Score != 0 {
				t.Errorf("expected zero score for %s, got %v", s.PaperID, s.Score)
			}
		}
	})

	t.Run("unknown terms score zero", func(t *testing.T) {
		scores, err := idx.Similarities("xylophone quasar")
		if err != nil {
			t.Fatalf("Similarities failed: %v", err)
		}
		for _, s := range scores {
			if s.Score != 0 {
				t.Errorf("expected zero score for %s, got %v", s.PaperID, s.Score)
			}
		}
	})
}

func TestRoundTripDeterminism(t *testing.T) {
	path := snapshotPath(t)
	ctx := context.Background()

	built, err := Open(ctx, path, testCorpus())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	reloaded, err := Open(ctx, path, &memCorpus{err: errors.New("unused")})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	for _, q := range []string{"graph kernels", "protein deep networks", "ada lovelace", ""} {
		a, err := built.Similarities(q)
		if err != nil {
			t.Fatal(err)
		}
		b, err := reloaded.Similarities(q)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("query %q: results differ after reload:\n%v\n%v", q, a, b)
		}
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus()

	idx, err := Open(ctx, snapshotPath(t), corpus)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	corpus.add(reference.Paper{ID: "p5", Title: "Quantum Annealing", Abstract: "Optimization with qubits.", Authors: "Richard Feynman"})

	if idx.HasPaper("p5") {
		t.Fatal("new paper must not be searchable before refresh")
	}
	missing, err := idx.Missing(ctx)
	if err != nil {
		t.Fatalf("Missing failed: %v", err)
	}
	if !reflect.DeepEqual(missing, []string{"p5"}) {
		t.Errorf("Missing = %v, want [p5]", missing)
	}

	if err := idx.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !idx.HasPaper("p5") {
		t.Error("new paper should be searchable after refresh")
	}

	scores, err := idx.Similarities("qubits")
	if err != nil {
		t.Fatal(err)
	}
	if scores[4].PaperID != "p5" || scores[4].Score <= 0 {
		t.Errorf("expected p5 to match 'qubits', got %+v", scores[4])
	}
}

func TestRefresh_FailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	path := snapshotPath(t)
	corpus := testCorpus()

	idx, err := Open(ctx, path, corpus)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	corpus.setErr(errors.New("store offline"))
	if err := idx.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}

	if !idx.Ready() || !idx.HasPaper("p1") {
		t.Error("in-memory index should survive a failed refresh")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("snapshot file should be unchanged after a failed refresh")
	}

	corpus.setErr(nil)
	empty := &memCorpus{}
	idx2 := New(path, empty)
	if err := idx2.Refresh(ctx); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}
	if _, err := LoadSnapshot(path); err != nil {
		t.Errorf("old snapshot should still load after empty-corpus refresh: %v", err)
	}
}

func TestRefresh_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	corpus := testCorpus()

	idx, err := Open(ctx, snapshotPath(t), corpus)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				scores, err := idx.Similarities("graph")
				if err != nil {
					t.Errorf("Similarities failed: %v", err)
					return
				}
				// Either the old (4) or the new (5) corpus, never partial.
				if n := len(scores); n != 4 && n != 5 {
					t.Errorf("saw partial state with %d scores", n)
					return
				}
			}
		}()
	}

	corpus.add(reference.Paper{ID: "p5", Title: "Graph Drawing"})
	for i := 0; i < 3; i++ {
		if err := idx.Refresh(ctx); err != nil {
			t.Errorf("Refresh failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestBuild_ProgressReporter(t *testing.T) {
	var mu sync.Mutex
	var calls, lastTotal int
	reporter := ProgressFunc(func(current, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		lastTotal = total
	})

	_, err := Open(context.Background(), snapshotPath(t), testCorpus(), WithProgressReporter(reporter))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if calls != 4 || lastTotal != 4 {
		t.Errorf("expected 4 progress calls with total 4, got %d calls, total %d", calls, lastTotal)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := New(snapshotPath(t), testCorpus())
	if err := idx.Build(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if idx.Ready() {
		t.Error("cancelled build must not install state")
	}
}

func TestSimilar(t *testing.T) {
	idx, err := Open(context.Background(), snapshotPath(t), testCorpus())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	t.Run("excludes source paper", func(t *testing.T) {
		results, err := idx.Similar("p1", 0)
		if err != nil {
			t.Fatalf("Similar failed: %v", err)
		}
		if len(results) != 3 {
			t.Errorf("expected 3 results, got %d", len(results))
		}
		for _, r := range results {
			if r.PaperID == "p1" {
				t.Error("source paper should be excluded")
			}
		}
		if results[0].PaperID != "p4" {
			t.Errorf("expected p4 (shared graph terms and author) first, got %s", results[0].PaperID)
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		results, err := idx.Similar("p1", 1)
		if err != nil {
			t.Fatalf("Similar failed: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("expected 1 result, got %d", len(results))
		}
	})

	t.Run("unknown paper", func(t *testing.T) {
		_, err := idx.Similar("nope", 3)
		if !errors.Is(err, ErrPaperNotIndexed) {
			t.Errorf("expected ErrPaperNotIndexed, got %v", err)
		}
	})
}

func TestSortByScore(t *testing.T) {
	s := []Scored{
		{PaperID: "a", Position: 0, Score: 0.1},
		{PaperID: "b", Position: 1, Score: 0.5},
		{PaperID: "c", Position: 2, Score: 0.1},
		{PaperID: "d", Position: 3, Score: 0.5},
	}
	SortByScore(s)

	var got []string
	for _, x := range s {
		got = append(got, x.PaperID)
	}
	want := []string{"b", "d", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortByScore order = %v, want %v", got, want)
	}
}
