package profile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/matsen/papersim/internal/keyword"
	"github.com/matsen/papersim/internal/pdf"
	"github.com/matsen/papersim/internal/reference"
	"github.com/matsen/papersim/internal/storage"
)

// stubExtractor returns fixed terms and records the texts it was given.
type stubExtractor struct {
	terms []string
	err   error

	mu    sync.Mutex
	texts []string
}

func (s *stubExtractor) Extract(_ context.Context, text string) ([]keyword.Keyword, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	out := make([]keyword.Keyword, len(s.terms))
	for i, t := range s.terms {
		out[i] = keyword.Keyword{Term: t, Score: float64(i + 1)}
	}
	return out, nil
}

func setupStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "papersim.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *storage.DB, interests string) string {
	t.Helper()
	u, err := db.CreateUser(context.Background(), reference.User{
		Email:     fmt.Sprintf("%s@example.org", strings.ReplaceAll(t.Name(), "/", "_")),
		Username:  "reader",
		Interests: interests,
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u.ID
}

func interestsOf(t *testing.T, db *storage.DB, id string) string {
	t.Helper()
	u, err := db.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	return u.Interests
}

func TestUpdateInterests_Window(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "")
	svc := NewService(db, &stubExtractor{terms: []string{"unused"}})

	a, err := svc.NewAmplifier(ctx, "text", id)
	if err != nil {
		t.Fatalf("NewAmplifier() error = %v", err)
	}

	steps := []struct {
		terms []string
		want  string
	}{
		{[]string{"a", "b", "c"}, "a b c"},
		{[]string{"d", "e", "f"}, "b c d e f"},
		{[]string{"f"}, "c d e f f"},
	}
	for _, step := range steps {
		if err := a.UpdateInterests(ctx, step.terms); err != nil {
			t.Fatalf("UpdateInterests(%v) error = %v", step.terms, err)
		}
		if got := interestsOf(t, db, id); got != step.want {
			t.Errorf("after %v interests = %q, want %q", step.terms, got, step.want)
		}
	}
}

func TestUpdateInterests_DropsOldest(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "x1 x2 x3 x4 x5")
	svc := NewService(db, &stubExtractor{terms: []string{"y1"}})

	a, err := svc.NewAmplifier(ctx, "text", id)
	if err != nil {
		t.Fatalf("NewAmplifier() error = %v", err)
	}
	if err := a.UpdateInterests(ctx, a.Keywords); err != nil {
		t.Fatalf("UpdateInterests() error = %v", err)
	}
	if got, want := interestsOf(t, db, id), "x2 x3 x4 x5 y1"; got != want {
		t.Errorf("interests = %q, want %q", got, want)
	}
}

func TestFromSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("exact match is a no-op", func(t *testing.T) {
		db := setupStore(t)
		id := createUser(t, db, "graph kernels")
		svc := NewService(db, &stubExtractor{terms: []string{"graph", "kernels"}})

		a, err := svc.NewAmplifier(ctx, "graph kernels", id)
		if err != nil {
			t.Fatalf("NewAmplifier() error = %v", err)
		}
		if err := a.FromSearch(ctx); err != nil {
			t.Fatalf("FromSearch() error = %v", err)
		}
		if got := interestsOf(t, db, id); got != "graph kernels" {
			t.Errorf("interests = %q, want unchanged", got)
		}
	})

	t.Run("any difference applies every keyword", func(t *testing.T) {
		db := setupStore(t)
		id := createUser(t, db, "graph kernels")
		svc := NewService(db, &stubExtractor{terms: []string{"graph", "kernels"}})

		a, err := svc.NewAmplifier(ctx, "Graph kernels", id)
		if err != nil {
			t.Fatalf("NewAmplifier() error = %v", err)
		}
		if err := a.FromSearch(ctx); err != nil {
			t.Fatalf("FromSearch() error = %v", err)
		}
		if got, want := interestsOf(t, db, id), "graph kernels graph kernels"; got != want {
			t.Errorf("interests = %q, want %q", got, want)
		}
	})
}

func TestFromPDFAndPaper_TopThree(t *testing.T) {
	ctx := context.Background()
	five := []string{"k1", "k2", "k3", "k4", "k5"}

	for _, event := range []string{EventPDF, EventPaper} {
		t.Run(event, func(t *testing.T) {
			db := setupStore(t)
			id := createUser(t, db, "old")
			svc := NewService(db, &stubExtractor{terms: five})

			a, err := svc.NewAmplifier(ctx, "document text", id)
			if err != nil {
				t.Fatalf("NewAmplifier() error = %v", err)
			}
			if event == EventPDF {
				err = a.FromPDF(ctx)
			} else {
				err = a.FromPaper(ctx)
			}
			if err != nil {
				t.Fatalf("update error = %v", err)
			}
			if got, want := interestsOf(t, db, id), "old k1 k2 k3"; got != want {
				t.Errorf("interests = %q, want %q", got, want)
			}
		})
	}
}

func TestFromPaper_FewerThanThreeKeywords(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "")
	svc := NewService(db, &stubExtractor{terms: []string{"only"}})

	a, err := svc.NewAmplifier(ctx, "only", id)
	if err != nil {
		t.Fatalf("NewAmplifier() error = %v", err)
	}
	if err := a.FromPaper(ctx); err != nil {
		t.Fatalf("FromPaper() error = %v", err)
	}
	if got := interestsOf(t, db, id); got != "only" {
		t.Errorf("interests = %q, want %q", got, "only")
	}
}

func TestNewAmplifier_ExtractionFailure(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "graphs")
	svc := NewService(db, &stubExtractor{err: keyword.ErrNoKeywords})

	_, err := svc.NewAmplifier(ctx, "", id)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("NewAmplifier() error = %v, want ErrExtraction", err)
	}
	if !errors.Is(err, keyword.ErrNoKeywords) {
		t.Errorf("NewAmplifier() error = %v, want wrapped ErrNoKeywords", err)
	}

	if _, err := svc.RecordSearch(ctx, id, ""); !errors.Is(err, ErrExtraction) {
		t.Errorf("RecordSearch() error = %v, want ErrExtraction", err)
	}
	if got := interestsOf(t, db, id); got != "graphs" {
		t.Errorf("interests = %q, want unchanged", got)
	}
}

func TestUpdate_UnknownUser(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	svc := NewService(db, &stubExtractor{terms: []string{"graphs"}})

	a, err := svc.NewAmplifier(ctx, "graphs", "nobody")
	if err != nil {
		t.Fatalf("NewAmplifier() error = %v", err)
	}
	if err := a.FromSearch(ctx); !errors.Is(err, storage.ErrUserNotFound) {
		t.Errorf("FromSearch() error = %v, want ErrUserNotFound", err)
	}
}

func TestUpdate_ConcurrentNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "")
	svc := NewService(db, &stubExtractor{terms: []string{"unused"}})

	var wg sync.WaitGroup
	errs := make(chan error, reference.MaxInterests)
	for i := 0; i < reference.MaxInterests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := svc.NewAmplifier(ctx, "text", id)
			if err != nil {
				errs <- err
				return
			}
			errs <- a.UpdateInterests(ctx, []string{fmt.Sprintf("t%d", i)})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent update error = %v", err)
		}
	}

	got := strings.Fields(interestsOf(t, db, id))
	sort.Strings(got)
	want := []string{"t0", "t1", "t2", "t3", "t4"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("interests = %v, want all of %v", got, want)
	}
}

func TestRecordPaperView(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "")
	stub := &stubExtractor{terms: []string{"graph", "kernels", "comparing", "graphs"}}
	svc := NewService(db, stub)

	p := reference.Paper{ID: "kern", Title: "Graph Kernels", Abstract: "Kernels for comparing graphs.", Authors: "Ada Lovelace"}
	a, err := svc.RecordPaperView(ctx, id, p)
	if err != nil {
		t.Fatalf("RecordPaperView() error = %v", err)
	}
	if a.Text != "Graph Kernels\nKernels for comparing graphs." {
		t.Errorf("amplifier text = %q", a.Text)
	}
	if strings.Contains(stub.texts[0], "Lovelace") {
		t.Errorf("paper view text includes authors: %q", stub.texts[0])
	}
	if got, want := interestsOf(t, db, id), "graph kernels comparing"; got != want {
		t.Errorf("interests = %q, want %q", got, want)
	}
}

func TestRecordPDF_Missing(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "graphs")
	svc := NewService(db, &stubExtractor{terms: []string{"x"}})

	_, err := svc.RecordPDF(ctx, id, filepath.Join(t.TempDir(), "upload.pdf"), 0)
	if !errors.Is(err, pdf.ErrNotFound) {
		t.Errorf("RecordPDF() error = %v, want pdf.ErrNotFound", err)
	}
	if got := interestsOf(t, db, id); got != "graphs" {
		t.Errorf("interests = %q, want unchanged", got)
	}
}

func TestRecordPDF(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "")
	stub := &stubExtractor{terms: []string{"phylogenetics", "markov", "trees", "sequence"}}
	svc := NewService(db, stub)

	a, err := svc.RecordPDF(ctx, id, filepath.Join("..", "pdf", "testdata", "two_pages.pdf"), 1)
	if err != nil {
		t.Fatalf("RecordPDF() error = %v", err)
	}
	if len(stub.texts) != 1 || !strings.Contains(stub.texts[0], "Bayesian phylogenetics") {
		t.Fatalf("extractor got %q, want first page text", stub.texts)
	}
	if strings.Contains(stub.texts[0], "influenza") {
		t.Errorf("extractor got %q, want page cap applied", stub.texts[0])
	}
	if len(a.Keywords) != 4 {
		t.Errorf("Keywords = %v, want all extracted terms", a.Keywords)
	}
	if got, want := interestsOf(t, db, id), "phylogenetics markov trees"; got != want {
		t.Errorf("interests = %q, want %q", got, want)
	}
}

func TestRecordPDF_WithYAKE(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "")
	svc := NewService(db, keyword.NewYAKE())

	a, err := svc.RecordPDF(ctx, id, filepath.Join("..", "pdf", "testdata", "two_pages.pdf"), 0)
	if err != nil {
		t.Fatalf("RecordPDF() error = %v", err)
	}
	if len(a.Keywords) < 3 {
		t.Fatalf("Keywords = %v, want at least 3", a.Keywords)
	}
	if got, want := interestsOf(t, db, id), strings.Join(a.Keywords[:3], " "); got != want {
		t.Errorf("interests = %q, want top three %q", got, want)
	}
}

func TestLockStripe(t *testing.T) {
	for _, id := range []string{"", "u1", "0b6a9f5e-7c1d-4c47-9d1a-3f4e2b8c6d10"} {
		s := stripe(id)
		if s >= lockStripes {
			t.Errorf("stripe(%q) = %d, want < %d", id, s, lockStripes)
		}
		if stripe(id) != s {
			t.Errorf("stripe(%q) not stable", id)
		}
	}
}

func TestRecordSearch_WithYAKE(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "")
	svc := NewService(db, keyword.NewYAKE())

	a, err := svc.RecordSearch(ctx, id, "bayesian phylogenetics")
	if err != nil {
		t.Fatalf("RecordSearch() error = %v", err)
	}
	if len(a.Keywords) == 0 {
		t.Fatal("no keywords extracted")
	}
	got := strings.Fields(interestsOf(t, db, id))
	if len(got) == 0 || len(got) > reference.MaxInterests {
		t.Errorf("interests = %v, want 1..%d items", got, reference.MaxInterests)
	}
}

func TestAddInterests(t *testing.T) {
	ctx := context.Background()
	db := setupStore(t)
	id := createUser(t, db, "a b c d")
	svc := NewService(db, &stubExtractor{err: errors.New("extractor must not run")})

	if err := svc.AddInterests(ctx, id, []string{"e", "f"}); err != nil {
		t.Fatalf("AddInterests() error = %v", err)
	}
	if got, want := interestsOf(t, db, id), "b c d e f"; got != want {
		t.Errorf("interests = %q, want %q", got, want)
	}
}
