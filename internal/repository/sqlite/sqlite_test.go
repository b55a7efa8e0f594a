package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// seedGraph loads vertices and arcs through a single import
func seedGraph(t *testing.T, repo *Repository, labels map[int64]string, arcs [][2]int64) {
	t.Helper()
	ctx := context.Background()
	im, err := repo.BeginImport(ctx)
	assertNoError(t, err)
	defer im.Rollback()

	for id, label := range labels {
		assertNoError(t, im.AddVertex(ctx, id, label))
	}
	for _, a := range arcs {
		assertNoError(t, im.AddArc(ctx, a[0], a[1]))
	}
	assertNoError(t, im.Commit())
}

// assertNoError fails the test if err is not nil
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertEqual fails the test if expected != actual
func assertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

// graph: 1=com.a 2=com.b 3=com.c 4=com.hub 5=com.half
var (
	testLabels = map[int64]string{
		1: "com.a",
		2: "com.b",
		3: "com.c",
		4: "com.hub",
		5: "com.half",
	}
	testArcs = [][2]int64{
		{4, 1}, {4, 2}, {4, 3},
		{5, 1}, {5, 2},
		{1, 2},
	}
)

// ============================================================================
// Resolution
// ============================================================================

func TestResolveID(t *testing.T) {
	repo := newTestRepo(t)
	seedGraph(t, repo, testLabels, testArcs)
	ctx := context.Background()

	t.Run("known label", func(t *testing.T) {
		id, err := repo.ResolveID(ctx, "com.hub")
		assertNoError(t, err)
		assertEqual(t, int64(4), id)
	})

	t.Run("unknown label returns not found", func(t *testing.T) {
		id, err := repo.ResolveID(ctx, "org.missing")
		assertNoError(t, err)
		assertEqual(t, domain.NotFound, id)
	})
}

func TestResolveLabel(t *testing.T) {
	repo := newTestRepo(t)
	seedGraph(t, repo, testLabels, testArcs)
	ctx := context.Background()

	label, ok, err := repo.ResolveLabel(ctx, 5)
	assertNoError(t, err)
	assertEqual(t, true, ok)
	assertEqual(t, "com.half", label)

	_, ok, err = repo.ResolveLabel(ctx, 500)
	assertNoError(t, err)
	assertEqual(t, false, ok)
}

// ============================================================================
// Adjacency
// ============================================================================

func TestAdjacency(t *testing.T) {
	repo := newTestRepo(t)
	seedGraph(t, repo, testLabels, testArcs)
	ctx := context.Background()

	t.Run("predecessors are sorted", func(t *testing.T) {
		ids, err := repo.PredecessorIDs(ctx, 2)
		assertNoError(t, err)
		assertEqual(t, []int64{1, 4, 5}, ids)
	})

	t.Run("successors", func(t *testing.T) {
		ids, err := repo.SuccessorIDs(ctx, 4)
		assertNoError(t, err)
		assertEqual(t, []int64{1, 2, 3}, ids)
	})

	t.Run("no neighbors is an empty slice", func(t *testing.T) {
		ids, err := repo.SuccessorIDs(ctx, 3)
		assertNoError(t, err)
		assertEqual(t, []int64{}, ids)
	})
}

func TestDuplicateArcsIgnored(t *testing.T) {
	repo := newTestRepo(t)
	seedGraph(t, repo, testLabels, [][2]int64{{4, 1}, {4, 1}})

	stats, err := repo.Stats(context.Background())
	assertNoError(t, err)
	assertEqual(t, repository.Stats{Vertices: 5, Arcs: 1}, stats)
}

// ============================================================================
// Shared neighbors
// ============================================================================

func TestSharedPredecessors(t *testing.T) {
	repo := newTestRepo(t)
	seedGraph(t, repo, testLabels, testArcs)
	ctx := context.Background()
	seeds := []int64{1, 2, 3}

	tests := []struct {
		name      string
		ids       []int64
		minShared int
		want      []int64
	}{
		{"all seeds", seeds, 3, []int64{4}},
		{"two of three ordered by count", seeds, 2, []int64{4, 5}},
		{"any seed", seeds, 1, []int64{4, 5, 1}},
		{"duplicates count once", []int64{3, 3}, 2, []int64{}},
		{"no ids", nil, 1, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.SharedPredecessors(ctx, tt.ids, tt.minShared, len(tt.ids))
			assertNoError(t, err)
			assertEqual(t, tt.want, got)
		})
	}
}

func TestSharedSuccessors(t *testing.T) {
	repo := newTestRepo(t)
	seedGraph(t, repo, testLabels, testArcs)

	got, err := repo.SharedSuccessors(context.Background(), []int64{4, 5}, 2, 2)
	assertNoError(t, err)
	assertEqual(t, []int64{1, 2}, got)
}

// ============================================================================
// Metadata and lifecycle
// ============================================================================

func TestMetadata(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v, err := repo.GetMetadata(ctx, "version")
	assertNoError(t, err)
	assertEqual(t, "", v)

	assertNoError(t, repo.SetMetadata(ctx, "version", "cc-main-2024-feb-apr-may"))
	assertNoError(t, repo.SetMetadata(ctx, "version", "cc-main-2024-nov-dec-jan"))

	v, err = repo.GetMetadata(ctx, "version")
	assertNoError(t, err)
	assertEqual(t, "cc-main-2024-nov-dec-jan", v)
}

func TestClear(t *testing.T) {
	repo := newTestRepo(t)
	seedGraph(t, repo, testLabels, testArcs)
	ctx := context.Background()

	assertNoError(t, repo.Clear(ctx))
	stats, err := repo.Stats(ctx)
	assertNoError(t, err)
	assertEqual(t, repository.Stats{}, stats)
}

func TestImportRollback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	im, err := repo.BeginImport(ctx)
	assertNoError(t, err)
	assertNoError(t, im.AddVertex(ctx, 1, "com.a"))
	if err := im.AddVertex(ctx, 2, "  "); err == nil {
		t.Fatal("expected error for empty label")
	}
	assertNoError(t, im.Rollback())

	stats, err := repo.Stats(ctx)
	assertNoError(t, err)
	assertEqual(t, int64(0), stats.Vertices)
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	repo, err := New(path)
	assertNoError(t, err)
	seedGraph(t, repo, testLabels, testArcs)
	assertNoError(t, repo.Close())
	assertNoError(t, repo.Close())

	reopened, err := New(path)
	assertNoError(t, err)
	defer reopened.Close()

	id, err := reopened.ResolveID(context.Background(), "com.c")
	assertNoError(t, err)
	assertEqual(t, int64(3), id)
	assertEqual(t, path, reopened.Path())
}
