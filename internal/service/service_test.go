package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
	"ccgraph/internal/repository/memory"
)

// fakeStore wraps the memory store with hooks for raw adjacency lists,
// missing labels and transport failures.
type fakeStore struct {
	*memory.Store

	mu            sync.Mutex
	rawPreds      map[int64][]int64
	unlabeled     map[int64]bool
	failAdjacency error
	sharedArgs    []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Store:     memory.New(),
		rawPreds:  make(map[int64][]int64),
		unlabeled: make(map[int64]bool),
	}
}

func (f *fakeStore) PredecessorIDs(ctx context.Context, id int64) ([]int64, error) {
	f.mu.Lock()
	raw, ok := f.rawPreds[id]
	fail := f.failAdjacency
	f.mu.Unlock()

	if fail != nil {
		return nil, &repository.TransportError{Op: "predecessors", Err: fail}
	}
	if ok {
		return raw, nil
	}
	return f.Store.PredecessorIDs(ctx, id)
}

func (f *fakeStore) ResolveLabel(ctx context.Context, id int64) (string, bool, error) {
	if f.unlabeled[id] {
		return "", false, nil
	}
	return f.Store.ResolveLabel(ctx, id)
}

func (f *fakeStore) SharedPredecessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	f.mu.Lock()
	f.sharedArgs = []int{len(ids), minShared, totalCount}
	f.mu.Unlock()
	return f.Store.SharedPredecessors(ctx, ids, minShared, totalCount)
}

// fanGraph builds: x.com -> {a,b,c}, y.com -> {a,b}, z.com -> {c},
// a.com -> b.com (seed linking to seed).
func fanGraph() *fakeStore {
	s := newFakeStore()
	for _, seed := range []string{"a.com", "b.com", "c.com"} {
		s.Link("x.com", seed)
	}
	s.Link("y.com", "a.com")
	s.Link("y.com", "b.com")
	s.Link("z.com", "c.com")
	s.Link("a.com", "b.com")
	return s
}

func newServices(st repository.GraphStore, workers int) (*Client, *Discovery, *Intersector) {
	client := NewClient(Static(st), nil)
	events := NewEventBus()
	return client, NewDiscovery(client, events, workers), NewIntersector(client, events)
}

func TestValidateSeeds(t *testing.T) {
	client, _, _ := newServices(fanGraph(), 1)

	part, err := client.ValidateSeeds(context.Background(), []string{" A.com", "zzz.invalid", "b.com", "a.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com", "a.com"}, part.Valid)
	assert.Equal(t, []string{"zzz.invalid"}, part.Missing)
}

func TestDomainLookups(t *testing.T) {
	st := fanGraph()
	client, _, _ := newServices(st, 1)
	ctx := context.Background()

	id, found, err := client.DomainToID(ctx, "X.COM")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, st.Domain("x.com"), id)

	_, found, err = client.DomainToID(ctx, "nope.example")
	require.NoError(t, err)
	assert.False(t, found)

	name, ok, err := client.IDToDomain(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x.com", name)

	preds, err := client.Predecessors(ctx, "c.com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x.com", "z.com"}, preds)

	succ, err := client.Successors(ctx, "y.com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.com", "b.com"}, succ)

	none, err := client.Predecessors(ctx, "unknown.example")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDiscoverBacklinks(t *testing.T) {
	for _, workers := range []int{1, 4} {
		_, disc, _ := newServices(fanGraph(), workers)

		t.Run("threshold two", func(t *testing.T) {
			result, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com", "b.com", "c.com"}, 2)
			require.NoError(t, err)

			assert.Equal(t, []domain.DiscoveredNode{
				{Domain: "x.com", Connections: 3, Percentage: 100},
				{Domain: "y.com", Connections: 2, Percentage: 66.67},
			}, result.Nodes())
			assert.Equal(t, []domain.DiscoveryEdge{
				{Source: "x.com", Target: "a.com"},
				{Source: "x.com", Target: "b.com"},
				{Source: "x.com", Target: "c.com"},
				{Source: "y.com", Target: "a.com"},
				{Source: "y.com", Target: "b.com"},
			}, result.Edges())
			assert.Equal(t, []string{"a.com", "b.com", "c.com"}, result.Seeds())
		})

		t.Run("seeds never appear as nodes", func(t *testing.T) {
			result, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com", "b.com", "c.com"}, 1)
			require.NoError(t, err)
			for _, n := range result.Nodes() {
				assert.False(t, result.IsSeed(n.Domain), n.Domain)
			}
			assert.Equal(t, 3, result.Len())
		})
	}
}

func TestDiscoverOutlinks(t *testing.T) {
	_, disc, _ := newServices(fanGraph(), 2)

	result, err := disc.DiscoverOutlinks(context.Background(), []string{"x.com", "y.com"}, 2)
	require.NoError(t, err)

	assert.Equal(t, []domain.DiscoveredNode{
		{Domain: "a.com", Connections: 2, Percentage: 100},
		{Domain: "b.com", Connections: 2, Percentage: 100},
	}, result.Nodes())
	assert.Equal(t, []domain.DiscoveryEdge{
		{Source: "x.com", Target: "a.com"},
		{Source: "y.com", Target: "a.com"},
		{Source: "x.com", Target: "b.com"},
		{Source: "y.com", Target: "b.com"},
	}, result.Edges())
}

func TestDiscoverEdgeCountMatchesConnections(t *testing.T) {
	_, disc, _ := newServices(fanGraph(), 3)
	result, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com", "b.com", "c.com"}, 1)
	require.NoError(t, err)

	perNode := make(map[string]int)
	for _, e := range result.Edges() {
		perNode[e.Source]++
	}
	for _, n := range result.Nodes() {
		assert.Equal(t, n.Connections, perNode[n.Domain], n.Domain)
	}
}

func TestDiscoverCountsOncePerSeed(t *testing.T) {
	st := fanGraph()
	a, x := st.Domain("a.com"), st.Domain("x.com")
	st.rawPreds[a] = []int64{x, x, x}
	_, disc, _ := newServices(st, 1)

	result, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com", "b.com"}, 1)
	require.NoError(t, err)

	nodes := result.Nodes()
	require.NotEmpty(t, nodes)
	assert.Equal(t, "x.com", nodes[0].Domain)
	assert.Equal(t, 2, nodes[0].Connections)
}

func TestDiscoverMissingSeeds(t *testing.T) {
	_, disc, _ := newServices(fanGraph(), 1)
	ctx := context.Background()

	t.Run("missing seeds excluded from denominator", func(t *testing.T) {
		result, report, err := disc.DiscoverReport(ctx, []string{"a.com", "b.com", "zzz.invalid"}, 2, domain.Backlinks)
		require.NoError(t, err)
		assert.Equal(t, []string{"zzz.invalid"}, report.Missing)
		assert.Equal(t, []string{"a.com", "b.com"}, result.Seeds())
		// x and y both link to a and b
		for _, n := range result.Nodes() {
			assert.Equal(t, 100.0, n.Percentage)
		}
	})

	t.Run("no valid seeds yields empty result", func(t *testing.T) {
		result, err := disc.DiscoverBacklinks(ctx, []string{"zzz.invalid", "nope.invalid"}, 1)
		require.NoError(t, err)
		assert.Empty(t, result.Nodes())
		assert.Empty(t, result.Edges())
		assert.Empty(t, result.Seeds())
	})

	t.Run("empty input", func(t *testing.T) {
		result, err := disc.DiscoverBacklinks(ctx, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Len())
	})
}

func TestDiscoverThresholdAboveSeedCount(t *testing.T) {
	_, disc, _ := newServices(fanGraph(), 1)
	result, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com", "b.com"}, 3)
	require.NoError(t, err)
	assert.Empty(t, result.Nodes())
	assert.Empty(t, result.Edges())
	assert.Equal(t, []string{"a.com", "b.com"}, result.Seeds())
}

func TestDiscoverInvalidArguments(t *testing.T) {
	_, disc, _ := newServices(fanGraph(), 1)
	ctx := context.Background()

	_, err := disc.DiscoverBacklinks(ctx, []string{"a.com"}, 0)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)

	_, err = disc.Discover(ctx, []string{"a.com"}, 1, domain.Direction("sideways"))
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
}

func TestDiscoverSkipsUnlabeledNeighbors(t *testing.T) {
	st := fanGraph()
	st.unlabeled[st.Domain("y.com")] = true
	_, disc, _ := newServices(st, 1)

	result, report, err := disc.DiscoverReport(context.Background(), []string{"a.com", "b.com", "c.com"}, 2, domain.Backlinks)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Anomalies)
	require.Len(t, result.Nodes(), 1)
	assert.Equal(t, "x.com", result.Nodes()[0].Domain)
	assert.Len(t, result.Edges(), 3)
}

func TestDiscoverTransportFailure(t *testing.T) {
	st := fanGraph()
	st.failAdjacency = errors.New("connection reset")
	_, disc, _ := newServices(st, 2)

	_, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com", "b.com"}, 1)
	require.Error(t, err)
	assert.True(t, repository.IsTransport(err))
}

func TestDiscoverNotReady(t *testing.T) {
	_, disc, _ := newServices(nil, 1)
	_, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com"}, 1)
	assert.ErrorIs(t, err, repository.ErrNotReady)
}

func TestDiscoverDeterministic(t *testing.T) {
	// many neighbors tied at one connection each
	st := newFakeStore()
	for i := 0; i < 50; i++ {
		st.Link(string(rune('a'+i%26))+string(rune('a'+i/26))+".net", "seed.com")
	}
	st.Link("hub.net", "seed.com")
	st.Link("hub.net", "other.com")

	_, seq, _ := newServices(st, 1)
	_, par, _ := newServices(st, 8)
	seeds := []string{"seed.com", "other.com"}

	first, err := seq.DiscoverBacklinks(context.Background(), seeds, 1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := par.DiscoverBacklinks(context.Background(), seeds, 1)
		require.NoError(t, err)
		assert.Equal(t, first.Document(), again.Document())
	}
	assert.Equal(t, "hub.net", first.Nodes()[0].Domain)
}

func TestDiscoverDuplicateSeeds(t *testing.T) {
	st := fanGraph()
	_, disc, _ := newServices(st, 1)

	result, err := disc.DiscoverBacklinks(context.Background(), []string{"c.com", "c.com"}, 2)
	require.NoError(t, err)

	// a duplicated seed is processed once per occurrence
	names := make([]string, 0)
	for _, n := range result.Nodes() {
		names = append(names, n.Domain)
		assert.Equal(t, 2, n.Connections)
	}
	assert.ElementsMatch(t, []string{"x.com", "z.com"}, names)
	assert.Equal(t, []string{"c.com", "c.com"}, result.Seeds())
}

func TestDiscoverPublishesEvents(t *testing.T) {
	client := NewClient(Static(fanGraph()), nil)
	bus := NewEventBus()
	ch := make(chan Event, 16)
	bus.Subscribe(ch)
	disc := NewDiscovery(client, bus, 1)

	_, err := disc.DiscoverBacklinks(context.Background(), []string{"a.com", "b.com"}, 1)
	require.NoError(t, err)
	close(ch)

	var types []EventType
	for ev := range ch {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventDiscoveryStarted, EventDiscoveryProgress, EventDiscoveryCompleted}, types)
}
