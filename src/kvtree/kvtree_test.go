package kvtree

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.brendoncarroll.net/exp/streams"

	"github.com/poletool/pole/src/internal/testutil"
)

// mapLister serves listings from an in-memory tree, optionally with a random
// per-call delay so subtree listings complete in a scrambled order.
type mapLister struct {
	tree   map[string][]string
	errs   map[string]error
	jitter time.Duration

	mu    sync.Mutex
	calls int
}

func (l *mapLister) List(ctx context.Context, p string) ([]string, error) {
	l.mu.Lock()
	l.calls++
	d := time.Duration(0)
	if l.jitter > 0 {
		d = time.Duration(rand.Int63n(int64(l.jitter)))
	}
	l.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := l.errs[p]; err != nil {
		return nil, err
	}
	names, ok := l.tree[p]
	if !ok {
		return nil, fmt.Errorf("no such path %q", p)
	}
	return names, nil
}

func (l *mapLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func drain(ctx context.Context, it *Iterator) ([]string, error) {
	var (
		out  []string
		leaf string
	)
	for {
		if err := streams.NextUnit(ctx, it, &leaf); err != nil {
			return out, err
		}
		out = append(out, leaf)
	}
}

func TestConcrete(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	l := &mapLister{
		tree: map[string][]string{
			"/":   {"a/", "b", "c/"},
			"/a/": {"x", "y"},
			"/c/": {"z"},
		},
		jitter: 5 * time.Millisecond,
	}
	// the delays scramble which subtree's listing lands first; the output
	// order must not care
	for i := 0; i < 20; i++ {
		leaves, err := drain(ctx, NewIterator(l, ""))
		require.ErrorIs(t, err, streams.EOS())
		require.Equal(t, []string{"a/x", "a/y", "b", "c/z"}, leaves)
	}
}

func TestEmpty(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	l := &mapLister{tree: map[string][]string{"/": {}}}
	leaves, err := drain(ctx, NewIterator(l, ""))
	require.ErrorIs(t, err, streams.EOS())
	require.Empty(t, leaves)
}

func TestListingOrderPreserved(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	// the traverser must not re-sort what the lister returns
	l := &mapLister{tree: map[string][]string{
		"/":   {"b", "a/", "A"},
		"/a/": {"2", "1"},
	}}
	leaves, err := drain(ctx, NewIterator(l, ""))
	require.ErrorIs(t, err, streams.EOS())
	require.Equal(t, []string{"b", "a/2", "a/1", "A"}, leaves)
}

// genTree builds a random tree rooted at p and returns the expected leaf
// paths (relative to p) in depth-first listing order.
func genTree(rng *rand.Rand, tree map[string][]string, p string, depth int) []string {
	var names []string
	n := rng.Intn(5)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%c%d", 'a'+rng.Intn(3), i)
		if depth > 0 && rng.Intn(2) == 0 {
			names = append(names, name+"/")
		} else {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	tree[p] = names

	var leaves []string
	for _, name := range names {
		if strings.HasSuffix(name, "/") {
			for _, sub := range genTree(rng, tree, p+name, depth-1) {
				leaves = append(leaves, name+sub)
			}
		} else {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

func TestRandomTrees(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	for seed := int64(0); seed < 10; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewSource(seed))
			tree := make(map[string][]string)
			expected := genTree(rng, tree, "/", 4)
			l := &mapLister{tree: tree, jitter: 2 * time.Millisecond}

			leaves, err := drain(ctx, NewIterator(l, ""))
			require.ErrorIs(t, err, streams.EOS())
			require.Equal(t, expected, leaves)
		})
	}
}

func TestRestartable(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	l := &mapLister{tree: map[string][]string{
		"/":   {"a/", "b"},
		"/a/": {"x"},
	}}
	first, err := drain(ctx, NewIterator(l, ""))
	require.ErrorIs(t, err, streams.EOS())
	callsAfterFirst := l.callCount()
	second, err := drain(ctx, NewIterator(l, ""))
	require.ErrorIs(t, err, streams.EOS())
	require.Equal(t, first, second)
	// no caching between iterators: every listing is redone
	require.Equal(t, 2*callsAfterFirst, l.callCount())
}

func TestErrorPlacement(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	errDenied := errors.New("access denied")
	l := &mapLister{
		tree: map[string][]string{
			"/":   {"a/", "b/", "c/"},
			"/a/": {"1", "2"},
			"/c/": {"z"},
		},
		errs: map[string]error{"/b/": errDenied},
	}
	it := NewIterator(l, "")
	leaves, err := drain(ctx, it)
	require.ErrorIs(t, err, errDenied)
	// everything before the failed subtree was delivered, nothing after
	require.Equal(t, []string{"a/1", "a/2"}, leaves)

	// the error is the iterator's terminal state
	var leaf string
	require.ErrorIs(t, streams.NextUnit(ctx, it, &leaf), errDenied)
}

func TestSubPath(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	l := &mapLister{tree: map[string][]string{
		"team/":   {"x/", "y"},
		"team/x/": {"1"},
	}}
	leaves, err := drain(ctx, NewIterator(l, "team"))
	require.ErrorIs(t, err, streams.EOS())
	require.Equal(t, []string{"x/1", "y"}, leaves)
}

func TestCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(testutil.Context(t))
	defer cancel()
	tree := map[string][]string{"/": {"a", "b/", "c/", "d/"}}
	for _, c := range []string{"b", "c", "d"} {
		tree["/"+c+"/"] = []string{"x/", "y"}
		tree["/"+c+"/x/"] = []string{"1", "2"}
	}
	l := &mapLister{tree: tree, jitter: 10 * time.Millisecond}

	it := NewIterator(l, "")
	var leaf string
	require.NoError(t, streams.NextUnit(ctx, it, &leaf))
	require.Equal(t, "a", leaf)
	cancel()

	// all background listings wind down: after a grace period the lister
	// sees no further calls
	time.Sleep(50 * time.Millisecond)
	settled := l.callCount()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, settled, l.callCount())
}

func TestStopCancelsChildren(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	tree := map[string][]string{
		"/":     {"a/", "b/"},
		"/a/":   {"1", "2"},
		"/b/":   {"x/"},
		"/b/x/": {"3"},
	}
	l := &mapLister{tree: tree, jitter: 5 * time.Millisecond}

	it := NewIterator(l, "")
	var leaf string
	require.NoError(t, streams.NextUnit(ctx, it, &leaf))
	it.Stop()
	require.ErrorIs(t, streams.NextUnit(ctx, it, &leaf), context.Canceled)

	time.Sleep(50 * time.Millisecond)
	settled := l.callCount()
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, settled, l.callCount())
}
