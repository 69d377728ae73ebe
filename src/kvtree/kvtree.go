// Package kvtree walks a remotely listed, directory-shaped key namespace
// and produces every leaf path beneath a starting point.
//
// Listing one level costs a network round trip, so the walk overlaps the
// round trips of sibling subtrees: every container child found at a level
// starts producing in the background immediately, while output is still
// emitted strictly in depth-first lexicographic order.
package kvtree

import (
	"context"
	"strings"

	"go.brendoncarroll.net/exp/streams"

	"github.com/poletool/pole/src/prefetch"
)

const Sep = '/'

// Lister lists the immediate children of a path.
//
// Names ending in Sep are containers with further children beneath them;
// all other names are leaves.  The returned slice must be sorted
// lexicographically.  List must be safe to call concurrently for distinct
// paths.
type Lister interface {
	List(ctx context.Context, p string) ([]string, error)
}

// a child is either a leaf (sub == nil) or a container whose subtree is
// already being produced in the background.
type child struct {
	name string
	sub  *prefetch.Stream[string]
}

var _ streams.Iterator[string] = &Iterator{}

// Iterator yields the path of every leaf under p, relative to p, in
// depth-first lexicographic order.  Each Iterator performs a fresh set of
// listings: nothing is cached or shared between iterators.
//
// The first call to Next lists p and starts one background producer per
// container child; that work is bound to the ctx of that first call, so the
// caller should cancel it if the iterator is abandoned before exhaustion.
//
// A name listed as both a leaf and a container is undefined input; both
// entries are walked as-is, no normalization is attempted.
type Iterator struct {
	lister Lister
	p      string

	children []child
	pos      int
	done     error
}

func NewIterator(l Lister, p string) *Iterator {
	if !strings.HasSuffix(p, string(Sep)) {
		p += string(Sep)
	}
	return &Iterator{lister: l, p: p}
}

func (it *Iterator) Next(ctx context.Context, dst []string) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if it.done != nil {
		return 0, it.done
	}
	if it.children == nil {
		if err := it.init(ctx); err != nil {
			return 0, it.fail(err)
		}
	}
	for it.pos < len(it.children) {
		c := &it.children[it.pos]
		if c.sub == nil {
			dst[0] = c.name
			it.pos++
			return 1, nil
		}
		var sub string
		err := streams.NextUnit(ctx, c.sub, &sub)
		if streams.IsEOS(err) {
			c.sub.Stop()
			it.pos++
			continue
		}
		if err != nil {
			return 0, it.fail(err)
		}
		dst[0] = c.name + sub
		return 1, nil
	}
	it.done = streams.EOS()
	return 0, it.done
}

// init performs the frame's single listing and fans out the container
// children.  The subtree producers all start here, before any of them is
// drained; there is deliberately no ceiling on how many run at once, which
// mirrors the upstream behavior but can amount to a lot of simultaneous
// requests on very wide trees.
func (it *Iterator) init(ctx context.Context) error {
	names, err := it.lister.List(ctx, it.p)
	if err != nil {
		return err
	}
	it.children = make([]child, 0, len(names))
	for _, name := range names {
		c := child{name: name}
		if strings.HasSuffix(name, string(Sep)) {
			c.sub = prefetch.New(ctx, NewIterator(it.lister, it.p+name), 0)
		}
		it.children = append(it.children, c)
	}
	return nil
}

// Stop cancels any background work the iterator started.  The iterator is
// terminated: subsequent calls to Next return context.Canceled.
func (it *Iterator) Stop() {
	if it.done == nil {
		it.done = context.Canceled
	}
	it.stopChildren()
}

// fail latches err as the iterator's terminal state and cancels every
// subtree producer that was started but will now never be drained.
func (it *Iterator) fail(err error) error {
	it.done = err
	it.stopChildren()
	return err
}

func (it *Iterator) stopChildren() {
	for i := it.pos; i < len(it.children); i++ {
		if it.children[i].sub != nil {
			it.children[i].sub.Stop()
		}
	}
}

// ForEach calls fn for every leaf path under p, in order.
func ForEach(ctx context.Context, l Lister, p string, fn func(leaf string) error) error {
	it := NewIterator(l, p)
	defer it.Stop()
	var leaf string
	for {
		if err := streams.NextUnit(ctx, it, &leaf); err != nil {
			if streams.IsEOS(err) {
				return nil
			}
			return err
		}
		if err := fn(leaf); err != nil {
			return err
		}
	}
}
