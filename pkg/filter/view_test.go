package filter

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtgtree/gtgtree/pkg/tree"
)

type proxy = tree.Node[uuid.UUID, *tree.Node[string, string]]

// shape maps every source id shown in the view to the source id of its
// proxy parent, "" for roots.
func shape(v *View[string, string]) map[string]string {
	out := make(map[string]string)
	v.Walk(func(p *proxy) bool {
		anchor := ""
		if parent := p.Parent(); parent != nil {
			anchor = parent.Value.ID()
		}
		out[p.Value.ID()] = anchor
		return true
	})
	return out
}

func add(t *testing.T, s *tree.Store[string, string], id, value string) {
	t.Helper()
	require.NoError(t, s.Add(tree.NewNode(id, value)))
}

func TestView_BlockingScenario(t *testing.T) {
	s := tree.NewStore[string, string]()
	v := New(s, hasOne, true)

	add(t, s, "y", "1")
	add(t, s, "cyn", "0")
	add(t, s, "cyy", "1")
	add(t, s, "cny", "1")
	add(t, s, "n", "0")

	add(t, s, "pary", "1")
	require.NoError(t, s.Parent("pary", "y"))
	require.NoError(t, s.Unparent("pary", "y"))

	require.NoError(t, s.Parent("cyn", "y"))
	require.NoError(t, s.Parent("cyy", "y"))
	require.NoError(t, s.Parent("cny", "n"))

	want := " └ 1 (y)\n" +
		"    └ 1 (cyy)\n" +
		" └ 1 (pary)\n"
	assert.Equal(t, want, v.String())
	assert.Equal(t, 3, v.Count(false))
	assert.Equal(t, 2, v.Count(true))
}

func TestView_NonBlockingIncrementalMatchesInitial(t *testing.T) {
	s := tree.NewStore[string, string]()
	partial := New(s, hasOne, false)

	add(t, s, "p", "0")
	add(t, s, "yc", "1")
	add(t, s, "ycc", "1")
	require.NoError(t, s.Parent("ycc", "yc"))
	require.NoError(t, s.Parent("yc", "p"))

	initial := New(s, hasOne, false)

	want := " └ 1 (yc)\n" +
		"    └ 1 (ycc)\n"
	assert.Equal(t, want, partial.String())
	assert.Equal(t, want, initial.String())
}

func TestView_BlockingHidesBehindNonMatch(t *testing.T) {
	s := chain(t, "1", "0", "1")

	v := New(s, hasOne, true)
	assert.Equal(t, map[string]string{"a": ""}, shape(v))
	_, ok := v.ProxyFor("c")
	assert.False(t, ok)
}

func TestView_NonBlockingSkipsNonMatch(t *testing.T) {
	s := chain(t, "1", "0", "1")
	v := New(s, hasOne, false)
	assert.Equal(t, map[string]string{"a": "", "c": "a"}, shape(v))

	s2 := chain(t, "0", "0", "1")
	v2 := New(s2, hasOne, false)
	assert.Equal(t, map[string]string{"c": ""}, shape(v2))
}

func TestView_NilPredicateMirrorsSource(t *testing.T) {
	s := chain(t, "x", "y", "z")
	v := New[string, string](s, nil, true)
	assert.Equal(t, s.String(), v.String())

	require.NoError(t, s.Remove("b"))
	assert.Equal(t, map[string]string{"a": ""}, shape(v))
	_, ok := v.ProxyFor("c")
	assert.False(t, ok)
}

func TestView_NestedViews(t *testing.T) {
	s := tree.NewStore[string, string]()
	inner := New[string, string](s, nil, true, WithName("inner"))
	outer := New[uuid.UUID, *tree.Node[string, string]](inner, nil, true, WithName("outer"))

	add(t, s, "y", "1")
	add(t, s, "cy", "1")
	require.NoError(t, s.Parent("cy", "y"))

	want := " └ 1 (y)\n" +
		"    └ 1 (cy)\n"
	assert.Equal(t, want, inner.String())
	assert.Equal(t, want, outer.String())

	require.NoError(t, s.Remove("y"))
	assert.Equal(t, 0, outer.Count(false))
}

func TestView_ModifiedReclassifiesSubtree(t *testing.T) {
	s := chain(t, "1", "1", "1")
	v := New(s, hasOne, true)
	require.Len(t, shape(v), 3)

	b, err := s.Get("b")
	require.NoError(t, err)
	b.Value = "0"
	require.NoError(t, s.Touch("b"))
	assert.Equal(t, map[string]string{"a": ""}, shape(v))

	v.SetBlocking(false)
	assert.Equal(t, map[string]string{"a": "", "c": "a"}, shape(v))

	b.Value = "1"
	require.NoError(t, s.Touch("b"))
	assert.Equal(t, map[string]string{"a": "", "b": "a", "c": "b"}, shape(v))
}

func TestView_SetPredicate(t *testing.T) {
	s := chain(t, "1", "0", "1")
	v := New[string, string](s, nil, true)
	assert.Len(t, shape(v), 3)

	v.SetPredicate(hasOne)
	assert.Equal(t, map[string]string{"a": ""}, shape(v))
	assert.True(t, v.Blocking())
	assert.NotNil(t, v.Predicate())
}

func TestView_EventsFlushAfterReacting(t *testing.T) {
	s := chain(t, "1", "1", "0")
	v := New(s, hasOne, false)
	require.Equal(t, map[string]string{"a": "", "b": "a"}, shape(v))

	var kinds []tree.EventKind
	var parentGone bool
	v.Subscribe(func(ev tree.Event[uuid.UUID, *tree.Node[string, string]]) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == tree.EventAdded {
			// The view has finished reacting before its first event goes out.
			_, ok := v.ProxyFor("a")
			parentGone = !ok
		}
	})

	a, err := s.Get("a")
	require.NoError(t, err)
	a.Value = "0"
	require.NoError(t, s.Touch("a"))

	assert.True(t, parentGone)
	assert.Equal(t, []tree.EventKind{tree.EventAdded, tree.EventParentRemoved, tree.EventRemoved}, kinds)
	assert.Equal(t, map[string]string{"b": ""}, shape(v))
}

func TestView_Close(t *testing.T) {
	s := tree.NewStore[string, string]()
	v := New(s, hasOne, true)
	add(t, s, "a", "1")
	v.Close()
	add(t, s, "b", "1")
	assert.Equal(t, map[string]string{"a": ""}, shape(v))
}

func TestView_ReparentKeepsSourceOrder(t *testing.T) {
	s := tree.NewStore[string, string]()
	v := New(s, hasOne, false)
	add(t, s, "p", "0")
	add(t, s, "q", "1")
	add(t, s, "x", "1")
	add(t, s, "y", "1")

	require.NoError(t, s.Parent("x", "p"))
	require.NoError(t, s.Parent("y", "p"))

	want := " └ 1 (x)\n" +
		" └ 1 (y)\n" +
		" └ 1 (q)\n"
	assert.Equal(t, want, v.String())
	fresh := New(s, hasOne, false)
	assert.Equal(t, fresh.String(), v.String())
}

func TestView_ReincludedChildKeepsPosition(t *testing.T) {
	s := tree.NewStore[string, string]()
	add(t, s, "a", "1")
	require.NoError(t, s.AddChild(tree.NewNode("x", "0"), "a"))
	require.NoError(t, s.AddChild(tree.NewNode("y", "1"), "a"))
	v := New(s, hasOne, true)
	require.Equal(t, " └ 1 (a)\n    └ 1 (y)\n", v.String())

	x, err := s.Get("x")
	require.NoError(t, err)
	x.Value = "1"
	require.NoError(t, s.Touch("x"))

	want := " └ 1 (a)\n" +
		"    └ 1 (x)\n" +
		"    └ 1 (y)\n"
	assert.Equal(t, want, v.String())
}

func TestView_MoveRootReordersProxies(t *testing.T) {
	s := tree.NewStore[string, string]()
	v := New(s, hasOne, false)
	nested := New[uuid.UUID, *tree.Node[string, string]](v, nil, true)
	add(t, s, "a", "1")
	add(t, s, "b", "0")
	add(t, s, "c", "1")

	require.NoError(t, s.MoveRoot("c", 0))

	want := " └ 1 (c)\n" +
		" └ 1 (a)\n"
	assert.Equal(t, want, v.String())
	assert.Equal(t, want, nested.String())
}

func TestView_IncrementalEqualsResync(t *testing.T) {
	for _, blocking := range []bool{true, false} {
		t.Run(fmt.Sprintf("blocking=%v", blocking), func(t *testing.T) {
			rng := rand.New(rand.NewSource(11))
			s := tree.NewStore[string, string]()
			v := New(s, hasOne, blocking)
			nested := New[uuid.UUID, *tree.Node[string, string]](v, nil, true)

			var live []string
			next := 0
			value := func() string {
				if rng.Intn(3) == 0 {
					return "0"
				}
				return "1"
			}
			pick := func() *tree.Node[string, string] {
				if len(live) == 0 {
					return nil
				}
				n, err := s.Get(live[rng.Intn(len(live))])
				require.NoError(t, err)
				return n
			}

			for step := 0; step < 1500; step++ {
				switch rng.Intn(8) {
				case 0:
					id := fmt.Sprintf("n%d", next)
					next++
					require.NoError(t, s.Add(tree.NewNode(id, value())))
				case 1:
					if p := pick(); p != nil {
						id := fmt.Sprintf("n%d", next)
						next++
						require.NoError(t, s.AddChild(tree.NewNode(id, value()), p.ID()))
					}
				case 2:
					if rng.Intn(3) == 0 {
						if n := pick(); n != nil {
							require.NoError(t, s.Remove(n.ID()))
						}
					}
				case 3:
					roots := s.Roots()
					p := pick()
					if len(roots) > 0 && p != nil {
						r := roots[rng.Intn(len(roots))]
						if !p.HasAncestor(r.ID()) {
							require.NoError(t, s.Parent(r.ID(), p.ID()))
						}
					}
				case 4:
					if n := pick(); n != nil && n.Parent() != nil {
						require.NoError(t, s.Unparent(n.ID(), n.Parent().ID()))
					}
				case 5:
					if n := pick(); n != nil {
						n.Value = value()
						require.NoError(t, s.Touch(n.ID()))
					}
				case 6:
					if roots := s.Roots(); len(roots) > 1 {
						r := roots[rng.Intn(len(roots))]
						require.NoError(t, s.MoveRoot(r.ID(), rng.Intn(len(roots))))
					}
				case 7:
					if p := pick(); p != nil {
						id := fmt.Sprintf("n%d", next)
						next++
						at := rng.Intn(len(p.Children()) + 1)
						require.NoError(t, s.AddChildAt(tree.NewNode(id, value()), p.ID(), at))
					}
				}

				live = live[:0]
				s.Walk(func(n *tree.Node[string, string]) bool {
					live = append(live, n.ID())
					return true
				})

				fresh := New(s, hasOne, blocking)
				require.Equal(t, shape(fresh), shape(v), "step %d", step)
				require.Equal(t, fresh.String(), v.String(), "step %d", step)
				require.Equal(t, len(shape(v)), v.Count(false), "step %d", step)
				require.Equal(t, v.String(), nested.String(), "step %d", step)
				fresh.Close()
			}
		})
	}
}
