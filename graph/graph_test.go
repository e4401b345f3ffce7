package graph_test

import (
	"testing"

	"github.com/john-rice/luminal/graph"
	"github.com/john-rice/luminal/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	g := graph.New()
	a := g.NewInput(shapes.KnownDims(2, 3)...)
	b := g.NewInput(shapes.KnownDims(2, 3)...)
	require.Equal(t, 2, g.NumNodes())
	assert.True(t, g.IsProtected(a))
	assert.Equal(t, "Input", g.Node(a).Op().Name())
	assert.Equal(t, 2, g.Node(a).Rank())

	view := shapes.Make(2, 3)
	add := g.AddOp(&graph.Add{}, shapes.KnownDims(2, 3)...).
		Input(a, view).
		Input(b, view).
		Finish()
	require.Equal(t, 3, g.NumNodes())
	assert.False(t, g.IsProtected(add))

	srcs := g.GetSources(add)
	require.Len(t, srcs, 2)
	assert.Equal(t, a, srcs[0].Node.Id())
	assert.Equal(t, b, srcs[1].Node.Id())
	assert.Equal(t, 0, srcs[0].InputOrder)
	assert.Equal(t, 1, srcs[1].InputOrder)

	dests := g.GetDests(a)
	require.Len(t, dests, 1)
	assert.Equal(t, add, dests[0].Id())

	assert.Equal(t, []graph.NodeId{a, b, add}, g.Nodes())
}

func TestBuilderUsageErrors(t *testing.T) {
	g := graph.New()
	require.Panics(t, func() { g.AddOp(nil) })
	require.Panics(t, func() {
		g.AddOp(&graph.Exp2{}, shapes.Known(2)).Input(graph.NodeId(99), shapes.Make(2))
	})
	require.Panics(t, func() { g.SetTensor(graph.NodeId(99), nil) })
	require.Panics(t, func() { g.MarkOutput(graph.NodeId(99)) })
	require.Panics(t, func() { g.Protect(graph.NodeId(99)) })
}

func TestEdgeViewsAreIndependent(t *testing.T) {
	g := graph.New()
	a := g.NewInput(shapes.KnownDims(2, 3)...)
	view := shapes.Make(2, 3)
	perm := g.AddOp(&graph.Permute{Axes: []int{1, 0}}, shapes.KnownDims(3, 2)...).
		Input(a, view).
		Finish()

	// Mutating the caller's tracker after wiring must not affect the edge.
	view.Permute([]int{1, 0})
	srcs := g.GetSources(perm)
	require.Len(t, srcs, 1)
	assert.Equal(t, shapes.KnownDims(2, 3), srcs[0].View.Shape())
}

func TestRemoveNode(t *testing.T) {
	g := graph.New()
	a := g.NewInput(shapes.Known(4))
	view := shapes.Make(4)
	exp := g.AddOp(&graph.Exp2{}, shapes.Known(4)).Input(a, view).Finish()
	log := g.AddOp(&graph.Log2{}, shapes.Known(4)).Input(exp, view).Finish()

	g.RemoveNode(log)
	assert.Equal(t, 2, g.NumNodes())
	assert.Empty(t, g.OutEdges(exp))

	g.RemoveNode(exp)
	assert.Empty(t, g.OutEdges(a))

	// Inputs are protected from removal.
	require.Panics(t, func() { g.RemoveNode(a) })
}

func TestRemoveNodeMissingIsInternal(t *testing.T) {
	g := graph.New()
	defer func() {
		recovered := recover()
		_, isInternal := recovered.(graph.InternalError)
		require.True(t, isInternal, "expected InternalError, got %v", recovered)
	}()
	g.RemoveNode(graph.NodeId(99))
}

func TestReplaceOp(t *testing.T) {
	g := graph.New()
	a := g.NewInput(shapes.Known(4))
	exp := g.AddOp(&graph.Exp2{}, shapes.Known(4)).Input(a, shapes.Make(4)).Finish()
	g.ReplaceOp(exp, &graph.Sqrt{})
	assert.Equal(t, "Sqrt", g.Node(exp).Op().Name())
	// Edges and shape survive the swap.
	require.Len(t, g.GetSources(exp), 1)
	assert.Equal(t, shapes.KnownDims(4), g.Node(exp).Shape())
}

func TestMoveReferences(t *testing.T) {
	g := graph.New()
	a := g.NewInput(shapes.Known(4))
	view := shapes.Make(4)
	old := g.AddOp(&graph.Exp2{}, shapes.Known(4)).Input(a, view).Finish()
	replacement := g.AddOp(&graph.Sqrt{}, shapes.Known(4)).Input(a, view).Finish()
	g.MarkOutput(old)
	g.Protect(old)

	g.MoveReferences(old, replacement)
	assert.Equal(t, replacement, g.ResolveId(old))
	assert.True(t, g.IsProtected(replacement))
	assert.False(t, g.IsProtected(old))
	// The old node is now removable.
	g.RemoveNode(old)

	// Remapping chains: a second migration redirects stale handles too.
	final := g.AddOp(&graph.Sin{}, shapes.Known(4)).Input(a, view).Finish()
	g.MoveReferences(replacement, final)
	assert.Equal(t, final, g.ResolveId(old))
	assert.Equal(t, final, g.ResolveId(replacement))
	assert.True(t, g.IsProtected(final))
}
