package shapes

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireIndexerMatchesExpressions checks that the compiled Indexer and the
// closed-form index/valid expressions agree for every logical index of the view.
func requireIndexerMatchesExpressions(t *testing.T, st ShapeTracker) {
	ix := st.Indexer()
	indexExpr := st.IndexExpression()
	validExpr := st.ValidExpression()
	for logical := 0; logical < st.NumElements(); logical++ {
		vars := map[string]int{IndexVar: logical}
		valid, err := validExpr.Eval(vars)
		require.NoError(t, err)
		phys, ok := ix.Index(logical)
		require.Equalf(t, valid != 0, ok, "tracker %s disagrees on validity of logical index %d", st, logical)
		if !ok {
			continue
		}
		wantPhys, err := indexExpr.Eval(vars)
		require.NoError(t, err)
		require.Equalf(t, wantPhys, phys, "tracker %s disagrees on logical index %d", st, logical)
		require.Less(t, phys, st.NumPhysicalElements())
	}
}

func TestIndexerMatchesExpressions(t *testing.T) {
	trackers := map[string]func() ShapeTracker{
		"contiguous": func() ShapeTracker {
			return Make(2, 3, 4)
		},
		"permuted": func() ShapeTracker {
			st := Make(2, 3, 4)
			st.Permute([]int{2, 0, 1})
			return st
		},
		"expanded": func() ShapeTracker {
			st := Make(2, 3)
			st.Expand(1, Known(4))
			return st
		},
		"padded": func() ShapeTracker {
			st := Make(2, 3)
			st.Pad(Pad{Before: 1}, Pad{Before: 2, After: 1})
			return st
		},
		"sliced": func() ShapeTracker {
			st := Make(4, 5)
			st.Slice(SliceBound{Start: 1, End: 3}, SliceBound{Start: 2, End: 5})
			return st
		},
		"pad-slice-pad": func() ShapeTracker {
			st := Make(4)
			st.Pad(Pad{Before: 2})
			st.Slice(SliceBound{Start: 1, End: MaxBound})
			st.Pad(Pad{Before: 1})
			return st
		},
		"pad-then-slice": func() ShapeTracker {
			st := Make(3)
			st.Pad(Pad{Before: 2, After: 2})
			st.Slice(SliceBound{Start: 1, End: 4})
			return st
		},
		"permuted-padded-sliced": func() ShapeTracker {
			st := Make(3, 4)
			st.Permute([]int{1, 0})
			st.Pad(Pad{Before: 1}, Pad{})
			st.Slice(SliceBound{Start: 0, End: 3}, SliceBound{Start: 1, End: 3})
			return st
		},
		"expanded-permuted": func() ShapeTracker {
			st := Make(2, 3)
			st.Expand(0, Known(4))
			st.Permute([]int{1, 0, 2})
			return st
		},
	}
	for name, build := range trackers {
		t.Run(name, func(t *testing.T) {
			requireIndexerMatchesExpressions(t, build())
		})
	}
}

func TestIndexerContiguous(t *testing.T) {
	st := Make(2, 3)
	ix := st.Indexer()
	for logical := 0; logical < 6; logical++ {
		phys, ok := ix.Index(logical)
		require.True(t, ok)
		assert.Equal(t, logical, phys)
	}
}

func TestIndexerPermuted(t *testing.T) {
	st := Make(2, 3)
	st.Permute([]int{1, 0})
	ix := st.Indexer()
	// Transposed traversal of a 2x3 buffer.
	want := []int{0, 3, 1, 4, 2, 5}
	for logical, wantPhys := range want {
		phys, ok := ix.Index(logical)
		require.True(t, ok)
		assert.Equal(t, wantPhys, phys)
	}
}

func TestIndexerFakeAxis(t *testing.T) {
	st := Make(3)
	st.Expand(0, Known(2))
	ix := st.Indexer()
	// The fake axis repeats the underlying storage.
	for logical := 0; logical < 6; logical++ {
		phys, ok := ix.Index(logical)
		require.True(t, ok)
		assert.Equal(t, logical%3, phys)
	}
}

func TestIndexerPadding(t *testing.T) {
	st := Make(2)
	st.Pad(Pad{Before: 1, After: 1})
	ix := st.Indexer()
	for logical, want := range []struct {
		phys int
		ok   bool
	}{{0, false}, {0, true}, {1, true}, {0, false}} {
		phys, ok := ix.Index(logical)
		assert.Equalf(t, want.ok, ok, "logical index %d", logical)
		if want.ok {
			assert.Equal(t, want.phys, phys)
		}
	}
}

func TestIndexerRequiresKnownDims(t *testing.T) {
	st := New(Unknown('b'), Known(2))
	require.Panics(t, func() { st.Indexer() })
	require.Panics(t, func() { st.Strides() })
}

func TestIndexExpressionSymbolic(t *testing.T) {
	// With an unknown dim the expression keeps the symbol as a variable; binding
	// it must give the same result as resolving the tracker first.
	st := New(Unknown('b'), Known(3))
	st.Permute([]int{1, 0})
	expr := st.IndexExpression()
	assert.Contains(t, expr.Variables(), "b")

	resolved := st.ResolveGlobalDynDims(map[rune]int{'b': 2})
	resolvedExpr := resolved.IndexExpression()
	for logical := 0; logical < resolved.NumElements(); logical++ {
		want, err := resolvedExpr.Eval(map[string]int{IndexVar: logical})
		require.NoError(t, err)
		got, err := expr.Eval(map[string]int{IndexVar: logical, "b": 2})
		require.NoError(t, err)
		assert.Equal(t, want, got, fmt.Sprintf("logical index %d", logical))
	}
}
