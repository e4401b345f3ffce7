package symbolic

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	// (x * 4 + y) % 7
	e := Var("x").Mul(Const(4)).Add(Var("y")).Mod(Const(7))
	got, err := e.Eval(map[string]int{"x": 3, "y": 2})
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = e.Eval(map[string]int{"x": 2, "y": 2})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	_, err = e.Eval(map[string]int{"x": 3})
	require.ErrorContains(t, err, "unbound variable")

	_, err = Const(1).Div(Var("d")).Eval(map[string]int{"d": 0})
	require.ErrorContains(t, err, "division by zero")
	_, err = Const(1).Mod(Var("d")).Eval(map[string]int{"d": 0})
	require.ErrorContains(t, err, "modulo by zero")
}

func TestComparisons(t *testing.T) {
	vars := map[string]int{"x": 5}
	for _, test := range []struct {
		expr *Expr
		want int
	}{
		{Var("x").Less(Const(6)), 1},
		{Var("x").Less(Const(5)), 0},
		{Var("x").GreaterOrEqual(Const(5)), 1},
		{Var("x").GreaterOrEqual(Const(6)), 0},
		{Var("x").Min(Const(3)), 3},
		{Var("x").Min(Const(8)), 5},
		{Const(1).And(Const(2)), 1},
		{Const(1).And(Const(0)), 0},
	} {
		got, err := test.expr.Eval(vars)
		require.NoError(t, err)
		assert.Equalf(t, test.want, got, "expression %s", test.expr)
	}
}

func TestSubstitute(t *testing.T) {
	e := Var("idx").Div(Var("n")).Add(Const(1))
	bound := e.Substitute(map[string]int{"n": 4})
	got, err := bound.Eval(map[string]int{"idx": 8})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	// The original is untouched and the unmatched variable survives.
	assert.Contains(t, e.Variables(), "n")
	assert.NotContains(t, bound.Variables(), "n")
	assert.Contains(t, bound.Variables(), "idx")
}

func TestSimplify(t *testing.T) {
	x := Var("x")
	for _, test := range []struct {
		expr *Expr
		want string
	}{
		{x.Add(Const(0)), "x"},
		{Const(0).Add(x), "x"},
		{x.Sub(Const(0)), "x"},
		{x.Mul(Const(1)), "x"},
		{x.Mul(Const(0)), "0"},
		{Const(0).Mul(x), "0"},
		{x.Div(Const(1)), "x"},
		{Const(0).Div(x), "0"},
		{x.Mod(Const(1)), "0"},
		{Const(1).And(x), "x"},
		{Const(0).And(x), "0"},
		{Const(2).Add(Const(3)).Mul(Const(4)), "20"},
		// Nested: ((x + 0) * 1 + 2 * 3) folds to (x + 6).
		{x.Add(Const(0)).Mul(Const(1)).Add(Const(2).Mul(Const(3))), "(x + 6)"},
	} {
		assert.Equal(t, test.want, test.expr.Simplify().String())
	}
}

func TestSimplifyPreservesValue(t *testing.T) {
	e := Var("idx").Div(Const(1)).Mod(Const(12)).Mul(Const(1)).Add(Const(0))
	simplified := e.Simplify()
	for idx := 0; idx < 30; idx++ {
		vars := map[string]int{"idx": idx}
		want, err := e.Eval(vars)
		require.NoError(t, err)
		got, err := simplified.Eval(vars)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestString(t *testing.T) {
	e := Var("idx").Div(Const(3)).Mod(Const(4)).Mul(Const(12)).Add(Const(2))
	assert.Equal(t, "((((idx / 3) % 4) * 12) + 2)", e.String())
	assert.Equal(t, "min(a, b)", Var("a").Min(Var("b")).String())
}

func TestOpString(t *testing.T) {
	for _, op := range OpValues() {
		parsed, err := OpString(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
		assert.True(t, op.IsAOp())
	}
	fmt.Println(OpStrings())
	assert.Equal(t, "greater_or_equal", OpGreaterOrEqual.String())
}
