/*
 *	Copyright 2025 John Rice
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package symbolic implements a small integer expression tree used to describe
// tensor index and validity computations in closed form.
//
// Expressions are built from integer literals and named variables combined with
// the arithmetic operators +, -, *, /, % plus Min, the comparisons < and >=,
// and logical-and. Comparisons and logical-and evaluate to 0 or 1, so a
// validity formula is just another integer expression.
//
// Expressions are immutable: every combinator returns a new tree, so subtrees
// can be shared freely. Use Substitute to bind variables to values and Eval to
// compute the final integer. Simplify folds constants and applies the usual
// identities (x+0, x*1, x*0, and(1, x), ...), which keeps the closed forms
// readable and cheap to evaluate for contiguous layouts.
package symbolic

import (
	"fmt"

	"github.com/pkg/errors"
)

// Op identifies the operation at the root of an expression tree.
type Op uint8

const (
	OpConst Op = iota
	OpVar
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpLess
	OpGreaterOrEqual
	OpAnd
)

//go:generate enumer -type=Op -trimprefix=Op -transform=snake symbolic.go

// Expr is a node of an immutable integer expression tree.
//
// The zero value is not valid, use Const and Var to create leaves and the
// combinator methods to build larger expressions.
type Expr struct {
	op       Op
	value    int    // OpConst only.
	name     string // OpVar only.
	lhs, rhs *Expr
}

// Const returns a literal integer expression.
func Const(value int) *Expr {
	return &Expr{op: OpConst, value: value}
}

// Var returns a named variable expression.
func Var(name string) *Expr {
	return &Expr{op: OpVar, name: name}
}

// Op returns the operation at the root of the expression.
func (e *Expr) Op() Op { return e.op }

func binary(op Op, lhs, rhs *Expr) *Expr {
	return &Expr{op: op, lhs: lhs, rhs: rhs}
}

// Add returns e + rhs.
func (e *Expr) Add(rhs *Expr) *Expr { return binary(OpAdd, e, rhs) }

// Sub returns e - rhs.
func (e *Expr) Sub(rhs *Expr) *Expr { return binary(OpSub, e, rhs) }

// Mul returns e * rhs.
func (e *Expr) Mul(rhs *Expr) *Expr { return binary(OpMul, e, rhs) }

// Div returns e / rhs, using truncated integer division.
func (e *Expr) Div(rhs *Expr) *Expr { return binary(OpDiv, e, rhs) }

// Mod returns e % rhs.
func (e *Expr) Mod(rhs *Expr) *Expr { return binary(OpMod, e, rhs) }

// Min returns the smaller of e and rhs.
func (e *Expr) Min(rhs *Expr) *Expr { return binary(OpMin, e, rhs) }

// Less returns the comparison e < rhs, evaluating to 0 or 1.
func (e *Expr) Less(rhs *Expr) *Expr { return binary(OpLess, e, rhs) }

// GreaterOrEqual returns the comparison e >= rhs, evaluating to 0 or 1.
func (e *Expr) GreaterOrEqual(rhs *Expr) *Expr { return binary(OpGreaterOrEqual, e, rhs) }

// And returns the logical conjunction of e and rhs: 1 if both are non-zero, else 0.
func (e *Expr) And(rhs *Expr) *Expr { return binary(OpAnd, e, rhs) }

// IsConst returns the literal value of e, if e is a constant.
func (e *Expr) IsConst() (int, bool) {
	if e.op == OpConst {
		return e.value, true
	}
	return 0, false
}

// Substitute returns a copy of the expression with every variable found in vars
// replaced by its literal value. Variables absent from vars are kept.
func (e *Expr) Substitute(vars map[string]int) *Expr {
	switch e.op {
	case OpConst:
		return e
	case OpVar:
		if value, found := vars[e.name]; found {
			return Const(value)
		}
		return e
	default:
		lhs := e.lhs.Substitute(vars)
		rhs := e.rhs.Substitute(vars)
		if lhs == e.lhs && rhs == e.rhs {
			return e
		}
		return binary(e.op, lhs, rhs)
	}
}

// Eval computes the expression with the given variable bindings.
// It returns an error on an unbound variable or a division (or modulo) by zero.
func (e *Expr) Eval(vars map[string]int) (int, error) {
	switch e.op {
	case OpConst:
		return e.value, nil
	case OpVar:
		value, found := vars[e.name]
		if !found {
			return 0, errors.Errorf("symbolic: unbound variable %q in Eval", e.name)
		}
		return value, nil
	}
	lhs, err := e.lhs.Eval(vars)
	if err != nil {
		return 0, err
	}
	rhs, err := e.rhs.Eval(vars)
	if err != nil {
		return 0, err
	}
	return apply(e.op, lhs, rhs)
}

func apply(op Op, lhs, rhs int) (int, error) {
	switch op {
	case OpAdd:
		return lhs + rhs, nil
	case OpSub:
		return lhs - rhs, nil
	case OpMul:
		return lhs * rhs, nil
	case OpDiv:
		if rhs == 0 {
			return 0, errors.Errorf("symbolic: division by zero in %d / %d", lhs, rhs)
		}
		return lhs / rhs, nil
	case OpMod:
		if rhs == 0 {
			return 0, errors.Errorf("symbolic: modulo by zero in %d %% %d", lhs, rhs)
		}
		return lhs % rhs, nil
	case OpMin:
		return min(lhs, rhs), nil
	case OpLess:
		return boolToInt(lhs < rhs), nil
	case OpGreaterOrEqual:
		return boolToInt(lhs >= rhs), nil
	case OpAnd:
		return boolToInt(lhs != 0 && rhs != 0), nil
	}
	return 0, errors.Errorf("symbolic: cannot apply %s to operands", op)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Simplify returns an equivalent expression with constants folded and trivial
// identities removed. It never changes the value of the expression for any
// variable binding.
func (e *Expr) Simplify() *Expr {
	if e.op == OpConst || e.op == OpVar {
		return e
	}
	lhs := e.lhs.Simplify()
	rhs := e.rhs.Simplify()
	lc, lConst := lhs.IsConst()
	rc, rConst := rhs.IsConst()
	if lConst && rConst {
		if value, err := apply(e.op, lc, rc); err == nil {
			return Const(value)
		}
	}
	switch e.op {
	case OpAdd:
		if lConst && lc == 0 {
			return rhs
		}
		if rConst && rc == 0 {
			return lhs
		}
	case OpSub:
		if rConst && rc == 0 {
			return lhs
		}
	case OpMul:
		if lConst {
			if lc == 0 {
				return Const(0)
			}
			if lc == 1 {
				return rhs
			}
		}
		if rConst {
			if rc == 0 {
				return Const(0)
			}
			if rc == 1 {
				return lhs
			}
		}
	case OpDiv:
		if rConst && rc == 1 {
			return lhs
		}
		if lConst && lc == 0 {
			return Const(0)
		}
	case OpMod:
		if rConst && rc == 1 {
			return Const(0)
		}
	case OpAnd:
		if lConst {
			if lc == 0 {
				return Const(0)
			}
			return rhs
		}
		if rConst {
			if rc == 0 {
				return Const(0)
			}
			return lhs
		}
	}
	if lhs == e.lhs && rhs == e.rhs {
		return e
	}
	return binary(e.op, lhs, rhs)
}

// Variables returns the set of variable names appearing in the expression.
func (e *Expr) Variables() map[string]struct{} {
	vars := make(map[string]struct{})
	e.collectVariables(vars)
	return vars
}

func (e *Expr) collectVariables(vars map[string]struct{}) {
	switch e.op {
	case OpConst:
	case OpVar:
		vars[e.name] = struct{}{}
	default:
		e.lhs.collectVariables(vars)
		e.rhs.collectVariables(vars)
	}
}

// String implements fmt.Stringer, printing the expression in infix form.
func (e *Expr) String() string {
	switch e.op {
	case OpConst:
		return fmt.Sprintf("%d", e.value)
	case OpVar:
		return e.name
	case OpAdd:
		return fmt.Sprintf("(%s + %s)", e.lhs, e.rhs)
	case OpSub:
		return fmt.Sprintf("(%s - %s)", e.lhs, e.rhs)
	case OpMul:
		return fmt.Sprintf("(%s * %s)", e.lhs, e.rhs)
	case OpDiv:
		return fmt.Sprintf("(%s / %s)", e.lhs, e.rhs)
	case OpMod:
		return fmt.Sprintf("(%s %% %s)", e.lhs, e.rhs)
	case OpMin:
		return fmt.Sprintf("min(%s, %s)", e.lhs, e.rhs)
	case OpLess:
		return fmt.Sprintf("(%s < %s)", e.lhs, e.rhs)
	case OpGreaterOrEqual:
		return fmt.Sprintf("(%s >= %s)", e.lhs, e.rhs)
	case OpAnd:
		return fmt.Sprintf("(%s && %s)", e.lhs, e.rhs)
	}
	return fmt.Sprintf("Expr(%s)", e.op)
}
