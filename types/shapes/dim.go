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

package shapes

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/john-rice/luminal/types/symbolic"
)

// UnresolvedSymbol is the distinguished symbol of a dimension whose size is not
// yet known and has no user-given name. It is filled in by
// ResolveLocalDynDims during execution.
const UnresolvedSymbol = '-'

// Dim is the length of one tensor axis: either a known non-negative integer or
// a named symbolic unknown, resolved later at execution time.
//
// Dim is an immutable value type, use Known, Unknown or Unresolved to create one.
type Dim struct {
	size   int
	symbol rune
}

// Known returns a dimension of the given size.
func Known(size int) Dim {
	if size < 0 {
		exceptions.Panicf("shapes.Known(%d): dimension size cannot be negative", size)
	}
	return Dim{size: size}
}

// Unknown returns a symbolic dimension identified by the given symbol.
func Unknown(symbol rune) Dim {
	return Dim{symbol: symbol}
}

// Unresolved returns the default symbolic dimension, with UnresolvedSymbol as
// its symbol.
func Unresolved() Dim {
	return Unknown(UnresolvedSymbol)
}

// KnownDims converts plain integers to a slice of known dimensions.
func KnownDims(sizes ...int) []Dim {
	dims := make([]Dim, len(sizes))
	for i, size := range sizes {
		dims[i] = Known(size)
	}
	return dims
}

// IsKnown returns whether the dimension has a concrete size.
func (d Dim) IsKnown() bool { return d.symbol == 0 }

// IsUnresolved returns whether this is the default unresolved dimension.
func (d Dim) IsUnresolved() bool { return d.symbol == UnresolvedSymbol }

// Int returns the concrete size, and whether the dimension is known.
func (d Dim) Int() (int, bool) {
	if !d.IsKnown() {
		return 0, false
	}
	return d.size, true
}

// MustInt returns the concrete size, and panics if the dimension is symbolic.
func (d Dim) MustInt() int {
	size, known := d.Int()
	if !known {
		exceptions.Panicf("all dims must be known before indexing, found symbolic dim %s", d)
	}
	return size
}

// Symbol returns the symbol of an unknown dimension, or 0 for a known one.
func (d Dim) Symbol() rune { return d.symbol }

// Expr returns the dimension as a symbolic expression: a literal for a known
// dimension, a variable named after the symbol otherwise.
func (d Dim) Expr() *symbolic.Expr {
	if size, known := d.Int(); known {
		return symbolic.Const(size)
	}
	return symbolic.Var(string(d.symbol))
}

// String implements fmt.Stringer.
func (d Dim) String() string {
	if size, known := d.Int(); known {
		return fmt.Sprintf("%d", size)
	}
	return string(d.symbol)
}
