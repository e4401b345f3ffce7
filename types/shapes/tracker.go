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

// Package shapes tracks the logical-to-physical layout of tensor data symbolically.
//
// A ShapeTracker records the sequence of movement transformations applied to a
// tensor view -- permutation, broadcast ("fake") axes, slicing and padding --
// without materializing a new buffer. From that record it produces strides,
// element counts, a compiled Indexer for flat logical-to-physical index
// translation, and closed-form symbolic index/validity expressions (see the
// symbolic package) that may still contain unresolved dimensions.
//
// ## Glossary
//
//   - Logical index: a flat index into the user-visible (permuted, sliced,
//     padded) tensor.
//   - Physical index: the corresponding flat offset into untransformed storage.
//   - Fake axis: a broadcast axis with no physical storage contribution; it
//     consumes no stride and is excluded from physical element counts.
//
// Dimensions can be symbolic (see Dim): all dims must be resolved to known
// sizes before strides, element counts or an Indexer are requested; doing so
// earlier is a usage error and panics.
package shapes

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/john-rice/luminal/types/symbolic"
	"github.com/john-rice/luminal/types/xslices"
)

// MaxRank is the largest tensor rank a ShapeTracker supports.
const MaxRank = 10

// MaxBound is the sentinel upper bound of an unset slice.
const MaxBound = math.MaxInt32

// IndexVar is the name of the logical flat-index variable in the expressions
// returned by IndexExpression and ValidExpression.
const IndexVar = "idx"

// SliceBound is a per-axis half-open slicing interval [Start, End).
// An unset upper bound is the sentinel MaxBound.
type SliceBound struct {
	Start, End int
}

// FullSlice returns the default, unrestricted slice bound.
func FullSlice() SliceBound {
	return SliceBound{Start: 0, End: MaxBound}
}

// IsDefault returns whether the bound leaves the axis unrestricted.
func (b SliceBound) IsDefault() bool {
	return b.Start == 0 && b.End == MaxBound
}

// Pad is a per-axis padding amount, logically prepended and appended to the
// axis before slicing is applied.
type Pad struct {
	Before, After int
}

// ShapeTracker is the symbolic record of the movement transformations applied
// to a tensor's layout.
//
// It keeps five parallel per-storage-axis vectors, always of equal length:
// dims (axis sizes, possibly symbolic), fake flags, slice bounds and padding
// amounts, plus the indexes permutation mapping logical axis position to
// storage slot. See package documentation for the invariants.
//
// The mutating operations (Expand, RemoveDim, Permute, Slice, Pad) work in
// place; everything else is pure. ShapeTracker is a value type: use Clone
// before attaching one to long-lived structures.
type ShapeTracker struct {
	dims    []Dim
	indexes []int
	fake    []bool
	slices  []SliceBound
	padding []Pad
}

// New builds an identity-ordered tracker over the given dims: no permutation,
// no fake axes, unrestricted slices, no padding.
func New(dims ...Dim) ShapeTracker {
	if len(dims) > MaxRank {
		exceptions.Panicf("shapes.New: rank %d exceeds the maximum of %d", len(dims), MaxRank)
	}
	s := ShapeTracker{
		dims:    make([]Dim, 0, len(dims)),
		indexes: make([]int, 0, len(dims)),
		fake:    make([]bool, 0, len(dims)),
		slices:  make([]SliceBound, 0, len(dims)),
		padding: make([]Pad, 0, len(dims)),
	}
	for i, d := range dims {
		s.dims = append(s.dims, d)
		s.indexes = append(s.indexes, i)
		s.fake = append(s.fake, false)
		s.slices = append(s.slices, FullSlice())
		s.padding = append(s.padding, Pad{})
	}
	return s
}

// Make is a shortcut for New over known integer dimensions.
func Make(sizes ...int) ShapeTracker {
	return New(KnownDims(sizes...)...)
}

// Fake builds a tracker where every axis is fake, used for broadcasting a
// value across new axes.
func Fake(dims ...Dim) ShapeTracker {
	s := New(dims...)
	for i := range s.fake {
		s.fake[i] = true
	}
	return s
}

// Clone returns a deep copy of the tracker.
func (s ShapeTracker) Clone() ShapeTracker {
	return ShapeTracker{
		dims:    xslices.Copy(s.dims),
		indexes: xslices.Copy(s.indexes),
		fake:    xslices.Copy(s.fake),
		slices:  xslices.Copy(s.slices),
		padding: xslices.Copy(s.padding),
	}
}

// Rank returns the number of dimensions.
func (s *ShapeTracker) Rank() int { return len(s.dims) }

// IsEmpty returns whether the tracker has no dimensions (a scalar view).
func (s *ShapeTracker) IsEmpty() bool { return s.Rank() == 0 }

// Shape returns the dims in logical order, with the permutation applied.
func (s *ShapeTracker) Shape() []Dim {
	return xslices.Map(s.indexes, func(i int) Dim { return s.dims[i] })
}

// Expand inserts a new logical axis at position axis with the given size,
// marked fake. Storage is appended; only the logical order shifts.
func (s *ShapeTracker) Expand(axis int, dim Dim) {
	if axis < 0 || axis > s.Rank() {
		exceptions.Panicf("ShapeTracker.Expand(%d): axis out of range for rank %d", axis, s.Rank())
	}
	if s.Rank() >= MaxRank {
		exceptions.Panicf("ShapeTracker.Expand(%d): rank %d already at the maximum of %d", axis, s.Rank(), MaxRank)
	}
	storage := len(s.dims)
	s.indexes = append(s.indexes, 0)
	copy(s.indexes[axis+1:], s.indexes[axis:])
	s.indexes[axis] = storage
	s.dims = append(s.dims, dim)
	s.fake = append(s.fake, true)
	s.slices = append(s.slices, FullSlice())
	s.padding = append(s.padding, Pad{})
}

// RemoveDim deletes the logical axis at the given position, dropping the
// corresponding storage slot from all per-axis vectors.
func (s *ShapeTracker) RemoveDim(axis int) {
	if axis < 0 || axis >= s.Rank() {
		exceptions.Panicf("ShapeTracker.RemoveDim(%d): axis out of range for rank %d", axis, s.Rank())
	}
	storage := s.indexes[axis]
	s.indexes = append(s.indexes[:axis], s.indexes[axis+1:]...)
	s.dims = append(s.dims[:storage], s.dims[storage+1:]...)
	s.fake = append(s.fake[:storage], s.fake[storage+1:]...)
	s.slices = append(s.slices[:storage], s.slices[storage+1:]...)
	s.padding = append(s.padding[:storage], s.padding[storage+1:]...)
	for i, ix := range s.indexes {
		if ix > storage {
			s.indexes[i] = ix - 1
		}
	}
}

// Permute reorders the logical axes so that logical position i now refers to
// the storage slot previously at logical position axes[i]. Storage is untouched.
func (s *ShapeTracker) Permute(axes []int) {
	if len(axes) != s.Rank() {
		exceptions.Panicf("ShapeTracker.Permute(%v): expected %d axes", axes, s.Rank())
	}
	seen := make([]bool, s.Rank())
	for _, axis := range axes {
		if axis < 0 || axis >= s.Rank() || seen[axis] {
			exceptions.Panicf("ShapeTracker.Permute(%v): not a valid permutation of 0..%d", axes, s.Rank())
		}
		seen[axis] = true
	}
	s.indexes = xslices.Map(axes, func(axis int) int { return s.indexes[axis] })
}

// unorderedStrides computes per-storage-axis strides, before the permutation
// is applied: a right-to-left running product of storage sizes, with fake axes
// skipped from the product but still receiving the accumulator as placeholder.
func (s *ShapeTracker) unorderedStrides() []int {
	strides := make([]int, s.Rank())
	acc := 1
	for i := s.Rank() - 1; i >= 0; i-- {
		strides[i] = acc
		if !s.fake[i] {
			acc *= s.dims[i].MustInt()
		}
	}
	return strides
}

// Strides returns the per-logical-axis strides. All dims must be known.
func (s *ShapeTracker) Strides() []int {
	strides := s.unorderedStrides()
	return xslices.Map(s.indexes, func(i int) int { return strides[i] })
}

// symbolicStrides is unorderedStrides over expressions, tolerating unknown dims.
func (s *ShapeTracker) symbolicStrides() []*symbolic.Expr {
	strides := make([]*symbolic.Expr, s.Rank())
	acc := symbolic.Const(1)
	for i := s.Rank() - 1; i >= 0; i-- {
		strides[i] = acc
		if !s.fake[i] {
			acc = acc.Mul(s.dims[i].Expr())
		}
	}
	return strides
}

// paddedSlicedSize returns the symbolic effective size of the storage axis i
// after padding and slicing: min(size+pad.Before+pad.After, slice.End) - slice.Start.
func (s *ShapeTracker) paddedSlicedSize(i int) *symbolic.Expr {
	pad := s.padding[i]
	return s.dims[i].Expr().
		Add(symbolic.Const(pad.Before + pad.After)).
		Min(symbolic.Const(s.slices[i].End)).
		Sub(symbolic.Const(s.slices[i].Start))
}

// IndexExpression builds the symbolic expression computing the physical flat
// offset for the logical flat index variable IndexVar, honoring the permutation,
// fake axes, padding and slicing. The result is already simplified; unknown
// dims appear as variables named after their symbol.
func (s *ShapeTracker) IndexExpression() *symbolic.Expr {
	strides := s.symbolicStrides()
	ret := symbolic.Const(0)
	acc := symbolic.Const(1)
	logical := symbolic.Var(IndexVar)
	for li := s.Rank() - 1; li >= 0; li-- {
		i := s.indexes[li]
		logicalSize := s.paddedSlicedSize(i)
		if !s.fake[i] {
			pad, slice := s.padding[i], s.slices[i]
			dimInd := logical.Div(acc).Mod(logicalSize)
			term := dimInd.
				Sub(symbolic.Const(pad.Before)).
				Add(symbolic.Const(max(slice.Start-pad.Before, 0))).
				Mul(strides[i])
			ret = ret.Add(term)
		}
		acc = acc.Mul(logicalSize)
	}
	return ret.Simplify()
}

// ValidExpression builds the symbolic 0/1 expression that decides whether the
// logical flat index variable IndexVar falls inside the real (unpadded,
// unsliced) data. It evaluates to non-zero exactly when Indexer.Index returns
// a physical index for the same logical index.
func (s *ShapeTracker) ValidExpression() *symbolic.Expr {
	ret := symbolic.Const(1)
	acc := symbolic.Const(1)
	logical := symbolic.Var(IndexVar)
	for li := s.Rank() - 1; li >= 0; li-- {
		i := s.indexes[li]
		logicalSize := s.paddedSlicedSize(i)
		if !s.fake[i] {
			pad, slice := s.padding[i], s.slices[i]
			dimInd := logical.Div(acc).Mod(logicalSize)
			lower := symbolic.Const(max(pad.Before-slice.Start, 0))
			upper := s.dims[i].Expr().
				Add(symbolic.Const(pad.Before)).
				Min(symbolic.Const(slice.End))
			ret = ret.And(dimInd.GreaterOrEqual(lower))
			ret = ret.And(dimInd.Less(upper))
		}
		acc = acc.Mul(logicalSize)
	}
	return ret.Simplify()
}

// NumElements returns the number of elements in the logical view, including
// pads and slices. It returns 0 if any dim is still unknown.
func (s *ShapeTracker) NumElements() int {
	product := 1
	for _, i := range s.indexes {
		size, known := s.dims[i].Int()
		if !known {
			return 0
		}
		pad := s.padding[i]
		product *= min(size+pad.Before+pad.After, s.slices[i].End) - s.slices[i].Start
	}
	return product
}

// EffectiveDims returns the per-logical-axis sizes after padding and slicing
// are applied. All dims must be known.
func (s *ShapeTracker) EffectiveDims() []int {
	dims := make([]int, 0, s.Rank())
	for _, i := range s.indexes {
		size := s.dims[i].MustInt()
		pad := s.padding[i]
		dims = append(dims, min(size+pad.Before+pad.After, s.slices[i].End)-s.slices[i].Start)
	}
	return dims
}

// NumPhysicalElements returns the number of stored elements, excluding fake
// axes and ignoring pads and slices. It returns 0 if any dim is still unknown.
func (s *ShapeTracker) NumPhysicalElements() int {
	product := 1
	for i, d := range s.dims {
		if s.fake[i] {
			continue
		}
		size, known := d.Int()
		if !known {
			return 0
		}
		product *= size
	}
	return product
}

// Realize returns a copy of the tracker with the given sizes written back into
// storage at the logical positions.
func (s ShapeTracker) Realize(dims ...Dim) ShapeTracker {
	if len(dims) != s.Rank() {
		exceptions.Panicf("ShapeTracker.Realize: got %d dims for rank %d", len(dims), s.Rank())
	}
	s2 := s.Clone()
	for i, ix := range s2.indexes {
		s2.dims[ix] = dims[i]
	}
	return s2
}

// Contiguous returns a fresh identity tracker whose sizes are the current
// effective (slice-bounded) sizes, stripping all permutation, slicing and
// padding history.
func (s ShapeTracker) Contiguous() ShapeTracker {
	dims := xslices.Map(s.indexes, func(i int) Dim {
		if size, known := s.dims[i].Int(); known {
			return Known(min(size, s.slices[i].End-s.slices[i].Start))
		}
		return s.dims[i]
	})
	return New(dims...)
}

// IsContiguous returns whether the logical order matches the storage order.
func (s *ShapeTracker) IsContiguous() bool {
	for logical, storage := range s.indexes {
		if logical != storage {
			return false
		}
	}
	return true
}

// Slice narrows the tracker to the given per-logical-axis bounds. Slicing into
// a padded region consumes padding first: the consumed amount is removed from
// the recorded padding and both slice bounds shift down accordingly, so only
// the remainder narrows the axis.
func (s *ShapeTracker) Slice(bounds ...SliceBound) {
	if len(bounds) > s.Rank() {
		exceptions.Panicf("ShapeTracker.Slice: got %d bounds for rank %d", len(bounds), s.Rank())
	}
	for axis, bound := range bounds {
		if bound.Start > bound.End {
			exceptions.Panicf("ShapeTracker.Slice: axis %d bound [%d, %d) is inverted", axis, bound.Start, bound.End)
		}
		i := s.indexes[axis]
		start, end := bound.Start, bound.End
		if consumed := min(s.padding[i].Before, start); consumed > 0 {
			s.padding[i].Before -= consumed
			start -= consumed
			if end != MaxBound {
				end = max(end-consumed, 0)
			}
		}
		s.slices[i].Start += start
		s.slices[i].End = min(s.slices[i].End, end)
	}
}

// Pad adds per-logical-axis padding. The record always reads as padding applied
// before slicing, so padding an axis whose slice has already cut into the real
// data is a usage error and panics: before-padding requires a zero slice start,
// after-padding an unbounded slice end.
func (s *ShapeTracker) Pad(padding ...Pad) {
	if len(padding) > s.Rank() {
		exceptions.Panicf("ShapeTracker.Pad: got %d pads for rank %d", len(padding), s.Rank())
	}
	for axis, pad := range padding {
		i := s.indexes[axis]
		if pad.Before != 0 && s.slices[i].Start != 0 {
			exceptions.Panicf("ShapeTracker.Pad: axis %d is already sliced from %d, padding before it is not supported",
				axis, s.slices[i].Start)
		}
		s.padding[i].Before += pad.Before
		if pad.After != 0 && s.slices[i].End != MaxBound {
			exceptions.Panicf("ShapeTracker.Pad: axis %d already has a finite slice upper bound (%d), padding after it is not supported",
				axis, s.slices[i].End)
		}
		s.padding[i].After += pad.After
	}
}

// ResolveGlobalDynDims returns a copy with every unknown dim substituted by the
// size looked up by its symbol. A symbol missing from the map is a fatal error.
func (s ShapeTracker) ResolveGlobalDynDims(dynDims map[rune]int) ShapeTracker {
	s2 := s.Clone()
	for i, d := range s2.dims {
		if d.IsKnown() {
			continue
		}
		size, found := dynDims[d.Symbol()]
		if !found {
			exceptions.Panicf("ShapeTracker.ResolveGlobalDynDims: no value provided for dynamic dimension %q", string(d.Symbol()))
		}
		s2.dims[i] = Known(size)
	}
	return s2
}

// HasUnknownDims returns whether any dim is still symbolic.
func (s *ShapeTracker) HasUnknownDims() bool {
	for _, d := range s.dims {
		if !d.IsKnown() {
			return true
		}
	}
	return false
}

// HasFakeAxes returns whether any axis is a broadcast (fake) axis.
func (s *ShapeTracker) HasFakeAxes() bool {
	for _, f := range s.fake {
		if f {
			return true
		}
	}
	return false
}

// IsSliced returns whether any axis has a non-default slice bound.
func (s *ShapeTracker) IsSliced() bool {
	for _, bound := range s.slices {
		if !bound.IsDefault() {
			return true
		}
	}
	return false
}

// IsPadded returns whether any axis carries padding.
func (s *ShapeTracker) IsPadded() bool {
	for _, pad := range s.padding {
		if pad.Before != 0 || pad.After != 0 {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer, printing the logical shape with markers for
// fake, sliced and padded axes.
func (s ShapeTracker) String() string {
	parts := make([]string, 0, s.Rank())
	for _, i := range s.indexes {
		part := s.dims[i].String()
		if s.fake[i] {
			part += "*"
		}
		if !s.slices[i].IsDefault() || s.padding[i] != (Pad{}) {
			part += "'"
		}
		parts = append(parts, part)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, " "))
}

// ResolveLocalDynDims reconciles two trackers of matching logical rank, axis by
// axis: an axis still unresolved in one tracker is filled from the other's dim
// at the same logical position. If both remain unresolved and defaultToOne is
// set, both are resolved to 1.
//
// Used to propagate concrete sizes across an elementwise/broadcast edge where
// one side's size was not yet known at graph-construction time.
func ResolveLocalDynDims(a, b *ShapeTracker, defaultToOne bool) {
	if a.Rank() != b.Rank() {
		exceptions.Panicf("shapes.ResolveLocalDynDims: rank mismatch, %d vs %d", a.Rank(), b.Rank())
	}
	for i := 0; i < a.Rank(); i++ {
		if a.dims[a.indexes[i]].IsUnresolved() {
			a.dims[a.indexes[i]] = b.dims[b.indexes[i]]
			if a.dims[a.indexes[i]].IsUnresolved() && defaultToOne {
				a.dims[a.indexes[i]] = Known(1)
			}
		}
	}
	for i := 0; i < a.Rank(); i++ {
		if b.dims[b.indexes[i]].IsUnresolved() {
			b.dims[b.indexes[i]] = a.dims[a.indexes[i]]
			if b.dims[b.indexes[i]].IsUnresolved() && defaultToOne {
				b.dims[b.indexes[i]] = Known(1)
			}
		}
	}
}
