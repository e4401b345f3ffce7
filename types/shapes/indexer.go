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

// indexerAxis is the compiled per-axis layout tuple, in reverse logical order.
type indexerAxis struct {
	size    int
	stride  int
	padding Pad
	slice   SliceBound
	fake    bool
}

// Indexer is a compiled, allocation-free view of a ShapeTracker mapping a
// logical flat index to a physical flat index in O(rank).
//
// An Indexer is read-only after construction and must be rebuilt if the source
// tracker changes. It agrees with the tracker's IndexExpression and
// ValidExpression for every logical index.
type Indexer struct {
	data []indexerAxis
}

// Indexer compiles the tracker. All dims must be known, otherwise it panics.
func (s *ShapeTracker) Indexer() Indexer {
	strides := s.unorderedStrides()
	data := make([]indexerAxis, 0, s.Rank())
	for li := s.Rank() - 1; li >= 0; li-- {
		i := s.indexes[li]
		data = append(data, indexerAxis{
			size:    s.dims[i].MustInt(),
			stride:  strides[i],
			padding: s.padding[i],
			slice:   s.slices[i],
			fake:    s.fake[i],
		})
	}
	return Indexer{data: data}
}

// Index converts a logical index into a physical one. The second return value
// is false when the logical index falls into a padded or sliced-out region, in
// which case there is no backing physical element; callers typically zero-fill
// or skip.
func (ix *Indexer) Index(logical int) (int, bool) {
	physical := 0
	acc := 1
	for _, ax := range ix.data {
		logicalSize := min(ax.size+ax.padding.Before+ax.padding.After, ax.slice.End) - ax.slice.Start
		if !ax.fake {
			dimInd := (logical / acc) % logicalSize
			// Over the top or under the bottom of the real data.
			if dimInd >= min(ax.size+ax.padding.Before, ax.slice.End) ||
				dimInd < max(ax.padding.Before-ax.slice.Start, 0) {
				return 0, false
			}
			physical += (dimInd - ax.padding.Before + max(ax.slice.Start-ax.padding.Before, 0)) * ax.stride
		}
		acc *= logicalSize
	}
	return physical, true
}
