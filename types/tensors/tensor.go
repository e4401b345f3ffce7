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

// Package tensors holds the opaque numeric buffer behind a graph value.
//
// A Tensor is just untyped storage: all layout information (rank, strides,
// broadcast, slicing, padding) lives in the shapes.ShapeTracker attached to the
// graph edges viewing it. Operators read buffers through possibly overlapping,
// non-owning views; ownership and aliasing rules are the graph executor's
// responsibility.
package tensors

import (
	"fmt"

	"github.com/john-rice/luminal/types/xslices"
)

// Tensor is a flat float32 buffer with no intrinsic shape.
type Tensor struct {
	data []float32
}

// FromFlat wraps the given buffer in a Tensor. The Tensor takes ownership of
// the slice.
func FromFlat(data []float32) *Tensor {
	return &Tensor{data: data}
}

// Zeros returns a zero-initialized Tensor of the given number of elements.
func Zeros(size int) *Tensor {
	return &Tensor{data: make([]float32, size)}
}

// Float32 exposes the backing buffer. The caller must not grow it.
func (t *Tensor) Float32() []float32 { return t.data }

// Len returns the number of stored elements.
func (t *Tensor) Len() int { return len(t.data) }

// Clone returns a deep copy of the Tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{data: xslices.Copy(t.data)}
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	return fmt.Sprintf("Tensor(%d elements)", t.Len())
}
