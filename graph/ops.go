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

package graph

import (
	"math"

	"github.com/john-rice/luminal/types/shapes"
	"github.com/john-rice/luminal/types/tensors"
	"github.com/john-rice/luminal/types/xslices"
)

// ScalarFn is a named elementwise function over float32, the unit of unary
// operator fusion.
type ScalarFn struct {
	Name  string
	Apply func(float32) float32
}

// InputOp is the leaf operator of graph inputs. Its buffer is assigned with
// Graph.SetTensor and materialized directly by the executor; Process is never
// reached.
type InputOp struct{}

func (op *InputOp) Name() string { return "Input" }

func (op *InputOp) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	internalErrorf("graph: Input node %d reached Process, the executor materializes inputs directly", id)
	return nil, View{}
}

// Constant is a scalar constant operator.
type Constant struct {
	Value float32
}

func (op *Constant) Name() string { return "Constant" }

func (op *Constant) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return tensors.FromFlat([]float32{op.Value}), View{TensorId: id, Shape: shapes.Make()}
}

// applyUnary clones the single input buffer and applies fn to every physical
// element, keeping the input view but relabeling it with the node's own id.
func applyUnary(fn ScalarFn, inputs []Input, id NodeId) (*tensors.Tensor, View) {
	t := inputs[0].Tensor.Clone()
	data := t.Float32()
	for i, v := range data {
		data[i] = fn.Apply(v)
	}
	return t, View{TensorId: id, Shape: inputs[0].View.Shape.Clone()}
}

// Exp2 computes 2^x elementwise.
type Exp2 struct{}

func (op *Exp2) Name() string { return "Exp2" }

// Scalar returns the elementwise function the operator applies.
func (op *Exp2) Scalar() ScalarFn {
	return ScalarFn{Name: "Exp2", Apply: func(x float32) float32 { return float32(math.Exp2(float64(x))) }}
}

func (op *Exp2) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return applyUnary(op.Scalar(), inputs, id)
}

// Log2 computes log2(x) elementwise.
type Log2 struct{}

func (op *Log2) Name() string { return "Log2" }

// Scalar returns the elementwise function the operator applies.
func (op *Log2) Scalar() ScalarFn {
	return ScalarFn{Name: "Log2", Apply: func(x float32) float32 { return float32(math.Log2(float64(x))) }}
}

func (op *Log2) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return applyUnary(op.Scalar(), inputs, id)
}

// Sin computes sin(x) elementwise.
type Sin struct{}

func (op *Sin) Name() string { return "Sin" }

// Scalar returns the elementwise function the operator applies.
func (op *Sin) Scalar() ScalarFn {
	return ScalarFn{Name: "Sin", Apply: func(x float32) float32 { return float32(math.Sin(float64(x))) }}
}

func (op *Sin) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return applyUnary(op.Scalar(), inputs, id)
}

// Sqrt computes the square root elementwise.
type Sqrt struct{}

func (op *Sqrt) Name() string { return "Sqrt" }

// Scalar returns the elementwise function the operator applies.
func (op *Sqrt) Scalar() ScalarFn {
	return ScalarFn{Name: "Sqrt", Apply: func(x float32) float32 { return float32(math.Sqrt(float64(x))) }}
}

func (op *Sqrt) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return applyUnary(op.Scalar(), inputs, id)
}

// Recip computes the reciprocal 1/x elementwise.
type Recip struct{}

func (op *Recip) Name() string { return "Recip" }

// Scalar returns the elementwise function the operator applies.
func (op *Recip) Scalar() ScalarFn {
	return ScalarFn{Name: "Recip", Apply: func(x float32) float32 { return 1 / x }}
}

func (op *Recip) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return applyUnary(op.Scalar(), inputs, id)
}

// applyBinary materializes the elementwise combination of two views into a
// fresh contiguous buffer. Logical positions without a backing physical
// element (padding, slicing) read as zero.
func applyBinary(combine func(a, b float32) float32, inputs []Input, id NodeId) (*tensors.Tensor, View) {
	a, b := &inputs[0], &inputs[1]
	ixA, ixB := a.View.Shape.Indexer(), b.View.Shape.Indexer()
	dataA, dataB := a.Tensor.Float32(), b.Tensor.Float32()
	out := make([]float32, a.View.Shape.NumElements())
	for i := range out {
		var va, vb float32
		if phys, ok := ixA.Index(i); ok {
			va = dataA[phys]
		}
		if phys, ok := ixB.Index(i); ok {
			vb = dataB[phys]
		}
		out[i] = combine(va, vb)
	}
	return tensors.FromFlat(out), View{TensorId: id, Shape: shapes.Make(a.View.Shape.EffectiveDims()...)}
}

// Add is elementwise addition of two equally-shaped views.
type Add struct{}

func (op *Add) Name() string { return "Add" }

func (op *Add) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return applyBinary(func(a, b float32) float32 { return a + b }, inputs, id)
}

// Mul is elementwise multiplication of two equally-shaped views.
type Mul struct{}

func (op *Mul) Name() string { return "Mul" }

func (op *Mul) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return applyBinary(func(a, b float32) float32 { return a * b }, inputs, id)
}

// SumReduce sums the input along one logical axis, materializing a contiguous
// result of the reduced shape.
type SumReduce struct {
	Axis int
}

func (op *SumReduce) Name() string { return "SumReduce" }

func (op *SumReduce) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return reduce(op.Axis, inputs, id, 0, func(acc, v float32) float32 { return acc + v })
}

// MaxReduce takes the maximum along one logical axis, materializing a
// contiguous result of the reduced shape.
type MaxReduce struct {
	Axis int
}

func (op *MaxReduce) Name() string { return "MaxReduce" }

func (op *MaxReduce) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	return reduce(op.Axis, inputs, id, -math.MaxFloat32, func(acc, v float32) float32 { return max(acc, v) })
}

func reduce(axis int, inputs []Input, id NodeId, init float32, fold func(acc, v float32) float32) (*tensors.Tensor, View) {
	view := &inputs[0].View
	dims := view.Shape.EffectiveDims()
	front, back := 1, 1
	for _, d := range dims[:axis] {
		front *= d
	}
	for _, d := range dims[axis+1:] {
		back *= d
	}
	rdim := dims[axis]

	ix := view.Shape.Indexer()
	data := inputs[0].Tensor.Float32()
	out := xslices.SliceWithValue(front*back, init)
	for a := 0; a < front; a++ {
		for c := 0; c < back; c++ {
			for b := 0; b < rdim; b++ {
				if phys, ok := ix.Index((a*rdim+b)*back + c); ok {
					out[a*back+c] = fold(out[a*back+c], data[phys])
				}
			}
		}
	}
	reduced := append(append([]int{}, dims[:axis]...), dims[axis+1:]...)
	return tensors.FromFlat(out), View{TensorId: id, Shape: shapes.Make(reduced...)}
}

// Permute reorders the logical axes of its input view. It materializes
// nothing: the output is a view over the input's backing buffer.
type Permute struct {
	Axes []int
}

func (op *Permute) Name() string { return "Permute" }

func (op *Permute) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	shape := inputs[0].View.Shape.Clone()
	shape.Permute(op.Axes)
	return nil, View{TensorId: inputs[0].View.TensorId, Shape: shape}
}

// Expand inserts a broadcast (fake) axis into its input view. It materializes
// nothing: the output is a view over the input's backing buffer.
type Expand struct {
	Axis int
	Dim  shapes.Dim
}

func (op *Expand) Name() string { return "Expand" }

func (op *Expand) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	shape := inputs[0].View.Shape.Clone()
	shape.Expand(op.Axis, op.Dim)
	return nil, View{TensorId: inputs[0].View.TensorId, Shape: shape}
}

// Contiguous materializes a possibly permuted, sliced or padded view into a
// fresh dense buffer, zero-filling logical positions with no backing element.
type Contiguous struct{}

func (op *Contiguous) Name() string { return "Contiguous" }

func (op *Contiguous) Process(inputs []Input, id NodeId) (*tensors.Tensor, View) {
	view := &inputs[0].View
	ix := view.Shape.Indexer()
	data := inputs[0].Tensor.Float32()
	out := make([]float32, view.Shape.NumElements())
	for i := range out {
		if phys, ok := ix.Index(i); ok {
			out[i] = data[phys]
		}
	}
	return tensors.FromFlat(out), View{TensorId: id, Shape: shapes.Make(view.Shape.EffectiveDims()...)}
}
