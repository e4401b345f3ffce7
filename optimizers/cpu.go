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

package optimizers

// Passes and fused ops specific to CPU execution.

import (
	"strings"

	"github.com/john-rice/luminal/graph"
	"github.com/john-rice/luminal/types/shapes"
	"github.com/john-rice/luminal/types/tensors"
	"github.com/john-rice/luminal/types/xslices"
	"gonum.org/v1/gonum/blas"
	blasgonum "gonum.org/v1/gonum/blas/gonum"
	"k8s.io/klog/v2"
)

// MatMulOptimizer detects the decomposed elementwise-multiply-and-reduce
// pattern expressing a 2D matrix product and replaces it with a single fused
// MatMul2D node:
//
//	Permute(rank 2) -> Expand(rank 3) -> Mul(rank 3) <- Expand(rank 3)
//	                                      |
//	                                      v
//	                                  SumReduce(rank 2)
//
// Every intermediate node must have exactly one consumer -- a shared (fanned
// out) sub-expression defeats fusion rather than triggering a duplicated one --
// and none of the matched nodes may be protected by the no-delete set.
type MatMulOptimizer struct{}

// Optimize implements GraphOptimizer.
func (o *MatMulOptimizer) Optimize(g *graph.Graph) {
	for _, id := range g.Nodes() {
		permute := g.Node(id)
		if permute == nil {
			// Removed by an earlier splice in this same pass.
			continue
		}
		if permute.Op().Name() != "Permute" || permute.Rank() != 2 {
			continue
		}
		dests := g.GetDests(id)
		if len(dests) != 1 || dests[0].Op().Name() != "Expand" || dests[0].Rank() != 3 {
			continue
		}
		expand1 := dests[0]

		dests = g.GetDests(expand1.Id())
		if len(dests) != 1 || dests[0].Op().Name() != "Mul" || dests[0].Rank() != 3 {
			continue
		}
		mul := dests[0]

		var otherSrcs []graph.SourceRef
		for _, src := range g.GetSources(mul.Id()) {
			if src.Node.Id() != expand1.Id() {
				otherSrcs = append(otherSrcs, src)
			}
		}
		if len(otherSrcs) != 1 || otherSrcs[0].Node.Op().Name() != "Expand" || otherSrcs[0].Node.Rank() != 3 {
			continue
		}
		expand2 := otherSrcs[0].Node

		dests = g.GetDests(mul.Id())
		if len(dests) != 1 || dests[0].Op().Name() != "SumReduce" || dests[0].Rank() != 2 {
			continue
		}
		sumReduce := dests[0]

		if g.IsProtected(id) || g.IsProtected(expand1.Id()) ||
			g.IsProtected(expand2.Id()) || g.IsProtected(mul.Id()) ||
			g.IsProtected(sumReduce.Id()) {
			// One of these nodes is marked to not delete, we can't remove them.
			continue
		}

		input0 := xslices.Last(g.GetSources(expand2.Id()))
		input1 := xslices.Last(g.GetSources(id))

		// Now we have a verified matmul, replace it with the fused op.
		newOp := g.AddOp(&MatMul2D{}, input0.View.Shape()[0], input1.View.Shape()[1]).
			Input(input0.Node.Id(), input0.View).
			Input(input1.Node.Id(), input1.View).
			Finish()

		for _, e := range xslices.Copy(g.OutEdges(sumReduce.Id())) {
			g.AddEdge(newOp, e.Target(), e.InputOrder(), e.View())
		}
		g.MoveReferences(sumReduce.Id(), newOp)

		g.RemoveNode(expand1.Id())
		g.RemoveNode(expand2.Id())
		g.RemoveNode(id)
		g.RemoveNode(mul.Id())
		g.RemoveNode(sumReduce.Id())
		klog.V(1).Infof("optimizers: fused 2D matmul of nodes %d x %d into node %d",
			input0.Node.Id(), input1.Node.Id(), newOp)
	}
}

// MatMul2D multiplies two 2D views using their declared strides, without
// requiring the operands to be materialized contiguously, producing a dense
// result.
type MatMul2D struct{}

// Name implements graph.Operator.
func (op *MatMul2D) Name() string { return "MatMul2D" }

// Process implements graph.Operator.
func (op *MatMul2D) Process(inputs []graph.Input, id graph.NodeId) (*tensors.Tensor, graph.View) {
	aDims := inputs[0].View.Shape.EffectiveDims()
	bDims := inputs[1].View.Shape.EffectiveDims()
	m, k, n := aDims[0], aDims[1], bDims[1]

	aData, lda, transA := gemmOperand(&inputs[0])
	bData, ldb, transB := gemmOperand(&inputs[1])
	out := tensors.Zeros(m * n)
	var impl blasgonum.Implementation
	impl.Sgemm(transA, transB, m, n, k, 1, aData, lda, bData, ldb, 0, out.Float32(), n)
	return out, graph.View{TensorId: id, Shape: shapes.Make(m, n)}
}

// gemmOperand describes a 2D view as an sgemm operand: buffer, leading
// dimension and transpose flag. A strided view is passed through directly when
// its strides are expressible as a leading dimension; sliced, padded,
// broadcast or otherwise scattered views are materialized densely first.
func gemmOperand(in *graph.Input) ([]float32, int, blas.Transpose) {
	st := &in.View.Shape
	dims := st.EffectiveDims()
	if !st.IsSliced() && !st.IsPadded() && !st.HasFakeAxes() {
		strides := st.Strides()
		if strides[1] == 1 && strides[0] >= dims[1] {
			return in.Tensor.Float32(), strides[0], blas.NoTrans
		}
		if strides[0] == 1 && strides[1] >= dims[0] {
			return in.Tensor.Float32(), strides[1], blas.Trans
		}
	}
	ix := st.Indexer()
	data := in.Tensor.Float32()
	dense := make([]float32, dims[0]*dims[1])
	for i := range dense {
		if phys, ok := ix.Index(i); ok {
			dense[i] = data[phys]
		}
	}
	return dense, dims[1], blas.NoTrans
}

// UnaryFusionOptimizer collapses every maximal chain of single-input,
// single-output elementwise unary operators (Exp2, Log2, Recip, Sqrt, Sin, or
// an already fused chain) into one FusedUnary node applying the whole function
// list in a single pass over the buffer.
//
// A chain only fuses across single-fanout edges, and a successor protected by
// the no-delete set is never removed.
type UnaryFusionOptimizer struct{}

// Optimize implements GraphOptimizer.
func (o *UnaryFusionOptimizer) Optimize(g *graph.Graph) {
	for _, id := range g.Nodes() {
		if g.Node(id) == nil || g.IsProtected(id) {
			continue
		}
		// Keep merging the immediate successor into this node until the chain
		// is maximal.
		for o.fuseIntoPredecessor(g, id) {
		}
	}
}

// fuseIntoPredecessor merges the single successor of id into id if both are
// fusable unaries, reporting whether a merge happened.
func (o *UnaryFusionOptimizer) fuseIntoPredecessor(g *graph.Graph, id graph.NodeId) bool {
	out := g.OutEdges(id)
	if len(out) != 1 {
		return false
	}
	succ := out[0].Target()
	if g.IsProtected(succ) {
		return false
	}
	fns, ok := fusableFns(g.Node(id).Op())
	succFns, succOk := fusableFns(g.Node(succ).Op())
	if !ok || !succOk {
		return false
	}

	merged := NewFusedUnary(append(fns, succFns...)...)
	g.ReplaceOp(id, merged)
	for _, e := range xslices.Copy(g.OutEdges(succ)) {
		g.AddEdge(id, e.Target(), e.InputOrder(), e.View())
	}
	g.MoveReferences(succ, id)
	g.RemoveNode(succ)
	klog.V(1).Infof("optimizers: fused unary chain [%s] on node %d",
		strings.Join(merged.FunctionNames(), " "), id)
	return true
}

// fusableFns returns the ordered scalar function list of a fusable operator:
// one entry for a recognized unary, the stored list for an existing fused
// chain, and none-of-the-above otherwise. The returned slice is fresh.
func fusableFns(op graph.Operator) ([]graph.ScalarFn, bool) {
	switch typed := op.(type) {
	case *graph.Exp2:
		return []graph.ScalarFn{typed.Scalar()}, true
	case *graph.Log2:
		return []graph.ScalarFn{typed.Scalar()}, true
	case *graph.Recip:
		return []graph.ScalarFn{typed.Scalar()}, true
	case *graph.Sqrt:
		return []graph.ScalarFn{typed.Scalar()}, true
	case *graph.Sin:
		return []graph.ScalarFn{typed.Scalar()}, true
	case *FusedUnary:
		return typed.Functions(), true
	}
	return nil, false
}

// FusedUnary applies an ordered list of scalar functions to every element of
// its input in one pass.
type FusedUnary struct {
	fns []graph.ScalarFn
}

// NewFusedUnary builds a fused chain applying the given functions in order.
func NewFusedUnary(fns ...graph.ScalarFn) *FusedUnary {
	return &FusedUnary{fns: fns}
}

// Functions returns a copy of the ordered scalar function list.
func (op *FusedUnary) Functions() []graph.ScalarFn {
	return xslices.Copy(op.fns)
}

// FunctionNames returns the names of the chain's functions, in application order.
func (op *FusedUnary) FunctionNames() []string {
	return xslices.Map(op.fns, func(fn graph.ScalarFn) string { return fn.Name })
}

// Name implements graph.Operator.
func (op *FusedUnary) Name() string { return "FusedUnary" }

// Process implements graph.Operator.
func (op *FusedUnary) Process(inputs []graph.Input, id graph.NodeId) (*tensors.Tensor, graph.View) {
	t := inputs[0].Tensor.Clone()
	data := t.Float32()
	for i, v := range data {
		for _, fn := range op.fns {
			v = fn.Apply(v)
		}
		data[i] = v
	}
	return t, graph.View{TensorId: id, Shape: inputs[0].View.Shape.Clone()}
}
