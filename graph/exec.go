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
	"sort"

	"github.com/john-rice/luminal/types/shapes"
	"github.com/john-rice/luminal/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Execute runs the graph synchronously in topological order, calling each
// operator's Process with resolved (tensor, view) pairs.
//
// dynDims supplies concrete sizes for named dynamic dimensions; a named symbol
// still unresolved at the point it is needed and absent from dynDims is a
// fatal usage error. Axes carrying the default unresolved symbol are
// reconciled across binary-op edges first (defaulting to one), mirroring how
// broadcast edges are built.
//
// Execute can be called again after optimization; intermediate state from the
// previous run is discarded.
func (g *Graph) Execute(dynDims map[rune]int) error {
	order := g.topologicalOrder()
	g.views = make(map[NodeId]View, len(order))
	klog.V(2).Infof("graph: executing %d nodes", len(order))

	for _, id := range order {
		node := g.nodes[id]
		if _, isInput := node.op.(*InputOp); isInput {
			if g.tensors[id] == nil {
				return errors.Errorf("graph: input node %s has no tensor set", node)
			}
			g.views[id] = View{TensorId: id, Shape: g.resolveTracker(shapes.New(node.shape...), dynDims)}
			continue
		}

		inputs := g.gatherInputs(node, dynDims)
		t, view := node.op.Process(inputs, id)
		if t != nil {
			g.tensors[id] = t
		} else if g.tensors[view.TensorId] == nil {
			internalErrorf("graph: node %s produced a view onto node %d, which has no realized tensor", node, view.TensorId)
		}
		g.views[id] = view
		klog.V(2).Infof("graph: executed %s -> view of %d, shape %s", node, view.TensorId, view.Shape)
	}
	return nil
}

// gatherInputs assembles the (tensor, view) pairs of a node, resolving dynamic
// dimensions on the edge trackers.
func (g *Graph) gatherInputs(node *Node, dynDims map[rune]int) []Input {
	edges := g.InEdges(node.id)
	inputs := make([]Input, len(edges))
	for k, e := range edges {
		srcView, executed := g.views[e.source]
		if !executed {
			internalErrorf("graph: node %s consumes node %d before it was executed", node, e.source)
		}
		t := g.tensors[srcView.TensorId]
		if t == nil {
			internalErrorf("graph: node %s consumes node %d, whose backing tensor %d is missing", node, e.source, srcView.TensorId)
		}
		inputs[k] = Input{Tensor: t, View: View{TensorId: srcView.TensorId, Shape: e.view.Clone()}}
	}
	if len(inputs) == 2 {
		// Broadcast edges may still carry default-unresolved axes, fill them
		// from the opposite operand.
		shapes.ResolveLocalDynDims(&inputs[0].View.Shape, &inputs[1].View.Shape, true)
	}
	for k := range inputs {
		inputs[k].View.Shape = g.resolveTracker(inputs[k].View.Shape, dynDims)
	}
	return inputs
}

func (g *Graph) resolveTracker(st shapes.ShapeTracker, dynDims map[rune]int) shapes.ShapeTracker {
	if !st.HasUnknownDims() {
		return st
	}
	return st.ResolveGlobalDynDims(dynDims)
}

// topologicalOrder returns the current node ids so that every node appears
// after all of its sources. A dependency cycle is a broken structural
// invariant.
func (g *Graph) topologicalOrder() []NodeId {
	inDegree := make(map[NodeId]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.inEdges[id])
	}
	ready := make([]NodeId, 0, len(g.nodes))
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	order := make([]NodeId, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, e := range g.outEdges[id] {
			inDegree[e.target]--
			if inDegree[e.target] == 0 {
				ready = append(ready, e.target)
			}
		}
	}
	if len(order) != len(g.nodes) {
		internalErrorf("graph: dependency cycle, only %d of %d nodes are orderable", len(order), len(g.nodes))
	}
	return order
}

// GetOutput returns the executed output of a node, following the id-remap
// table so handles taken before optimization remain valid.
func (g *Graph) GetOutput(id NodeId) (*tensors.Tensor, View, error) {
	rid := g.ResolveId(id)
	view, executed := g.views[rid]
	if !executed {
		return nil, View{}, errors.Errorf("graph: node %d has not been executed", id)
	}
	t := g.tensors[view.TensorId]
	if t == nil {
		return nil, View{}, errors.Errorf("graph: output of node %d has no realized tensor", id)
	}
	return t, view, nil
}

// RealizedData materializes the executed output of a node in logical order,
// zero-filling positions with no backing physical element.
func (g *Graph) RealizedData(id NodeId) ([]float32, error) {
	t, view, err := g.GetOutput(id)
	if err != nil {
		return nil, err
	}
	ix := view.Shape.Indexer()
	data := t.Float32()
	out := make([]float32, view.Shape.NumElements())
	for i := range out {
		if phys, ok := ix.Index(i); ok {
			out[i] = data[phys]
		}
	}
	return out, nil
}
