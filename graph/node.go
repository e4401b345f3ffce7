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
	"fmt"
	"strings"

	"github.com/john-rice/luminal/types/shapes"
	"github.com/john-rice/luminal/types/tensors"
)

// NodeId is a unique node id within a Graph.
//
// Ids handed out by the builder remain valid external handles across
// optimization: when a node is spliced out, the graph's id-remap table redirects
// its id to the replacement. Use Graph.ResolveId to follow the redirection.
type NodeId int

// InvalidNodeId indicates a node that failed to be created.
const InvalidNodeId = NodeId(-1)

// View is an operator's output as seen through a shape tracker: TensorId names
// the node whose realized tensor backs the data, Shape describes how to read it.
type View struct {
	TensorId NodeId
	Shape    shapes.ShapeTracker
}

// Input is one resolved `(tensor, view)` pair handed to Operator.Process.
type Input struct {
	Tensor *tensors.Tensor
	View   View
}

// Operator is the polymorphic payload of a graph node.
//
// Process receives the node's inputs in declared order and the node's own id,
// and returns an optionally newly-realized tensor plus the output view. A nil
// tensor signals "output is a view only, no new buffer materialized" (movement
// ops); either way the returned view's TensorId must name the node whose
// buffer backs the output.
//
// Optimizers identify operators structurally, by Name and by downcasting to
// the concrete type, so implementations should be distinct named types.
type Operator interface {
	Name() string
	Process(inputs []Input, id NodeId) (*tensors.Tensor, View)
}

// Node is one vertex of the computation graph: an operator plus its declared
// output shape.
type Node struct {
	id    NodeId
	op    Operator
	shape []shapes.Dim
}

// Id is the unique id of this node within the Graph.
func (n *Node) Id() NodeId { return n.id }

// Op returns the node's operator payload.
func (n *Node) Op() Operator { return n.op }

// Shape returns the node's declared output shape.
func (n *Node) Shape() []shapes.Dim { return n.shape }

// Rank returns the rank of the declared output shape.
func (n *Node) Rank() int { return len(n.shape) }

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	dims := make([]string, len(n.shape))
	for i, d := range n.shape {
		dims[i] = d.String()
	}
	return fmt.Sprintf("%s#%d[%s]", n.op.Name(), n.id, strings.Join(dims, " "))
}

// Edge is a direct dependency between two nodes, tagged with the input slot it
// feeds on the target and the shape-tracker view describing how the target
// reads the source's output.
type Edge struct {
	source, target NodeId
	inputOrder     int
	view           shapes.ShapeTracker
}

// Source returns the producing node's id.
func (e *Edge) Source() NodeId { return e.source }

// Target returns the consuming node's id.
func (e *Edge) Target() NodeId { return e.target }

// InputOrder returns the input slot this edge feeds on the target.
func (e *Edge) InputOrder() int { return e.inputOrder }

// View returns the shape-tracker view attached to the edge.
func (e *Edge) View() shapes.ShapeTracker { return e.view }

// SourceRef describes one input of a node: the source node, the input slot it
// feeds, and the view attached to the edge.
type SourceRef struct {
	Node       *Node
	InputOrder int
	View       shapes.ShapeTracker
}
