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

// Package graph implements the dataflow computation graph at the center of
// luminal: nodes hold polymorphic operators, edges carry the shape-tracker
// view through which each operator reads its inputs.
//
// Graphs are built with the AddOp(...).Input(...).Finish() builder, executed
// with Execute, and rewritten in place by optimizer passes (see the optimizers
// package). Node ids handed out by the builder stay valid across rewriting:
// every deletion/replacement migrates external references through the id-remap
// table and the no-delete/to-retrieve membership sets atomically, before the
// old node is removed.
//
// The graph is designed for single-threaded, synchronous transformation; it
// provides no internal locking. Optimizer passes assume exclusive access for
// their duration and must leave the graph structurally consistent (no dangling
// edges, no orphaned set entries) before returning.
//
// ## Errors
//
// Usage errors in graph construction (they represent programmer error, not
// runtime data issues) panic immediately via exceptions.Panicf. Broken
// structural invariants -- an edge naming a deleted node, reference migration
// on an untracked id -- panic with an InternalError, a distinct class that
// should never surface unless an optimizer is buggy.
package graph

import (
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/john-rice/luminal/types"
	"github.com/john-rice/luminal/types/shapes"
	"github.com/john-rice/luminal/types/tensors"
	"github.com/pkg/errors"
)

// InternalError signals a broken graph invariant: structurally inconsistent
// state left behind by an optimizer or executor bug. It is thrown via panic
// and can be caught with exceptions.Catch[InternalError].
type InternalError struct {
	err error
}

func (e InternalError) Error() string { return e.err.Error() }

// Unwrap returns the underlying error, with its stack trace.
func (e InternalError) Unwrap() error { return e.err }

func internalErrorf(format string, args ...any) {
	panic(InternalError{err: errors.Errorf(format, args...)})
}

// Graph with the operations and dependencies needed to run a computation.
//
// The zero value is not usable, create one with New.
type Graph struct {
	nodes    map[NodeId]*Node
	outEdges map[NodeId][]*Edge
	inEdges  map[NodeId][]*Edge
	nextId   NodeId

	// noDelete protects node ids from removal by optimizer rewrites.
	noDelete types.Set[NodeId]
	// toRetrieve marks node ids whose output must survive to the caller.
	toRetrieve types.Set[NodeId]
	// idRemap redirects stable external handles to current internal node ids.
	idRemap map[NodeId]NodeId

	// tensors holds realized buffers per producing node; views describe how to
	// read each executed node's output. Both are filled in by Execute.
	tensors map[NodeId]*tensors.Tensor
	views   map[NodeId]View
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[NodeId]*Node),
		outEdges:   make(map[NodeId][]*Edge),
		inEdges:    make(map[NodeId][]*Edge),
		noDelete:   types.MakeSet[NodeId](),
		toRetrieve: types.MakeSet[NodeId](),
		idRemap:    make(map[NodeId]NodeId),
		tensors:    make(map[NodeId]*tensors.Tensor),
		views:      make(map[NodeId]View),
	}
}

// OpBuilder accumulates the inputs of a node being added, see Graph.AddOp.
type OpBuilder struct {
	graph  *Graph
	op     Operator
	shape  []shapes.Dim
	inputs []SourceRef
}

// AddOp starts adding a node holding the given operator, with the given
// declared output shape. Chain Input calls for each operand, in order, and
// Finish to insert the node.
func (g *Graph) AddOp(op Operator, shape ...shapes.Dim) *OpBuilder {
	if op == nil {
		exceptions.Panicf("Graph.AddOp: operator cannot be nil")
	}
	return &OpBuilder{graph: g, op: op, shape: shape}
}

// Input appends an operand: the source node id and the shape-tracker view
// through which the new node will read it. The view is cloned.
func (b *OpBuilder) Input(source NodeId, view shapes.ShapeTracker) *OpBuilder {
	src := b.graph.nodes[source]
	if src == nil {
		exceptions.Panicf("OpBuilder.Input(%d): source node does not exist", source)
	}
	b.inputs = append(b.inputs, SourceRef{Node: src, InputOrder: len(b.inputs), View: view.Clone()})
	return b
}

// Finish inserts the node and returns its id.
func (b *OpBuilder) Finish() NodeId {
	g := b.graph
	id := g.nextId
	g.nextId++
	g.nodes[id] = &Node{id: id, op: b.op, shape: b.shape}
	for _, input := range b.inputs {
		g.AddEdge(input.Node.id, id, input.InputOrder, input.View)
	}
	return id
}

// NewInput adds a leaf Input node with the given declared shape and protects
// it from optimizer rewrites. Feed it with SetTensor before executing.
func (g *Graph) NewInput(shape ...shapes.Dim) NodeId {
	id := g.AddOp(&InputOp{}, shape...).Finish()
	g.noDelete.Insert(id)
	return id
}

// SetTensor assigns the realized buffer of an Input node.
func (g *Graph) SetTensor(id NodeId, t *tensors.Tensor) {
	rid := g.ResolveId(id)
	if g.nodes[rid] == nil {
		exceptions.Panicf("Graph.SetTensor(%d): node does not exist", id)
	}
	g.tensors[rid] = t
}

// Protect adds the node to the no-delete set, shielding it from optimizer
// rewrites. Input nodes are protected automatically.
func (g *Graph) Protect(id NodeId) {
	rid := g.ResolveId(id)
	if g.nodes[rid] == nil {
		exceptions.Panicf("Graph.Protect(%d): node does not exist", id)
	}
	g.noDelete.Insert(rid)
}

// MarkOutput marks the node's output for retrieval after execution, surviving
// any optimizer rewrites in between.
func (g *Graph) MarkOutput(id NodeId) {
	rid := g.ResolveId(id)
	if g.nodes[rid] == nil {
		exceptions.Panicf("Graph.MarkOutput(%d): node does not exist", id)
	}
	g.toRetrieve.Insert(rid)
}

// Node returns the node with the given current internal id, or nil if it does
// not exist. It does not follow the id-remap table -- use ResolveId first when
// holding an external handle.
func (g *Graph) Node(id NodeId) *Node {
	return g.nodes[id]
}

// NumNodes returns the number of nodes currently in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Nodes returns a snapshot of the current node ids in creation order. Rewrite
// passes iterate over this snapshot so graph surgery never invalidates the
// iteration.
func (g *Graph) Nodes() []NodeId {
	ids := make([]NodeId, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsProtected returns whether the node id is in the no-delete set.
func (g *Graph) IsProtected(id NodeId) bool { return g.noDelete.Has(id) }

// OutEdges returns the outgoing edges of a node.
func (g *Graph) OutEdges(id NodeId) []*Edge {
	return g.outEdges[id]
}

// InEdges returns the incoming edges of a node, sorted by input slot.
func (g *Graph) InEdges(id NodeId) []*Edge {
	edges := g.inEdges[id]
	sorted := make([]*Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].inputOrder < sorted[j].inputOrder })
	return sorted
}

// GetDests returns the target nodes of the node's outgoing edges.
func (g *Graph) GetDests(id NodeId) []*Node {
	dests := make([]*Node, 0, len(g.outEdges[id]))
	for _, e := range g.outEdges[id] {
		dest := g.nodes[e.target]
		if dest == nil {
			internalErrorf("graph: edge %d->%d targets a deleted node", e.source, e.target)
		}
		dests = append(dests, dest)
	}
	return dests
}

// GetSources returns the inputs of a node in input-slot order: source node,
// slot, and the view attached to the edge.
func (g *Graph) GetSources(id NodeId) []SourceRef {
	srcs := make([]SourceRef, 0, len(g.inEdges[id]))
	for _, e := range g.InEdges(id) {
		src := g.nodes[e.source]
		if src == nil {
			internalErrorf("graph: edge %d->%d references a deleted source", e.source, e.target)
		}
		srcs = append(srcs, SourceRef{Node: src, InputOrder: e.inputOrder, View: e.view})
	}
	return srcs
}

// AddEdge connects source to target on the given input slot, with the given
// view. Both endpoints must exist.
func (g *Graph) AddEdge(source, target NodeId, inputOrder int, view shapes.ShapeTracker) {
	if g.nodes[source] == nil {
		internalErrorf("graph: AddEdge(%d->%d) source does not exist", source, target)
	}
	if g.nodes[target] == nil {
		internalErrorf("graph: AddEdge(%d->%d) target does not exist", source, target)
	}
	e := &Edge{source: source, target: target, inputOrder: inputOrder, view: view.Clone()}
	g.outEdges[source] = append(g.outEdges[source], e)
	g.inEdges[target] = append(g.inEdges[target], e)
}

// RemoveNode deletes a node and all edges touching it. Deleting a node in the
// no-delete set is a usage error; optimizers are expected to have checked
// membership before matching.
func (g *Graph) RemoveNode(id NodeId) {
	if g.nodes[id] == nil {
		internalErrorf("graph: RemoveNode(%d): node does not exist", id)
	}
	if g.noDelete.Has(id) {
		exceptions.Panicf("Graph.RemoveNode(%d): node is in the no-delete set", id)
	}
	for _, e := range g.outEdges[id] {
		g.inEdges[e.target] = removeEdge(g.inEdges[e.target], e)
	}
	for _, e := range g.inEdges[id] {
		g.outEdges[e.source] = removeEdge(g.outEdges[e.source], e)
	}
	delete(g.outEdges, id)
	delete(g.inEdges, id)
	delete(g.nodes, id)
	delete(g.tensors, id)
	delete(g.views, id)
}

func removeEdge(edges []*Edge, e *Edge) []*Edge {
	for i, other := range edges {
		if other == e {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	internalErrorf("graph: edge %d->%d missing from its adjacency list", e.source, e.target)
	return nil
}

// ReplaceOp swaps the operator payload of an existing node in place, keeping
// its id, shape and edges.
func (g *Graph) ReplaceOp(id NodeId, op Operator) {
	node := g.nodes[id]
	if node == nil {
		internalErrorf("graph: ReplaceOp(%d): node does not exist", id)
	}
	node.op = op
}

// MoveReferences migrates every external reference from a node about to be
// deleted to its replacement: the id-remap table is rewritten and membership
// in the no-delete/to-retrieve sets moves over, atomically, before the old
// node goes away.
func (g *Graph) MoveReferences(from, to NodeId) {
	if g.nodes[from] == nil {
		internalErrorf("graph: MoveReferences(%d->%d): source id is not tracked", from, to)
	}
	if g.nodes[to] == nil {
		internalErrorf("graph: MoveReferences(%d->%d): replacement id is not tracked", from, to)
	}
	for handle, current := range g.idRemap {
		if current == from {
			g.idRemap[handle] = to
		}
	}
	g.idRemap[from] = to
	if g.noDelete.Has(from) {
		g.noDelete.Discard(from)
		g.noDelete.Insert(to)
	}
	if g.toRetrieve.Has(from) {
		g.toRetrieve.Discard(from)
		g.toRetrieve.Insert(to)
	}
}

// ResolveId follows the id-remap table from a stable external handle to the
// current internal node id.
func (g *Graph) ResolveId(id NodeId) NodeId {
	for hops := 0; hops <= len(g.idRemap); hops++ {
		next, found := g.idRemap[id]
		if !found {
			return id
		}
		id = next
	}
	internalErrorf("graph: id-remap table contains a cycle at %d", id)
	return InvalidNodeId
}
