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

// Package optimizers implements graph rewrite passes: each pass pattern-matches
// subgraphs and splices in semantically equivalent, faster operator sequences.
//
// Passes mutate the graph in place but preserve its externally observable
// input/output contract: no node in the no-delete set is removed, and every
// deleted node has its external references migrated to its replacement first.
// A failed pattern match is the normal negative case, not an error; passes
// simply continue scanning.
//
// Passes are applied in a caller-chosen order, see Sequence. Each pass assumes
// exclusive access to the graph for its duration.
package optimizers

import (
	"github.com/john-rice/luminal/graph"
	"k8s.io/klog/v2"
)

// GraphOptimizer is a rewrite pass over a computation graph.
type GraphOptimizer interface {
	Optimize(g *graph.Graph)
}

// Sequence applies optimizers in order; each sees the graph as left by the
// previous one. Sequence is itself a GraphOptimizer.
type Sequence []GraphOptimizer

// Optimize implements GraphOptimizer.
func (seq Sequence) Optimize(g *graph.Graph) {
	for _, opt := range seq {
		before := g.NumNodes()
		opt.Optimize(g)
		klog.V(1).Infof("optimizers: %T: %d -> %d nodes", opt, before, g.NumNodes())
	}
}

// CPU returns the default optimizer sequence for CPU execution.
func CPU() Sequence {
	return Sequence{&MatMulOptimizer{}, &UnaryFusionOptimizer{}}
}
