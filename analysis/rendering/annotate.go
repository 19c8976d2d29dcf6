// Copyright the Treeflow authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package render

import (
	"fmt"

	"github.com/flowlabs/treeflow/analysis/cfg"
	"github.com/flowlabs/treeflow/analysis/dataflow"
)

// ResultAnnotator renders the before and after stores of a fixed point on each
// block, and marks blocks the analysis never reached as dead code.
func ResultAnnotator[V dataflow.Value[V], S dataflow.Store[S]](r *dataflow.Result[V, S]) Annotator {
	return AnnotatorFunc(func(b *cfg.Block) []string {
		if b.Special() != cfg.NotSpecial {
			in := r.StoreAt(b.ID(), dataflow.StoreBefore)
			if in.IsSome() {
				return []string{fmt.Sprintf("store: %v", in.Value())}
			}
			return nil
		}
		in := r.StoreAt(b.ID(), dataflow.StoreBefore)
		out := r.StoreAt(b.ID(), dataflow.StoreAfter)
		if in.IsNone() {
			return []string{"(dead code)"}
		}
		lines := []string{fmt.Sprintf("before: %v", in.Value())}
		if out.IsSome() {
			lines = append(lines, fmt.Sprintf("after: %v", out.Value()))
		}
		return lines
	})
}
