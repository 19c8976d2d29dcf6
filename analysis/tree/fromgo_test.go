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

package tree

import (
	"path/filepath"
	"testing"
)

func kindCount(root *Node, k Kind) int {
	count := 0
	Walk(root, func(n *Node) bool {
		if n.Kind == k {
			count++
		}
		return true
	})
	return count
}

func TestFromGoFileAbs(t *testing.T) {
	proc, err := FromGoFile(filepath.Join("testdata", "sample.go"), "abs")
	if err != nil {
		t.Fatalf("FromGoFile returned error: %v", err)
	}
	if proc.Name != "abs" {
		t.Errorf("name: got %q, want abs", proc.Name)
	}
	if len(proc.Params) != 1 || proc.Params[0] != "x" {
		t.Errorf("params: got %v, want [x]", proc.Params)
	}
	if proc.Body.Kind != BlockStmt {
		t.Fatalf("body kind: got %s, want block", proc.Body.Kind)
	}
	if got := kindCount(proc.Body, IfStmt); got != 1 {
		t.Errorf("if statements: got %d, want 1", got)
	}
	if got := kindCount(proc.Body, Unary); got != 1 {
		t.Errorf("unary nodes: got %d, want 1", got)
	}
	if got := kindCount(proc.Body, ReturnStmt); got != 1 {
		t.Errorf("return statements: got %d, want 1", got)
	}
	if proc.NumNodes == 0 {
		t.Error("tree was not numbered")
	}
	// positions must point into the parsed file
	Walk(proc.Body, func(n *Node) bool {
		if n.Pos.Line == 0 {
			t.Errorf("node %d (%s) has no source line", n.ID, n.Kind)
		}
		return true
	})
}

func TestFromGoFileForLoop(t *testing.T) {
	proc, err := FromGoFile(filepath.Join("testdata", "sample.go"), "sum")
	if err != nil {
		t.Fatalf("FromGoFile returned error: %v", err)
	}
	if got := kindCount(proc.Body, ForStmt); got != 1 {
		t.Errorf("for statements: got %d, want 1", got)
	}
	// s += i desugars into s = s + i
	assigns := 0
	Walk(proc.Body, func(n *Node) bool {
		if n.Kind == Assign && n.X != nil && n.X.Name == "s" && n.Y != nil && n.Y.Kind == Binary {
			assigns++
		}
		return true
	})
	if assigns != 1 {
		t.Errorf("compound assignments to s: got %d, want 1", assigns)
	}
}

func TestFromGoFileSwitch(t *testing.T) {
	proc, err := FromGoFile(filepath.Join("testdata", "sample.go"), "pick")
	if err != nil {
		t.Fatalf("FromGoFile returned error: %v", err)
	}
	if got := kindCount(proc.Body, CaseClause); got != 3 {
		t.Errorf("case clauses: got %d, want 3", got)
	}
	// Go cases do not fall through: one synthetic break per clause
	if got := kindCount(proc.Body, BreakStmt); got != 3 {
		t.Errorf("breaks: got %d, want 3", got)
	}
	if got := kindCount(proc.Body, ThrowStmt); got != 1 {
		t.Errorf("panic conversions: got %d, want 1", got)
	}
}

func TestFromGoFileNotFound(t *testing.T) {
	if _, err := FromGoFile(filepath.Join("testdata", "sample.go"), "missing"); err == nil {
		t.Error("expected an error for a function that does not exist")
	}
}
