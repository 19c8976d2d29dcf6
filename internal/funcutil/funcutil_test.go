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

package funcutil

import (
	"reflect"
	"strconv"
	"testing"
)

func TestMerge(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2}
	b := map[string]int{"y": 3, "z": 4}
	Merge(a, b, func(x, y int) int { return x + y })
	want := map[string]int{"x": 1, "y": 5, "z": 4}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("Merge: got %v, want %v", a, want)
	}
}

func TestUnion(t *testing.T) {
	a := map[string]bool{"x": true}
	b := map[string]bool{"y": true}
	got := Union(a, b)
	if !got["x"] || !got["y"] {
		t.Errorf("Union: got %v", got)
	}
}

func TestMapFilterContains(t *testing.T) {
	xs := []int{1, 2, 3, 4}
	strs := Map(xs, strconv.Itoa)
	if !reflect.DeepEqual(strs, []string{"1", "2", "3", "4"}) {
		t.Errorf("Map: got %v", strs)
	}
	even := Filter(xs, func(x int) bool { return x%2 == 0 })
	if !reflect.DeepEqual(even, []int{2, 4}) {
		t.Errorf("Filter: got %v", even)
	}
	if !Contains(xs, 3) || Contains(xs, 5) {
		t.Error("Contains misbehaves")
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[int]string{3: "c", 1: "a", 2: "b"}
	if got := SortedKeys(m); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("SortedKeys: got %v", got)
	}
}

func TestOptional(t *testing.T) {
	s := Some(41)
	if s.IsNone() || !s.IsSome() || s.Value() != 41 || s.ValueOr(0) != 41 {
		t.Error("Some misbehaves")
	}
	n := None[int]()
	if n.IsSome() || !n.IsNone() || n.ValueOr(7) != 7 {
		t.Error("None misbehaves")
	}
	mapped := MapOption(s, func(x int) int { return x + 1 })
	if mapped.IsNone() || mapped.Value() != 42 {
		t.Errorf("MapOption: got %v", mapped)
	}
	if got := MapOption(n, strconv.Itoa); got.IsSome() {
		t.Errorf("MapOption on none: got %v", got)
	}
}
