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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlNode mirrors Node with a string kind, for decoding.
type yamlNode struct {
	Kind  string  `yaml:"kind"`
	Cond  *Node   `yaml:"cond"`
	Then  *Node   `yaml:"then"`
	Else  *Node   `yaml:"else"`
	Init  *Node   `yaml:"init"`
	Post  *Node   `yaml:"post"`
	Body  []*Node `yaml:"body"`
	Expr  *Node   `yaml:"expr"`
	X     *Node   `yaml:"x"`
	Y     *Node   `yaml:"y"`
	Args  []*Node `yaml:"args"`
	Name  string  `yaml:"name"`
	Sel   string  `yaml:"sel"`
	Label string  `yaml:"label"`
	Op    string  `yaml:"op"`
	Value string  `yaml:"value"`
	Type  string  `yaml:"type"`
}

// UnmarshalYAML decodes a yaml mapping into a syntax-tree node. The node's position is
// taken from the yaml document, so builder errors can point back into the input file.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var aux yamlNode
	if err := value.Decode(&aux); err != nil {
		return err
	}
	k := KindFromString(aux.Kind)
	if k == BadNode {
		return fmt.Errorf("unknown node kind %q at line %d", aux.Kind, value.Line)
	}
	n.ID = NoID
	n.Kind = k
	n.Pos = Position{Line: value.Line, Col: value.Column}
	n.Cond = aux.Cond
	n.Then = aux.Then
	n.Else = aux.Else
	n.Init = aux.Init
	n.Post = aux.Post
	n.Body = aux.Body
	n.Expr = aux.Expr
	n.X = aux.X
	n.Y = aux.Y
	n.Args = aux.Args
	n.Name = aux.Name
	n.Sel = aux.Sel
	n.Label = aux.Label
	n.Op = aux.Op
	n.Value = aux.Value
	n.Type = aux.Type
	return nil
}

// LoadYAML decodes a procedure body from yaml data and numbers its nodes. It returns
// the root node and the number of nodes in the tree.
func LoadYAML(data []byte) (*Node, int, error) {
	root := &Node{}
	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, 0, fmt.Errorf("could not unmarshal syntax tree: %w", err)
	}
	if root.Kind == BadNode {
		return nil, 0, fmt.Errorf("empty syntax tree")
	}
	return root, Renumber(root), nil
}

// LoadYAMLFile reads a procedure body from the yaml file at path.
func LoadYAMLFile(path string) (*Node, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("could not read tree file: %w", err)
	}
	root, numNodes, err := LoadYAML(b)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return root, numNodes, nil
}
