// Copyright 2026 The cmlids Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package p4info

// Node is an entry of a Block: either a nested *Block or a Leaf value.
type Node interface {
	node()
}

// Leaf is the unquoted value of a `key: value` line.
type Leaf string

func (Leaf) node() {}

// Block is a named `name { ... }` section. Entries keep their insertion order.
type Block struct {
	Name    string
	keys    []string
	entries map[string]Node
}

func (*Block) node() {}

func newBlock(name string) *Block {
	return &Block{Name: name, entries: make(map[string]Node)}
}

// Keys returns the entry keys in the order they appeared.
func (b *Block) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Get returns the entry stored under key.
func (b *Block) Get(key string) (Node, bool) {
	n, ok := b.entries[key]
	return n, ok
}

// Block returns the nested block stored under key.
func (b *Block) Block(key string) (*Block, bool) {
	n, ok := b.entries[key].(*Block)
	return n, ok
}

// Leaf returns the leaf value stored under key.
func (b *Block) Leaf(key string) (string, bool) {
	l, ok := b.entries[key].(Leaf)
	return string(l), ok
}

// Lookup follows path through nested blocks.
func (b *Block) Lookup(path ...string) (Node, bool) {
	var cur Node = b
	for _, p := range path {
		blk, ok := cur.(*Block)
		if !ok {
			return nil, false
		}
		if cur, ok = blk.entries[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// set stores n under key. A repeated key keeps its first position and the
// latest value.
func (b *Block) set(key string, n Node) {
	if _, ok := b.entries[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.entries[key] = n
}
