// Package state locates raw comment records inside a captured snapshot of the
// page's client-side state tree.
package state

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// Node is one vertex of a snapshot tree. A snapshot is an arbitrarily nested
// structure of maps and lists of scalars; Node models it as an explicit
// tagged variant so the bounded-depth searches stay free of reflection.
//
// All accessors are nil-safe: calling them on a nil Node yields the zero
// answer, which keeps deep path probes free of existence checks.
type Node struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []*Node
	obj  map[string]*Node
}

// Parse ingests a raw JSON snapshot, typically the value of an in-page
// evaluation, into a Node tree.
func Parse(raw []byte) (*Node, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return FromAny(v), nil
}

// FromAny converts a decoded JSON value into a Node tree.
func FromAny(v interface{}) *Node {
	switch t := v.(type) {
	case nil:
		return &Node{kind: Null}
	case bool:
		return &Node{kind: Bool, b: t}
	case float64:
		return &Node{kind: Number, num: t}
	case json.Number:
		f, _ := t.Float64()
		return &Node{kind: Number, num: f}
	case string:
		return &Node{kind: String, str: t}
	case []interface{}:
		arr := make([]*Node, len(t))
		for i, item := range t {
			arr[i] = FromAny(item)
		}
		return &Node{kind: Array, arr: arr}
	case map[string]interface{}:
		obj := make(map[string]*Node, len(t))
		for k, item := range t {
			obj[k] = FromAny(item)
		}
		return &Node{kind: Object, obj: obj}
	default:
		return &Node{kind: Null}
	}
}

// Kind reports the variant tag. A nil Node is Null.
func (n *Node) Kind() Kind {
	if n == nil {
		return Null
	}
	return n.kind
}

// Get returns the named field of an object node, or nil.
func (n *Node) Get(key string) *Node {
	if n == nil || n.kind != Object {
		return nil
	}
	return n.obj[key]
}

// Path descends through a sequence of object fields, returning nil as soon as
// any step is missing.
func (n *Node) Path(keys ...string) *Node {
	cur := n
	for _, k := range keys {
		cur = cur.Get(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Index returns the i-th element of an array node, or nil.
func (n *Node) Index(i int) *Node {
	if n == nil || n.kind != Array || i < 0 || i >= len(n.arr) {
		return nil
	}
	return n.arr[i]
}

// Len returns the element count of an array, the field count of an object,
// and zero otherwise.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.kind {
	case Array:
		return len(n.arr)
	case Object:
		return len(n.obj)
	default:
		return 0
	}
}

// Items returns the elements of an array node.
func (n *Node) Items() []*Node {
	if n == nil || n.kind != Array {
		return nil
	}
	return n.arr
}

// Fields returns the field map of an object node.
func (n *Node) Fields() map[string]*Node {
	if n == nil || n.kind != Object {
		return nil
	}
	return n.obj
}

// Has reports whether an object node carries the named field.
func (n *Node) Has(key string) bool {
	if n == nil || n.kind != Object {
		return false
	}
	_, ok := n.obj[key]
	return ok
}

// Str returns the string value, or "" for any other kind.
func (n *Node) Str() string {
	if n == nil || n.kind != String {
		return ""
	}
	return n.str
}

// Num returns the numeric value, or 0 for any other kind.
func (n *Node) Num() float64 {
	if n == nil || n.kind != Number {
		return 0
	}
	return n.num
}

// BoolVal returns the boolean value, or false for any other kind.
func (n *Node) BoolVal() bool {
	if n == nil || n.kind != Bool {
		return false
	}
	return n.b
}

// Text renders scalar nodes as a string: strings verbatim, numbers without a
// trailing ".000000", booleans as true/false. Container and null nodes yield
// "". Used when a source field may arrive as either string or number.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	switch n.kind {
	case String:
		return n.str
	case Number:
		if n.num == float64(int64(n.num)) {
			return strconv.FormatInt(int64(n.num), 10)
		}
		return strconv.FormatFloat(n.num, 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(n.b)
	default:
		return ""
	}
}

// Empty reports whether a node carries no useful value: nil, null, empty
// string, empty array, or empty object. Numbers and booleans are never empty.
func (n *Node) Empty() bool {
	if n == nil {
		return true
	}
	switch n.kind {
	case Null:
		return true
	case String:
		return n.str == ""
	case Array:
		return len(n.arr) == 0
	case Object:
		return len(n.obj) == 0
	default:
		return false
	}
}

// FirstNonEmpty probes an object node's fields in priority order and returns
// the first non-empty value, or nil when every candidate is absent or empty.
// This is the ordered-accessor chain that replaces dynamic attribute probing.
func FirstNonEmpty(n *Node, keys ...string) *Node {
	for _, k := range keys {
		if v := n.Get(k); !v.Empty() {
			return v
		}
	}
	return nil
}
