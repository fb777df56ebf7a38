// Package value holds a schema-less JSON document as a tagged union.
//
// Records are relayed without knowing their shape, so the payload is parsed into
// a Value instead of a concrete struct. Objects keep the member order of the
// input and numbers keep their literal text, so re-serializing a parsed Value
// changes formatting only.
package value

import (
	"encoding/json"
	"math/big"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	text    string // number literal or string contents
	items   []Value
	members []Member
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number wraps a JSON number literal. The literal is written out verbatim, so
// it must be a valid JSON number for MarshalJSON to succeed.
func Number(n json.Number) Value { return Value{kind: KindNumber, text: string(n)} }

func String(s string) Value { return Value{kind: KindString, text: s} }

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Object builds an object from members in the given order. Duplicate keys are
// collapsed: the last value wins and keeps the position of the first key.
func Object(members ...Member) Value {
	out := make([]Member, 0, len(members))
	index := make(map[string]int, len(members))
	for _, m := range members {
		if i, ok := index[m.Key]; ok {
			out[i].Value = m.Value
			continue
		}
		index[m.Key] = len(out)
		out = append(out, m)
	}
	return Value{kind: KindObject, members: out}
}

func (v Value) Kind() Kind { return v.kind }

// NumberValue returns the number literal; empty unless Kind is KindNumber.
func (v Value) NumberValue() json.Number {
	if v.kind != KindNumber {
		return ""
	}
	return json.Number(v.text)
}

// Text returns the string contents; empty unless Kind is KindString.
func (v Value) Text() string {
	if v.kind != KindString {
		return ""
	}
	return v.text
}

// Members returns the object members in order. The slice is shared with v.
func (v Value) Members() []Member { return v.members }

// Len is the number of elements of an array or members of an object.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Get looks up an object member by key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether a and b are structurally equal: object member order is
// ignored and numbers compare by numeric value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindString:
		return a.text == b.text
	case KindNumber:
		return numbersEqual(a.text, b.text)
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Get(m.Key)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}

func numbersEqual(x, y string) bool {
	if x == y {
		return true
	}
	fx, _, errX := big.ParseFloat(x, 10, 256, big.ToNearestEven)
	fy, _, errY := big.ParseFloat(y, 10, 256, big.ToNearestEven)
	if errX != nil || errY != nil {
		return false
	}
	return fx.Cmp(fy) == 0
}
