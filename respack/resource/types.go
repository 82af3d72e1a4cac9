// Package resource holds the vocabulary shared by every stage of a build:
// resource types, qualifier dimensions, limit keys and resource items.
package resource

import (
	"fmt"
	"sort"
)

// Type is the numeric resource-type code written into resource tables.
type Type int32

const (
	Element  Type = 0
	RawFile  Type = 6
	Integer  Type = 8
	String   Type = 9
	StrArray Type = 10
	IntArray Type = 11
	Boolean  Type = 12
	Color    Type = 14
	ID       Type = 15
	Theme    Type = 16
	Plural   Type = 17
	Float    Type = 18
	Media    Type = 19
	Profile  Type = 20
	Pattern  Type = 22
	Symbol   Type = 23
	ResFile  Type = 24

	InvalidType Type = -1
)

var typeNames = map[Type]string{
	Element:  "element",
	RawFile:  "rawfile",
	Integer:  "integer",
	String:   "string",
	StrArray: "strarray",
	IntArray: "intarray",
	Boolean:  "boolean",
	Color:    "color",
	ID:       "id",
	Theme:    "theme",
	Plural:   "plural",
	Float:    "float",
	Media:    "media",
	Profile:  "profile",
	Pattern:  "pattern",
	Symbol:   "symbol",
	ResFile:  "resfile",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

// ParseType resolves a type token such as "string" or "media".
func ParseType(name string) (Type, bool) {
	t, ok := typesByName[name]
	if !ok {
		return InvalidType, false
	}
	return t, true
}

// TypeFromCode resolves a numeric code read back from a resource table.
func TypeFromCode(code int32) (Type, bool) {
	t := Type(code)
	_, ok := typeNames[t]
	return t, ok
}

// Types lists every known type in code order.
func Types() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := range typeNames {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", int32(t))
}

// Key identifies a resource independently of its qualifiers.
type Key struct {
	Type Type
	Name string
}

func (k Key) String() string {
	return k.Type.String() + ":" + k.Name
}

// Item is one qualifier-tagged unit of packaged content. The packaging core only
// looks at the type, name, qualifiers and payload.
type Item struct {
	Type     Type
	Name     string
	LimitKey LimitKey
	Data     []byte
}

// Key returns the (type, name) pair the item's id is allocated for.
func (it Item) Key() Key {
	return Key{Type: it.Type, Name: it.Name}
}
