// Package provable defines the typed values every protocol input, claim and
// credential attribute is made of, together with their canonical encoding as
// field elements.
package provable

import (
	"sort"
	"strings"
)

// Kind tags a Type.
type Kind int

const (
	KindUndefined Kind = iota
	KindBool
	KindUInt32
	KindUInt64
	KindInt64
	KindField
	KindPublicKey
	KindStruct
)

var kindNames = map[Kind]string{
	KindUndefined: "Undefined",
	KindBool:      "Bool",
	KindUInt32:    "UInt32",
	KindUInt64:    "UInt64",
	KindInt64:     "Int64",
	KindField:     "Field",
	KindPublicKey: "PublicKey",
	KindStruct:    "Struct",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

func kindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Property is a named member of a struct type.
type Property struct {
	Name string
	Type Type
}

// Type describes the shape of a Value. Struct properties are kept sorted by
// name, which fixes their encoding order.
type Type struct {
	kind  Kind
	props []Property
}

var (
	UndefinedType = Type{kind: KindUndefined}
	BoolType      = Type{kind: KindBool}
	UInt32Type    = Type{kind: KindUInt32}
	UInt64Type    = Type{kind: KindUInt64}
	Int64Type     = Type{kind: KindInt64}
	FieldType     = Type{kind: KindField}
	PublicKeyType = Type{kind: KindPublicKey}
)

// Struct builds a struct type from its properties.
func Struct(props map[string]Type) Type {
	t := Type{kind: KindStruct, props: make([]Property, 0, len(props))}
	for name, pt := range props {
		t.props = append(t.props, Property{Name: name, Type: pt})
	}
	sort.Slice(t.props, func(i, j int) bool { return t.props[i].Name < t.props[j].Name })
	return t
}

func (t Type) Kind() Kind { return t.kind }

// Properties returns the struct properties in canonical order.
func (t Type) Properties() []Property {
	out := make([]Property, len(t.props))
	copy(out, t.props)
	return out
}

// Property looks up a struct property.
func (t Type) Property(name string) (Type, bool) {
	i := sort.Search(len(t.props), func(i int) bool { return t.props[i].Name >= name })
	if i < len(t.props) && t.props[i].Name == name {
		return t.props[i].Type, true
	}
	return Type{}, false
}

// IsNumeric is true for the kinds arithmetic applies to.
func (t Type) IsNumeric() bool {
	return rank(t.kind) >= 0
}

// Size is the number of field elements a value of this type encodes into.
func (t Type) Size() int {
	switch t.kind {
	case KindUndefined:
		return 0
	case KindPublicKey:
		return 2
	case KindStruct:
		n := 0
		for _, p := range t.props {
			n += p.Type.Size()
		}
		return n
	default:
		return 1
	}
}

// Equal is structural equality.
func (t Type) Equal(o Type) bool {
	if t.kind != o.kind || len(t.props) != len(o.props) {
		return false
	}
	for i := range t.props {
		if t.props[i].Name != o.props[i].Name || !t.props[i].Type.Equal(o.props[i].Type) {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	if t.kind != KindStruct {
		return t.kind.String()
	}
	parts := make([]string, len(t.props))
	for i, p := range t.props {
		parts[i] = p.Name + ": " + p.Type.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// rank is the position in the numeric promotion order, -1 if not numeric.
func rank(k Kind) int {
	switch k {
	case KindUInt32:
		return 0
	case KindUInt64:
		return 1
	case KindInt64:
		return 2
	case KindField:
		return 3
	default:
		return -1
	}
}
