package provable

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
)

// Value is an immutable typed value. The zero value is Undefined.
type Value struct {
	typ   Type
	b     bool
	num   *big.Int
	fe    field.Element
	pk    key.PublicKey
	props []Value
}

var (
	maxUint32 = new(big.Int).SetUint64(math.MaxUint32)
	maxUint64 = new(big.Int).SetUint64(math.MaxUint64)
	// Int64 is sign-magnitude over a 64-bit magnitude, so it holds every
	// UInt64 and its negation.
	minSigned = new(big.Int).Neg(maxUint64)
)

// Undefined is the unit value, encoded as no field at all.
func Undefined() Value { return Value{typ: UndefinedType} }

func NewBool(b bool) Value { return Value{typ: BoolType, b: b} }

func NewUInt32(v uint32) Value {
	return Value{typ: UInt32Type, num: new(big.Int).SetUint64(uint64(v))}
}

func NewUInt64(v uint64) Value {
	return Value{typ: UInt64Type, num: new(big.Int).SetUint64(v)}
}

// NewInt64 builds a signed value. Signed values range over ±(2^64-1); use
// NewSigned beyond int64.
func NewInt64(v int64) Value {
	return Value{typ: Int64Type, num: big.NewInt(v)}
}

// NewSigned builds a signed value from a magnitude and a sign.
func NewSigned(magnitude uint64, negative bool) Value {
	n := new(big.Int).SetUint64(magnitude)
	if negative {
		n.Neg(n)
	}
	return Value{typ: Int64Type, num: n}
}

func NewField(f field.Element) Value { return Value{typ: FieldType, fe: f} }

func NewPublicKey(pk key.PublicKey) Value { return Value{typ: PublicKeyType, pk: pk} }

// NewStruct builds a struct value; its type is inferred from the members.
func NewStruct(props map[string]Value) Value {
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)
	types := make(map[string]Type, len(props))
	members := make([]Value, len(names))
	for i, n := range names {
		members[i] = props[n]
		types[n] = props[n].typ
	}
	return Value{typ: Struct(types), props: members}
}

// newInteger builds an integer value of kind k, failing when out of range.
func newInteger(t Type, v *big.Int) (Value, error) {
	lo, hi := bounds(t.kind)
	if v.Cmp(lo) < 0 || v.Cmp(hi) > 0 {
		return Value{}, fmt.Errorf("%s out of range for %s", v, t)
	}
	return Value{typ: t, num: new(big.Int).Set(v)}, nil
}

func bounds(k Kind) (*big.Int, *big.Int) {
	switch k {
	case KindUInt32:
		return big.NewInt(0), maxUint32
	case KindUInt64:
		return big.NewInt(0), maxUint64
	default:
		return minSigned, maxUint64
	}
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsUndefined() bool { return v.typ.kind == KindUndefined }

// Bool returns the boolean, false for any other kind.
func (v Value) Bool() bool { return v.typ.kind == KindBool && v.b }

// Field returns the value as a field element. Integers map into the field,
// negative values wrapping around.
func (v Value) Field() field.Element {
	switch v.typ.kind {
	case KindField:
		return v.fe
	case KindBool:
		if v.b {
			return field.One()
		}
		return field.Zero()
	case KindUInt32, KindUInt64, KindInt64:
		return field.New(v.num)
	default:
		return field.Zero()
	}
}

// BigInt returns the integer value, or the canonical field representative.
func (v Value) BigInt() *big.Int {
	if v.num != nil {
		return new(big.Int).Set(v.num)
	}
	return v.Field().BigInt()
}

// PublicKey returns the key of a PublicKey value.
func (v Value) PublicKey() key.PublicKey { return v.pk }

// Property returns a struct member.
func (v Value) Property(name string) (Value, bool) {
	for i, p := range v.typ.props {
		if p.Name == name {
			return v.props[i], true
		}
	}
	return Value{}, false
}

// Properties returns struct members by name.
func (v Value) Properties() map[string]Value {
	out := make(map[string]Value, len(v.props))
	for i, p := range v.typ.props {
		out[p.Name] = v.props[i]
	}
	return out
}

// Fields is the canonical field encoding of the value. Struct members are
// encoded in property name order.
func (v Value) Fields() []field.Element {
	switch v.typ.kind {
	case KindUndefined:
		return nil
	case KindPublicKey:
		if v.pk.IsZero() {
			return []field.Element{field.Zero(), field.Zero()}
		}
		return v.pk.Fields()
	case KindStruct:
		var out []field.Element
		for _, p := range v.props {
			out = append(out, p.Fields()...)
		}
		return out
	default:
		return []field.Element{v.Field()}
	}
}

// TypedFields prefixes Fields with the encoded type, so that values of
// different shapes, names or widths never share an encoding.
func (v Value) TypedFields() []field.Element {
	return append(crypto.StringToFields(v.typ.String()), v.Fields()...)
}

// Equal is structural equality, types included.
func (v Value) Equal(o Value) bool {
	if !v.typ.Equal(o.typ) {
		return false
	}
	switch v.typ.kind {
	case KindUndefined:
		return true
	case KindBool:
		return v.b == o.b
	case KindUInt32, KindUInt64, KindInt64:
		return v.num.Cmp(o.num) == 0
	case KindField:
		return v.fe.Equal(o.fe)
	case KindPublicKey:
		return v.pk.Equal(o.pk)
	case KindStruct:
		for i := range v.props {
			if !v.props[i].Equal(o.props[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.typ.kind {
	case KindUndefined:
		return "undefined"
	case KindBool:
		return fmt.Sprint(v.b)
	case KindUInt32, KindUInt64, KindInt64:
		return v.num.String()
	case KindField:
		return v.fe.String()
	case KindPublicKey:
		return v.pk.String()
	case KindStruct:
		parts := make([]string, len(v.props))
		for i, p := range v.typ.props {
			parts[i] = p.Name + ": " + v.props[i].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}
