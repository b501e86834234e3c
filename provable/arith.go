package provable

import (
	"fmt"
	"math/big"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/crypto/field"
)

// Op names a binary numeric operation.
type Op string

const (
	OpAdd Op = "add"
	OpSub Op = "sub"
	OpMul Op = "mul"
	OpDiv Op = "div"
)

// Promote returns the widest of two numeric types in the order
// UInt32 < UInt64 < Int64 < Field. Int64 holds every UInt64, so promotion
// between integer types never loses a value.
func Promote(a, b Type) (Type, error) {
	ra, rb := rank(a.kind), rank(b.kind)
	if ra < 0 || rb < 0 {
		return Type{}, &common.TypeError{Op: "promote", Reason: fmt.Sprintf("%s and %s are not both numeric", a, b)}
	}
	if ra >= rb {
		return a, nil
	}
	return b, nil
}

// Convert changes the type of a numeric value. Conversion to Field always
// succeeds; conversion between integer types fails when out of range.
func Convert(v Value, t Type) (Value, error) {
	if v.typ.Equal(t) {
		return v, nil
	}
	if !v.typ.IsNumeric() || !t.IsNumeric() {
		return Value{}, &common.TypeError{Op: "convert", Reason: fmt.Sprintf("cannot convert %s to %s", v.typ, t)}
	}
	if t.kind == KindField {
		return NewField(v.Field()), nil
	}
	out, err := newInteger(t, v.BigInt())
	if err != nil {
		return Value{}, &common.ArithmeticError{Op: "convert", Reason: err.Error()}
	}
	return out, nil
}

func promoteBoth(op string, a, b Value) (Value, Value, error) {
	t, err := Promote(a.typ, b.typ)
	if err != nil {
		return Value{}, Value{}, &common.TypeError{Op: op, Reason: fmt.Sprintf("%s and %s are not both numeric", a.typ, b.typ)}
	}
	if a, err = Convert(a, t); err != nil {
		return Value{}, Value{}, err
	}
	if b, err = Convert(b, t); err != nil {
		return Value{}, Value{}, err
	}
	return a, b, nil
}

// Arith applies op after promoting both operands. Integer results are range
// checked against ±(2^64-1) for Int64; Field arithmetic is modular. Unsigned
// division floors, Int64 division truncates toward zero and Field division
// multiplies by the inverse.
func Arith(op Op, a, b Value) (Value, error) {
	a, b, err := promoteBoth(string(op), a, b)
	if err != nil {
		return Value{}, err
	}
	if a.typ.kind == KindField {
		return fieldArith(op, a.fe, b.fe)
	}

	r := new(big.Int)
	switch op {
	case OpAdd:
		r.Add(a.num, b.num)
	case OpSub:
		r.Sub(a.num, b.num)
	case OpMul:
		r.Mul(a.num, b.num)
	case OpDiv:
		if b.num.Sign() == 0 {
			return Value{}, &common.ArithmeticError{Op: string(op), Reason: "division by zero"}
		}
		r.Quo(a.num, b.num)
	default:
		return Value{}, &common.TypeError{Op: string(op), Reason: "unknown operation"}
	}
	out, err := newInteger(a.typ, r)
	if err != nil {
		return Value{}, &common.ArithmeticError{Op: string(op), Reason: "overflow"}
	}
	return out, nil
}

func fieldArith(op Op, a, b field.Element) (Value, error) {
	switch op {
	case OpAdd:
		return NewField(a.Add(b)), nil
	case OpSub:
		return NewField(a.Sub(b)), nil
	case OpMul:
		return NewField(a.Mul(b)), nil
	case OpDiv:
		r, err := a.Div(b)
		if err != nil {
			return Value{}, &common.ArithmeticError{Op: string(op), Reason: "division by zero"}
		}
		return NewField(r), nil
	}
	return Value{}, &common.TypeError{Op: string(op), Reason: "unknown operation"}
}

// Compare orders two numeric values after promotion. Field elements compare
// by canonical representative.
func Compare(a, b Value) (int, error) {
	a, b, err := promoteBoth("compare", a, b)
	if err != nil {
		return 0, err
	}
	if a.typ.kind == KindField {
		return a.fe.Cmp(b.fe), nil
	}
	return a.num.Cmp(b.num), nil
}
