// Package field implements the scalar field every protocol value is encoded
// into. The modulus is the order of the edwards25519 prime-order subgroup, so
// field elements and credential signing scalars live in the same field.
package field

import (
	"crypto/cipher"
	"fmt"
	"math/big"

	"github.com/drand/kyber/group/mod"
)

// Size is the byte length of the canonical encoding of an element.
const Size = 32

// Modulus is l = 2^252 + 27742317777372353535851937790883648493.
var Modulus = func() *big.Int {
	m, ok := new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)
	if !ok {
		panic("field: invalid modulus")
	}
	return m
}()

// Element is an immutable field element. The zero value is 0.
type Element struct {
	v *mod.Int
}

func (e Element) scalar() *mod.Int {
	if e.v == nil {
		return mod.NewInt64(0, Modulus)
	}
	return e.v
}

// New reduces v modulo the field order.
func New(v *big.Int) Element {
	return Element{mod.NewInt(v, Modulus)}
}

// FromInt64 maps v into the field; negative values wrap around.
func FromInt64(v int64) Element {
	return New(big.NewInt(v))
}

// FromUint64 maps v into the field.
func FromUint64(v uint64) Element {
	return New(new(big.Int).SetUint64(v))
}

// Zero returns the additive identity.
func Zero() Element { return FromUint64(0) }

// One returns the multiplicative identity.
func One() Element { return FromUint64(1) }

// Random draws a uniform element from the given stream.
func Random(rand cipher.Stream) Element {
	s := mod.NewInt64(0, Modulus)
	s.Pick(rand)
	return Element{s}
}

// FromDigest reduces a big-endian digest into the field.
func FromDigest(digest []byte) Element {
	return New(new(big.Int).SetBytes(digest))
}

// FromBytes decodes the canonical 32 byte big-endian encoding. Values outside
// the field are rejected.
func FromBytes(b []byte) (Element, error) {
	if len(b) != Size {
		return Element{}, fmt.Errorf("field: expected %d bytes, got %d", Size, len(b))
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(Modulus) >= 0 {
		return Element{}, fmt.Errorf("field: value not canonical")
	}
	return New(v), nil
}

// FromString parses a canonical decimal representation.
func FromString(s string) (Element, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Element{}, fmt.Errorf("field: %q is not a decimal number", s)
	}
	if v.Sign() < 0 || v.Cmp(Modulus) >= 0 {
		return Element{}, fmt.Errorf("field: %q out of range", s)
	}
	return New(v), nil
}

// BigInt returns the canonical representative in [0, l).
func (e Element) BigInt() *big.Int {
	return new(big.Int).Set(&e.scalar().V)
}

// Bytes returns the canonical 32 byte big-endian encoding.
func (e Element) Bytes() []byte {
	return e.scalar().V.FillBytes(make([]byte, Size))
}

// String returns the decimal representation.
func (e Element) String() string {
	return e.scalar().V.String()
}

func (e Element) Add(o Element) Element {
	r := mod.NewInt64(0, Modulus)
	r.Add(e.scalar(), o.scalar())
	return Element{r}
}

func (e Element) Sub(o Element) Element {
	r := mod.NewInt64(0, Modulus)
	r.Sub(e.scalar(), o.scalar())
	return Element{r}
}

func (e Element) Mul(o Element) Element {
	r := mod.NewInt64(0, Modulus)
	r.Mul(e.scalar(), o.scalar())
	return Element{r}
}

func (e Element) Neg() Element {
	r := mod.NewInt64(0, Modulus)
	r.Neg(e.scalar())
	return Element{r}
}

// Div multiplies e by the inverse of o.
func (e Element) Div(o Element) (Element, error) {
	if o.IsZero() {
		return Element{}, fmt.Errorf("field: division by zero")
	}
	r := mod.NewInt64(0, Modulus)
	r.Div(e.scalar(), o.scalar())
	return Element{r}, nil
}

// Cmp compares canonical representatives.
func (e Element) Cmp(o Element) int {
	return e.scalar().V.Cmp(&o.scalar().V)
}

func (e Element) Equal(o Element) bool {
	return e.Cmp(o) == 0
}

func (e Element) IsZero() bool {
	return e.scalar().V.Sign() == 0
}

// MarshalText encodes the element as a decimal string.
func (e Element) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes a decimal string.
func (e *Element) UnmarshalText(b []byte) error {
	v, err := FromString(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Concat concatenates the canonical encodings of a field sequence. This is the
// message format for every signature over fields.
func Concat(fields ...Element) []byte {
	out := make([]byte, 0, len(fields)*Size)
	for _, f := range fields {
		out = append(out, f.Bytes()...)
	}
	return out
}
