package provable

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/crypto/field"
)

func TestStructTypeOrder(t *testing.T) {
	a := Struct(map[string]Type{"name": FieldType, "age": UInt32Type})
	b := Struct(map[string]Type{"age": UInt32Type, "name": FieldType})
	require.True(t, a.Equal(b))
	require.Equal(t, "age", a.Properties()[0].Name)
	require.Equal(t, "{age: UInt32, name: Field}", a.String())

	pt, ok := a.Property("name")
	require.True(t, ok)
	require.True(t, pt.Equal(FieldType))
	_, ok = a.Property("missing")
	require.False(t, ok)

	require.Equal(t, 2, a.Size())
	require.Equal(t, 3, Struct(map[string]Type{"owner": PublicKeyType, "x": BoolType}).Size())
	require.False(t, a.Equal(Struct(map[string]Type{"age": UInt64Type, "name": FieldType})))
}

func TestValueFields(t *testing.T) {
	owner := key.NewKeyPair(nil).Public
	v := NewStruct(map[string]Value{
		"owner": NewPublicKey(owner),
		"age":   NewUInt32(18),
		"debt":  NewInt64(-1),
		"ok":    NewBool(true),
	})
	fields := v.Fields()
	require.Len(t, fields, 5)
	require.Equal(t, "18", fields[0].String())
	require.True(t, fields[1].Equal(field.FromInt64(-1)))
	require.True(t, fields[2].Equal(field.One()))
	require.True(t, fields[3].Equal(owner.Fields()[0]))
	require.Empty(t, Undefined().Fields())

	age, ok := v.Property("age")
	require.True(t, ok)
	require.True(t, age.Equal(NewUInt32(18)))
	require.False(t, age.Equal(NewUInt64(18)))

	// same fields, different names or widths
	relabeled := NewStruct(map[string]Value{"balance": NewUInt32(7)})
	original := NewStruct(map[string]Value{"debt": NewUInt32(7)})
	widened := NewStruct(map[string]Value{"debt": NewUInt64(7)})
	require.Equal(t, original.Fields(), relabeled.Fields())
	require.NotEqual(t, original.TypedFields(), relabeled.TypedFields())
	require.NotEqual(t, original.TypedFields(), widened.TypedFields())
}

func TestPromotion(t *testing.T) {
	tests := []struct {
		a, b, exp Type
	}{
		{UInt32Type, UInt64Type, UInt64Type},
		{UInt64Type, Int64Type, Int64Type},
		{Int64Type, FieldType, FieldType},
		{UInt32Type, UInt32Type, UInt32Type},
		{FieldType, UInt32Type, FieldType},
	}
	for _, tt := range tests {
		got, err := Promote(tt.a, tt.b)
		require.NoError(t, err)
		require.True(t, tt.exp.Equal(got), "%s %s", tt.a, tt.b)
	}
	_, err := Promote(BoolType, UInt32Type)
	require.ErrorIs(t, err, common.ErrType)
}

func TestArith(t *testing.T) {
	sum, err := Arith(OpAdd, NewUInt32(10), NewUInt64(5))
	require.NoError(t, err)
	require.True(t, sum.Equal(NewUInt64(15)))

	_, err = Arith(OpAdd, NewUInt32(math.MaxUint32), NewUInt32(1))
	require.ErrorIs(t, err, common.ErrArithmetic)

	_, err = Arith(OpSub, NewUInt32(1), NewUInt32(2))
	require.ErrorIs(t, err, common.ErrArithmetic)

	diff, err := Arith(OpSub, NewUInt32(1), NewInt64(2))
	require.NoError(t, err)
	require.True(t, diff.Equal(NewInt64(-1)))

	q, err := Arith(OpDiv, NewInt64(-7), NewInt64(2))
	require.NoError(t, err)
	require.True(t, q.Equal(NewInt64(-3)))

	q, err = Arith(OpDiv, NewUInt64(7), NewUInt64(2))
	require.NoError(t, err)
	require.True(t, q.Equal(NewUInt64(3)))

	_, err = Arith(OpDiv, NewUInt64(7), NewUInt64(0))
	require.ErrorIs(t, err, common.ErrArithmetic)

	q, err = Arith(OpDiv, NewInt64(math.MinInt64), NewInt64(-1))
	require.NoError(t, err)
	require.True(t, q.Equal(NewSigned(1<<63, false)))

	f, err := Arith(OpDiv, NewField(field.FromUint64(6)), NewUInt32(3))
	require.NoError(t, err)
	require.True(t, f.Equal(NewField(field.FromUint64(2))))

	wrapped, err := Arith(OpSub, NewField(field.Zero()), NewUInt32(1))
	require.NoError(t, err)
	require.True(t, wrapped.Equal(NewField(field.FromInt64(-1))))

	_, err = Arith(OpMul, NewBool(true), NewUInt32(1))
	require.ErrorIs(t, err, common.ErrType)
}

func TestSignedBoundary(t *testing.T) {
	maxU := NewUInt64(math.MaxUint64)

	c, err := Compare(maxU, NewInt64(0))
	require.NoError(t, err)
	require.Equal(t, 1, c)

	c, err = Compare(maxU, NewSigned(math.MaxUint64, false))
	require.NoError(t, err)
	require.Equal(t, 0, c)

	widened, err := Convert(maxU, Int64Type)
	require.NoError(t, err)
	require.True(t, widened.Equal(NewSigned(math.MaxUint64, false)))

	sum, err := Arith(OpAdd, NewUInt64(1<<63), NewInt64(-1))
	require.NoError(t, err)
	require.True(t, sum.Equal(NewInt64(math.MaxInt64)))

	diff, err := Arith(OpSub, NewUInt32(0), maxU)
	require.NoError(t, err)
	require.True(t, diff.Equal(NewSigned(math.MaxUint64, true)))

	_, err = Arith(OpAdd, maxU, NewInt64(1))
	require.ErrorIs(t, err, common.ErrArithmetic)
	_, err = Arith(OpSub, NewSigned(math.MaxUint64, true), NewUInt32(1))
	require.ErrorIs(t, err, common.ErrArithmetic)

	q, err := Arith(OpDiv, NewSigned(math.MaxUint64, true), NewInt64(2))
	require.NoError(t, err)
	require.True(t, q.Equal(NewSigned(math.MaxUint64/2, true)))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"_type":"Int64","value":"-18446744073709551615"}`), &v))
	require.True(t, v.Equal(NewSigned(math.MaxUint64, true)))
	require.ErrorIs(t, json.Unmarshal([]byte(`{"_type":"Int64","value":"18446744073709551616"}`), &v), common.ErrValidation)
}

func TestCompare(t *testing.T) {
	c, err := Compare(NewUInt32(3), NewInt64(-4))
	require.NoError(t, err)
	require.Equal(t, 1, c)

	c, err = Compare(NewField(field.FromInt64(-1)), NewUInt64(math.MaxUint64))
	require.NoError(t, err)
	require.Equal(t, 1, c)

	_, err = Convert(NewInt64(-1), UInt64Type)
	require.ErrorIs(t, err, common.ErrArithmetic)
}

func TestValueJSON(t *testing.T) {
	owner := key.NewKeyPair(nil).Public
	v := NewStruct(map[string]Value{
		"owner":  NewPublicKey(owner),
		"age":    NewUInt32(18),
		"score":  NewField(field.FromUint64(1234)),
		"active": NewBool(false),
		"nested": NewStruct(map[string]Value{"debt": NewInt64(-42), "cap": NewUInt64(math.MaxUint64)}),
	})
	b, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.True(t, v.Equal(decoded))

	parsed, err := ParseValue(b, v.Type())
	require.NoError(t, err)
	require.True(t, parsed.Equal(v))
	_, err = ParseValue(b, FieldType)
	require.ErrorIs(t, err, common.ErrValidation)

	tb, err := json.Marshal(v.Type())
	require.NoError(t, err)
	var typ Type
	require.NoError(t, json.Unmarshal(tb, &typ))
	require.True(t, typ.Equal(v.Type()))

	var u Value
	require.NoError(t, json.Unmarshal([]byte(`{"_type":"Undefined"}`), &u))
	require.True(t, u.IsUndefined())
}

func TestValueJSONRejects(t *testing.T) {
	bad := []string{
		`{"_type":"Float","value":"1.5"}`,
		`{"_type":"UInt32","value":"4294967296"}`,
		`{"_type":"UInt64","value":"-1"}`,
		`{"_type":"UInt32","value":18}`,
		`{"_type":"Field","value":"7237005577332262213973186563042994240857116359379907606001950938285454250989"}`,
		`{"_type":"Bool","value":"true"}`,
		`{"_type":"PublicKey","value":"00"}`,
		`{"_type":"Field"}`,
		`{"_type":"Struct","properties":{"a":{"_type":"Bool"}},"value":{"a":{"_type":"Field","value":"1"}}}`,
	}
	for _, b := range bad {
		var v Value
		err := json.Unmarshal([]byte(b), &v)
		require.ErrorIs(t, err, common.ErrValidation, b)
	}

	var typ Type
	require.ErrorIs(t, json.Unmarshal([]byte(`{"_type":"String"}`), &typ), common.ErrValidation)
}
