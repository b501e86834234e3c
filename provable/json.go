package provable

import (
	"encoding/json"
	"math/big"
	"sort"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
)

// envelope is the tagged wire form shared by types and values.
type envelope struct {
	Type       string                     `json:"_type"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
	Value      json.RawMessage            `json:"value,omitempty"`
}

func (t Type) MarshalJSON() ([]byte, error) {
	env := envelope{Type: t.kind.String()}
	if t.kind == KindStruct {
		env.Properties = make(map[string]json.RawMessage, len(t.props))
		for _, p := range t.props {
			b, err := json.Marshal(p.Type)
			if err != nil {
				return nil, err
			}
			env.Properties[p.Name] = b
		}
	}
	return json.Marshal(env)
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return common.Validationf("type", "%v", err)
	}
	decoded, err := typeFromEnvelope(&env)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

func typeFromEnvelope(env *envelope) (Type, error) {
	k, ok := kindFromName(env.Type)
	if !ok {
		return Type{}, common.Validationf("_type", "unknown type %q", env.Type)
	}
	if k != KindStruct {
		return Type{kind: k}, nil
	}
	props := make(map[string]Type, len(env.Properties))
	for name, raw := range env.Properties {
		var pt Type
		if err := json.Unmarshal(raw, &pt); err != nil {
			return Type{}, err
		}
		props[name] = pt
	}
	return Struct(props), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	env := envelope{Type: v.typ.kind.String()}
	var payload interface{}
	switch v.typ.kind {
	case KindUndefined:
		return json.Marshal(env)
	case KindBool:
		payload = v.b
	case KindUInt32, KindUInt64, KindInt64:
		payload = v.num.String()
	case KindField:
		payload = v.fe.String()
	case KindPublicKey:
		payload = v.pk.String()
	case KindStruct:
		env.Properties = make(map[string]json.RawMessage, len(v.props))
		members := make(map[string]Value, len(v.props))
		for i, p := range v.typ.props {
			tb, err := json.Marshal(p.Type)
			if err != nil {
				return nil, err
			}
			env.Properties[p.Name] = tb
			members[p.Name] = v.props[i]
		}
		payload = members
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env.Value = raw
	return json.Marshal(env)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return common.Validationf("value", "%v", err)
	}
	decoded, err := valueFromEnvelope(&env)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func valueFromEnvelope(env *envelope) (Value, error) {
	t, err := typeFromEnvelope(env)
	if err != nil {
		return Value{}, err
	}
	if t.kind == KindUndefined {
		return Undefined(), nil
	}
	if len(env.Value) == 0 {
		return Value{}, common.Validationf("value", "missing value for %s", t.kind)
	}

	switch t.kind {
	case KindBool:
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return Value{}, common.Validationf("value", "expected a boolean")
		}
		return NewBool(b), nil
	case KindUInt32, KindUInt64, KindInt64:
		s, err := decodeString(env.Value)
		if err != nil {
			return Value{}, err
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return Value{}, common.Validationf("value", "%s is not a decimal integer", t.kind)
		}
		out, err := newInteger(t, n)
		if err != nil {
			return Value{}, common.Validationf("value", "%v", err)
		}
		return out, nil
	case KindField:
		s, err := decodeString(env.Value)
		if err != nil {
			return Value{}, err
		}
		f, err := field.FromString(s)
		if err != nil {
			return Value{}, common.Validationf("value", "%v", err)
		}
		return NewField(f), nil
	case KindPublicKey:
		s, err := decodeString(env.Value)
		if err != nil {
			return Value{}, err
		}
		pk, err := key.PublicKeyFromString(crypto.CredentialScheme(), s)
		if err != nil {
			return Value{}, common.Validationf("value", "%v", err)
		}
		return NewPublicKey(pk), nil
	case KindStruct:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(env.Value, &raw); err != nil {
			return Value{}, common.Validationf("value", "expected an object")
		}
		members := make(map[string]Value, len(raw))
		for name, r := range raw {
			var m Value
			if err := json.Unmarshal(r, &m); err != nil {
				return Value{}, err
			}
			members[name] = m
		}
		out := NewStruct(members)
		if !out.typ.Equal(t) {
			return Value{}, common.Validationf("value", "struct members %s do not match properties %s", out.typ, t)
		}
		return out, nil
	}
	return Value{}, common.Validationf("_type", "unsupported type %s", t.kind)
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", common.Validationf("value", "expected a string")
	}
	return s, nil
}

// SortedNames returns the keys of a map in canonical order.
func SortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseValue decodes a value and checks it has the expected type.
func ParseValue(b []byte, expected Type) (Value, error) {
	var v Value
	if err := json.Unmarshal(b, &v); err != nil {
		return Value{}, err
	}
	if !v.typ.Equal(expected) {
		return Value{}, common.Validationf("value", "expected %s, got %s", expected, v.typ)
	}
	return v, nil
}
