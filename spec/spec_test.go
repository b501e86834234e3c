package spec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/node"
	"github.com/zkcred/zkcred/provable"
)

var passportType = provable.Struct(map[string]provable.Type{
	"age":    provable.UInt32Type,
	"nation": provable.FieldType,
})

func ageSpec(t *testing.T) *Spec {
	t.Helper()
	s, err := New(map[string]Input{
		"passport": Credential(credential.NativeSpec(passportType)),
		"minAge":   Claim(provable.UInt32Type),
		"nation":   Constant(provable.NewField(field.FromUint64(276))),
		"appId":    Claim(provable.FieldType),
	}, func(in Inputs) Logic {
		return Logic{
			Assert: []*node.Node{
				node.LessThanEq(in.Get("minAge"), in.Get("passport", "age")),
				node.Equals(in.Get("passport", "nation"), in.Get("nation")),
			},
			OutputClaim: node.Record(map[string]*node.Node{
				"owner":     in.Owner(),
				"nullifier": node.HashWithPrefix("nullifier", in.Get("appId"), in.Issuer("passport"), in.Owner()),
			}),
		}
	})
	require.NoError(t, err)
	return s
}

func TestSpecViews(t *testing.T) {
	s := ageSpec(t)
	require.Equal(t, []string{"appId", "minAge", "nation", "passport"}, s.Names())
	require.Equal(t, []string{"passport"}, s.CredentialNames())
	require.Equal(t, []string{"appId", "minAge"}, s.ClaimNames())
	require.Equal(t, 0, s.MaxProofsVerified())
	require.Equal(t, provable.KindBool, s.Assert().Type().Kind())
	require.Equal(t, node.KindAnd, s.Assert().Kind())

	exp := provable.Struct(map[string]provable.Type{"minAge": provable.UInt32Type, "appId": provable.FieldType})
	require.True(t, exp.Equal(s.ClaimsType()))

	out, ok := s.OutputType().Property("owner")
	require.True(t, ok)
	require.True(t, out.Equal(provable.PublicKeyType))
}

func TestSpecDefaults(t *testing.T) {
	s, err := New(map[string]Input{"id": Credential(credential.UnsignedSpec(passportType))}, nil)
	require.NoError(t, err)
	require.Equal(t, node.KindConstant, s.Assert().Kind())
	require.Equal(t, provable.KindUndefined, s.OutputType().Kind())
	require.True(t, s.ClaimsType().Equal(provable.Struct(nil)))
}

func TestSpecErrors(t *testing.T) {
	_, err := New(map[string]Input{"minAge": Claim(provable.UInt32Type)}, func(in Inputs) Logic {
		return Logic{
			Assert:      []*node.Node{in.Get("minAge")},
			OutputClaim: in.Get("missing"),
		}
	})
	require.ErrorIs(t, err, common.ErrType)
	require.ErrorIs(t, err, common.ErrUndefinedProperty)

	_, err = New(map[string]Input{"minAge": Claim(provable.UInt32Type)}, func(in Inputs) Logic {
		return Logic{OutputClaim: in.Issuer("minAge")}
	})
	require.ErrorIs(t, err, common.ErrUndefinedProperty)

	vk := backend.NewVerificationKey([]byte("program"))
	imported := Credential(credential.ImportedSpec(vk, provable.FieldType, passportType))
	_, err = New(map[string]Input{"a": imported, "b": imported, "c": imported}, nil)
	require.ErrorIs(t, err, common.ErrValidation)

	s, err := New(map[string]Input{"a": imported, "b": imported}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, s.MaxProofsVerified())
}

func TestSpecJSON(t *testing.T) {
	s := ageSpec(t)
	b, err := json.Marshal(s)
	require.NoError(t, err)

	decoded, err := FromJSON(b, nil)
	require.NoError(t, err)
	require.True(t, s.Equal(decoded))
	require.Equal(t, s.Digest(), decoded.Digest())
	require.True(t, s.RootType().Equal(decoded.RootType()))

	b2, err := json.Marshal(decoded)
	require.NoError(t, err)
	require.Equal(t, string(b), string(b2))

	// any change to the logic is another spec
	other, err := New(map[string]Input{
		"passport": Credential(credential.NativeSpec(passportType)),
		"minAge":   Claim(provable.UInt32Type),
		"nation":   Constant(provable.NewField(field.FromUint64(250))),
		"appId":    Claim(provable.FieldType),
	}, nil)
	require.NoError(t, err)
	require.False(t, s.Equal(other))

	_, err = FromJSON([]byte(`{"inputs":{}}`), nil)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = FromJSON([]byte(`{"inputs":{"x":{"type":"secret","data":{"_type":"Field"}}},"logic":{"assert":{"type":"constant"},"outputClaim":{"type":"constant"}}}`), nil)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = FromJSON([]byte(`{"inputs":{"x":{"type":"constant","data":{"_type":"Bool"},"value":{"_type":"Field","value":"1"}}},"logic":{"assert":{"type":"constant"},"outputClaim":{"type":"constant"}}}`), nil)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestSpecCompute(t *testing.T) {
	double := func(in []provable.Value) (provable.Value, error) {
		return provable.Arith(provable.OpMul, in[0], provable.NewUInt32(2))
	}
	s, err := New(map[string]Input{"x": Claim(provable.UInt32Type)}, func(in Inputs) Logic {
		return Logic{OutputClaim: node.Compute("double", double, provable.UInt32Type, in.Get("x"))}
	})
	require.NoError(t, err)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	_, err = FromJSON(b, nil)
	require.ErrorIs(t, err, common.ErrValidation)

	decoded, err := FromJSON(b, node.ComputeRegistry{"double": double})
	require.NoError(t, err)
	require.True(t, s.Equal(decoded))
}

func TestRootValue(t *testing.T) {
	s := ageSpec(t)
	owner := key.NewKeyPair(nil).Public
	data := provable.NewStruct(map[string]provable.Value{
		"age":    provable.NewUInt32(30),
		"nation": provable.NewField(field.FromUint64(276)),
	})
	claims := provable.NewStruct(map[string]provable.Value{
		"minAge": provable.NewUInt32(18),
		"appId":  provable.NewField(field.FromUint64(9)),
	})

	root, err := s.RootValue(map[string]provable.Value{"passport": data}, claims)
	require.NoError(t, err)
	require.True(t, root.Type().Equal(s.RootType()))

	v, err := node.Evaluate(s.Assert(), node.Env{Root: root, Owner: owner})
	require.NoError(t, err)
	require.True(t, v.Bool())

	_, err = s.RootValue(nil, claims)
	require.ErrorIs(t, err, common.ErrMissingCredential)

	_, err = s.RootValue(map[string]provable.Value{"passport": data}, provable.NewStruct(nil))
	require.ErrorIs(t, err, common.ErrType)
}
