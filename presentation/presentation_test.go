package presentation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/backend/attest"
	"github.com/zkcred/zkcred/binding"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/common/log"
	"github.com/zkcred/zkcred/common/testlogger"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/internal/metrics"
	"github.com/zkcred/zkcred/node"
	"github.com/zkcred/zkcred/provable"
	"github.com/zkcred/zkcred/spec"
)

var ageType = provable.Struct(map[string]provable.Type{"age": provable.UInt32Type})

func ageData(age uint32) provable.Value {
	return provable.NewStruct(map[string]provable.Value{"age": provable.NewUInt32(age)})
}

type fixture struct {
	ctx      context.Context
	attestor *attest.Attestor
	verifier *attest.Attestor
	issuer   *key.Pair
	owner    *key.Pair
	spec     *spec.Spec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := log.ToContext(context.Background(), testlogger.New(t))
	a, err := attest.New(key.NewKeyPair(crypto.AttestationScheme()))
	require.NoError(t, err)
	v, err := attest.NewVerifier(a.PublicKey())
	require.NoError(t, err)

	s, err := spec.New(map[string]spec.Input{
		"passport": spec.Credential(credential.NativeSpec(ageType)),
	}, func(in spec.Inputs) spec.Logic {
		return spec.Logic{
			Assert:      []*node.Node{node.Equals(in.Get("passport", "age"), node.Constant(provable.NewUInt32(18)))},
			OutputClaim: in.Owner(),
		}
	})
	require.NoError(t, err)

	return &fixture{
		ctx:      ctx,
		attestor: a,
		verifier: v,
		issuer:   key.NewKeyPair(nil),
		owner:    key.NewKeyPair(nil),
		spec:     s,
	}
}

func (f *fixture) credential(t *testing.T, age uint32) *credential.Stored {
	t.Helper()
	c, err := credential.Sign(f.issuer, credential.Credential{Owner: f.owner.Public, Data: ageData(age)})
	require.NoError(t, err)
	return c
}

func (f *fixture) present(t *testing.T, age uint32) (*Request, *Presentation) {
	t.Helper()
	req, err := HTTPS(f.spec, provable.NewStruct(nil), "login")
	require.NoError(t, err)
	p, err := Create(f.ctx, f.attestor, f.owner, req, HTTPSWallet("my-app.xyz"), []Supplied{{Credential: f.credential(t, age)}})
	require.NoError(t, err)
	return req, p
}

func TestScenarioAccept(t *testing.T) {
	f := newFixture(t)
	req, p := f.present(t, 18)

	out, err := Verify(f.ctx, f.verifier, req, p, HTTPSWallet("my-app.xyz"))
	require.NoError(t, err)
	require.True(t, out.PublicKey().Equal(f.owner.Public))
}

func TestScenarioRelay(t *testing.T) {
	f := newFixture(t)
	req, p := f.present(t, 18)

	_, err := Verify(f.ctx, f.verifier, req, p, HTTPSWallet("evil.com"))
	require.ErrorIs(t, err, common.ErrInvalidContext)
}

func TestScenarioReplay(t *testing.T) {
	f := newFixture(t)
	_, p := f.present(t, 18)

	fresh, err := HTTPS(f.spec, provable.NewStruct(nil), "login")
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, fresh, p, HTTPSWallet("my-app.xyz"))
	require.Error(t, err)
	require.ErrorIs(t, err, common.ErrInvalidContext)

	// forging the server nonce is caught by the proof
	forged := *p
	forged.ServerNonce = fresh.ServerNonce()
	_, err = Verify(f.ctx, f.verifier, fresh, &forged, HTTPSWallet("my-app.xyz"))
	require.ErrorIs(t, err, common.ErrInvalidContext)
}

func TestScenarioFalseAssertion(t *testing.T) {
	f := newFixture(t)
	req, err := HTTPS(f.spec, provable.NewStruct(nil), "login")
	require.NoError(t, err)

	_, err = Create(f.ctx, f.attestor, f.owner, req, HTTPSWallet("my-app.xyz"), []Supplied{{Credential: f.credential(t, 16)}})
	require.ErrorIs(t, err, common.ErrAssertion)
	require.Equal(t, uint64(0), f.attestor.Proved())
}

func TestPrecompileIdempotent(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	c1, err := Precompile(f.ctx, f.attestor, f.spec, WithMetrics(rec))
	require.NoError(t, err)
	c2, err := Precompile(f.ctx, f.attestor, f.spec, WithMetrics(rec))
	require.NoError(t, err)
	require.True(t, c1.VerificationKey().Hash.Equal(c2.VerificationKey().Hash))

	// the verifier compiles the same key from the attestor public key alone
	c3, err := Precompile(f.ctx, f.verifier, f.spec)
	require.NoError(t, err)
	require.True(t, c1.VerificationKey().Hash.Equal(c3.VerificationKey().Hash))

	decoded, err := spec.FromJSON(mustJSON(t, f.spec), nil)
	require.NoError(t, err)
	c4, err := Precompile(f.ctx, f.attestor, decoded)
	require.NoError(t, err)
	require.True(t, c1.VerificationKey().Hash.Equal(c4.VerificationKey().Hash))
}

func TestCache(t *testing.T) {
	f := newFixture(t)
	cache, err := NewCache(4)
	require.NoError(t, err)
	rec, err := metrics.NewRecorder(prometheus.NewRegistry())
	require.NoError(t, err)

	c1, err := Precompile(f.ctx, f.attestor, f.spec, WithCache(cache), WithMetrics(rec))
	require.NoError(t, err)
	c2, err := Precompile(f.ctx, f.attestor, f.spec, WithCache(cache), WithMetrics(rec))
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, 1, cache.Len())

	cache.Purge()
	require.Equal(t, 0, cache.Len())
}

func TestFromCompiled(t *testing.T) {
	f := newFixture(t)
	compiled, err := Precompile(f.ctx, f.verifier, f.spec)
	require.NoError(t, err)

	req, err := HTTPSFromCompiled(compiled, provable.NewStruct(nil), "login")
	require.NoError(t, err)
	p, err := Create(f.ctx, f.attestor, f.owner, req, HTTPSWallet("my-app.xyz"), []Supplied{{Credential: f.credential(t, 18)}})
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, req, p, HTTPSWallet("my-app.xyz"))
	require.NoError(t, err)

	_, err = Create(f.ctx, f.verifier, f.owner, req, HTTPSWallet("my-app.xyz"), []Supplied{{Credential: f.credential(t, 18)}})
	require.Error(t, err)
}

func TestPrepareSignFinalize(t *testing.T) {
	f := newFixture(t)
	req, err := HTTPS(f.spec, provable.NewStruct(nil), "login")
	require.NoError(t, err)
	wallet := HTTPSWallet("my-app.xyz")

	prepared, err := Prepare(f.ctx, f.attestor, req, wallet, []Supplied{{Credential: f.credential(t, 18)}})
	require.NoError(t, err)
	require.True(t, prepared.Owner.Equal(f.owner.Public))
	require.Len(t, prepared.Message, 3)
	require.True(t, prepared.Message[0].Equal(prepared.Context))

	// only the owner can sign
	_, err = Sign(key.NewKeyPair(nil), prepared)
	require.ErrorIs(t, err, common.ErrInvalidSignature)

	// a signature over another message is rejected while proving
	other, err := f.owner.Sign(field.One())
	require.NoError(t, err)
	_, err = Finalize(f.ctx, f.attestor, req, other, prepared)
	require.ErrorIs(t, err, common.ErrInvalidSignature)

	sig, err := Sign(f.owner, prepared)
	require.NoError(t, err)
	p, err := Finalize(f.ctx, f.attestor, req, sig, prepared)
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, req, p, wallet)
	require.NoError(t, err)
}

func TestClaimsAndTampering(t *testing.T) {
	f := newFixture(t)
	s, err := spec.New(map[string]spec.Input{
		"passport": spec.Credential(credential.NativeSpec(ageType)),
		"minAge":   spec.Claim(provable.UInt32Type),
	}, func(in spec.Inputs) spec.Logic {
		return spec.Logic{
			Assert:      []*node.Node{node.LessThanEq(in.Get("minAge"), in.Get("passport", "age"))},
			OutputClaim: node.HashWithPrefix("nullifier", in.Issuer("passport"), in.Owner()),
		}
	})
	require.NoError(t, err)
	claims := provable.NewStruct(map[string]provable.Value{"minAge": provable.NewUInt32(18)})
	req, err := HTTPS(s, claims, "vote")
	require.NoError(t, err)
	wallet := HTTPSWallet("ballot.example")

	p, err := Create(f.ctx, f.attestor, f.owner, req, wallet, []Supplied{{Credential: f.credential(t, 40)}})
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, req, p, wallet)
	require.NoError(t, err)

	lowered := *p
	lowered.Claims = provable.NewStruct(map[string]provable.Value{"minAge": provable.NewUInt32(10)})
	_, err = Verify(f.ctx, f.verifier, req, &lowered, wallet)
	var ice *common.InvalidClaimsError
	require.True(t, errors.As(err, &ice))
	require.Equal(t, "minAge", ice.Claim)

	swapped := *p
	swapped.OutputClaim = provable.NewField(field.FromUint64(1))
	_, err = Verify(f.ctx, f.verifier, req, &swapped, wallet)
	require.ErrorIs(t, err, common.ErrInvalidProof)

	garbled := *p
	garbled.Proof.Data = append([]byte(nil), p.Proof.Data...)
	garbled.Proof.Data[len(garbled.Proof.Data)-1] ^= 0xff
	_, err = Verify(f.ctx, f.verifier, req, &garbled, wallet)
	require.ErrorIs(t, err, common.ErrInvalidProof)

	wrongAction, err := HTTPS(s, claims, "withdraw", WithServerNonce(req.ServerNonce()))
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, wrongAction, p, wallet)
	require.ErrorIs(t, err, common.ErrInvalidContext)

	_, err = HTTPS(s, provable.NewStruct(nil), "vote")
	require.ErrorIs(t, err, common.ErrType)
}

func TestZkAppAndNoContext(t *testing.T) {
	f := newFixture(t)
	app := key.NewKeyPair(nil).Public
	action := field.FromUint64(7)

	req, err := ZkApp(f.spec, provable.NewStruct(nil), action)
	require.NoError(t, err)
	p, err := Create(f.ctx, f.attestor, f.owner, req, ZkAppWallet(app, field.Zero()), []Supplied{{Credential: f.credential(t, 18)}})
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, req, p, ZkAppWallet(app, field.Zero()))
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, req, p, ZkAppWallet(app, field.One()))
	require.ErrorIs(t, err, common.ErrInvalidContext)
	_, err = Verify(f.ctx, f.verifier, req, p, WalletContext{})
	require.ErrorIs(t, err, common.ErrInvalidContext)

	open, err := NoContext(f.spec, provable.NewStruct(nil))
	require.NoError(t, err)
	require.True(t, open.ServerNonce().IsZero())
	p, err = Create(f.ctx, f.attestor, f.owner, open, WalletContext{}, []Supplied{{Credential: f.credential(t, 18)}})
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, open, p, WalletContext{})
	require.NoError(t, err)
}

func TestEpochNonce(t *testing.T) {
	f := newFixture(t)
	genesis := time.Unix(1700000000, 0)
	epochs := binding.NewEpochs(genesis, time.Minute)
	fake := clockwork.NewFakeClockAt(genesis.Add(90 * time.Second))
	epochs.Clock = fake
	nonce := epochs.Nonce()

	req, err := HTTPS(f.spec, provable.NewStruct(nil), "login", WithServerNonce(nonce))
	require.NoError(t, err)
	require.True(t, req.ServerNonce().Equal(nonce))
	require.True(t, epochs.Accept(req.ServerNonce(), 1))
	fake.Advance(3 * time.Minute)
	require.False(t, epochs.Accept(req.ServerNonce(), 1))
}

func TestUnsignedPolicy(t *testing.T) {
	f := newFixture(t)
	s, err := spec.New(map[string]spec.Input{
		"self": spec.Credential(credential.UnsignedSpec(ageType)),
	}, func(in spec.Inputs) spec.Logic {
		return spec.Logic{OutputClaim: in.Get("self", "age")}
	})
	require.NoError(t, err)

	req, err := NoContext(s, provable.NewStruct(nil))
	require.NoError(t, err)
	stored := credential.NewUnsigned(ageData(3))
	p, err := Create(f.ctx, f.attestor, credential.UnsignedOwner(), req, WalletContext{}, []Supplied{{Credential: stored}})
	require.NoError(t, err)

	out, err := Verify(f.ctx, f.verifier, req, p, WalletContext{})
	require.NoError(t, err)
	require.True(t, out.Equal(provable.NewUInt32(3)))

	_, err = Verify(f.ctx, f.verifier, req, p, WalletContext{}, WithoutUnsigned())
	require.ErrorIs(t, err, common.ErrSchemaMismatch)
	_, err = Prepare(f.ctx, f.attestor, req, WalletContext{}, []Supplied{{Credential: stored}}, WithoutUnsigned())
	require.ErrorIs(t, err, common.ErrSchemaMismatch)
}

func TestImportedPresentation(t *testing.T) {
	f := newFixture(t)
	prog, err := credential.NewImportedProgram(f.ctx, f.attestor, credential.ImportedConfig{
		Name:        "passport-import",
		PublicInput: provable.FieldType,
		Data:        ageType,
		Main: func(_ context.Context, pub provable.Value, private interface{}) (credential.Credential, error) {
			return credential.Credential{Owner: private.(key.PublicKey), Data: ageData(18)}, nil
		},
	})
	require.NoError(t, err)
	stored, err := prog.Create(f.ctx, provable.NewField(field.FromUint64(1)), f.owner.Public)
	require.NoError(t, err)

	s, err := spec.New(map[string]spec.Input{
		"passport": spec.Credential(prog.Spec()),
	}, func(in spec.Inputs) spec.Logic {
		return spec.Logic{
			Assert:      []*node.Node{node.Equals(in.Get("passport", "age"), node.Constant(provable.NewUInt32(18)))},
			OutputClaim: in.VerificationKeyHash("passport"),
		}
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.MaxProofsVerified())

	req, err := HTTPS(s, provable.NewStruct(nil), "login")
	require.NoError(t, err)
	wallet := HTTPSWallet("my-app.xyz")
	p, err := Create(f.ctx, f.attestor, f.owner, req, wallet, []Supplied{{Credential: stored}})
	require.NoError(t, err)
	require.Equal(t, 1, p.Proof.MaxProofsVerified)

	out, err := Verify(f.ctx, f.verifier, req, p, wallet)
	require.NoError(t, err)
	require.True(t, out.Field().Equal(prog.Spec().VerificationKey.Hash))
}

func TestRequestJSON(t *testing.T) {
	f := newFixture(t)
	s, err := spec.New(map[string]spec.Input{
		"passport": spec.Credential(credential.NativeSpec(ageType)),
		"minAge":   spec.Claim(provable.UInt32Type),
	}, func(in spec.Inputs) spec.Logic {
		return spec.Logic{Assert: []*node.Node{node.LessThanEq(in.Get("minAge"), in.Get("passport", "age"))}}
	})
	require.NoError(t, err)
	claims := provable.NewStruct(map[string]provable.Value{"minAge": provable.NewUInt32(18)})

	https, err := HTTPS(s, claims, "login")
	require.NoError(t, err)
	zk, err := ZkApp(s, claims, field.FromUint64(99))
	require.NoError(t, err)
	open, err := NoContext(s, claims)
	require.NoError(t, err)

	for _, req := range []*Request{https, zk, open} {
		b, err := json.Marshal(req)
		require.NoError(t, err)
		decoded, err := RequestFromJSON(b, nil)
		require.NoError(t, err, string(b))

		require.Equal(t, req.Type, decoded.Type)
		require.True(t, req.Spec.Equal(decoded.Spec))
		require.True(t, req.Claims.Equal(decoded.Claims))
		require.True(t, req.ServerNonce().Equal(decoded.ServerNonce()))
		if req.InputContext != nil {
			require.Equal(t, req.InputContext.Action, decoded.InputContext.Action)
			require.True(t, req.InputContext.ZkAppAction.Equal(decoded.InputContext.ZkAppAction))
		}
	}

	// a presentation for the original verifies against the decoded request
	p, err := Create(f.ctx, f.attestor, f.owner, https, HTTPSWallet("my-app.xyz"), []Supplied{{Credential: f.credential(t, 20)}})
	require.NoError(t, err)
	decoded, err := RequestFromJSON(mustJSON(t, https), nil)
	require.NoError(t, err)
	_, err = Verify(f.ctx, f.verifier, decoded, p, HTTPSWallet("my-app.xyz"))
	require.NoError(t, err)

	_, err = RequestFromJSON([]byte(`{"type":"smtp","spec":{},"claims":{},"inputContext":null}`), nil)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = RequestFromJSON([]byte(`{"type":"https","spec":{},"claims":{}}`), nil)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestPresentationJSON(t *testing.T) {
	f := newFixture(t)
	req, p := f.present(t, 18)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	var decoded Presentation
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.True(t, decoded.ClientNonce.Equal(p.ClientNonce))
	require.True(t, decoded.OutputClaim.Equal(p.OutputClaim))

	out, err := Verify(f.ctx, f.verifier, req, &decoded, HTTPSWallet("my-app.xyz"))
	require.NoError(t, err)
	require.True(t, out.PublicKey().Equal(f.owner.Public))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	raw["version"] = "v9"
	b, err = json.Marshal(raw)
	require.NoError(t, err)
	require.ErrorIs(t, json.Unmarshal(b, &decoded), common.ErrUnsupportedVersion)

	raw["version"] = "v0"
	raw["clientNonce"] = map[string]interface{}{"_type": "Float", "value": "1"}
	b, err = json.Marshal(raw)
	require.NoError(t, err)
	require.ErrorIs(t, json.Unmarshal(b, &decoded), common.ErrValidation)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
