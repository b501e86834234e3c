package attest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/common/log"
	"github.com/zkcred/zkcred/common/testlogger"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
)

func doubler(maxProofs int) *backend.Circuit {
	return &backend.Circuit{
		Name:              "double",
		Digest:            crypto.Digest([]byte("double"), []byte{byte(maxProofs)}),
		PublicInput:       provable.FieldType,
		PublicOutput:      provable.FieldType,
		MaxProofsVerified: maxProofs,
		Main: func(ctx context.Context, v backend.Verifier, pub provable.Value, private interface{}) (provable.Value, error) {
			if private != nil {
				if err := v.Verify(ctx, private.(nested).vk, private.(nested).proof); err != nil {
					return provable.Value{}, err
				}
			}
			return provable.NewField(pub.Field().Add(pub.Field())), nil
		},
	}
}

type nested struct {
	vk    backend.VerificationKey
	proof *backend.Proof
}

func newAttestor(t *testing.T) *Attestor {
	t.Helper()
	a, err := New(key.NewKeyPair(crypto.AttestationScheme()), WithLogger(testlogger.New(t)))
	require.NoError(t, err)
	return a
}

func TestProveVerify(t *testing.T) {
	ctx := log.ToContext(context.Background(), testlogger.New(t))
	a := newAttestor(t)

	prog, err := a.Compile(ctx, doubler(0))
	require.NoError(t, err)
	proof, err := a.Prove(ctx, prog, provable.NewField(field.FromUint64(21)), nil)
	require.NoError(t, err)
	require.True(t, proof.PublicOutput.Equal(provable.NewField(field.FromUint64(42))))
	require.NoError(t, a.Verify(ctx, prog.VerificationKey, proof))
	require.Equal(t, uint64(1), a.Proved())

	// a verify-only instance compiles the same key and accepts the proof
	v, err := NewVerifier(a.PublicKey())
	require.NoError(t, err)
	prog2, err := v.Compile(ctx, doubler(0))
	require.NoError(t, err)
	require.True(t, prog.VerificationKey.Hash.Equal(prog2.VerificationKey.Hash))
	require.NoError(t, v.Verify(ctx, prog2.VerificationKey, proof))
	_, err = v.Prove(ctx, prog2, provable.NewField(field.One()), nil)
	require.ErrorIs(t, err, backend.ErrCannotProve)

	other := *proof
	other.PublicInput = provable.NewField(field.FromUint64(22))
	err = v.Verify(ctx, prog.VerificationKey, &other)
	require.ErrorIs(t, err, backend.ErrPublicInputMismatch)
	require.True(t, IsMismatch(err))

	other = *proof
	other.PublicOutput = provable.NewField(field.FromUint64(43))
	require.ErrorIs(t, v.Verify(ctx, prog.VerificationKey, &other), backend.ErrPublicOutputMismatch)

	other = *proof
	other.Data = append([]byte{}, proof.Data...)
	other.Data[len(other.Data)-1] ^= 0x01
	require.ErrorIs(t, v.Verify(ctx, prog.VerificationKey, &other), backend.ErrInvalidProof)

	// another attestor's program key does not accept this proof
	otherProg, err := newAttestor(t).Compile(ctx, doubler(0))
	require.NoError(t, err)
	require.ErrorIs(t, v.Verify(ctx, otherProg.VerificationKey, proof), backend.ErrInvalidProof)
}

func TestNestedProofs(t *testing.T) {
	ctx := context.Background()
	a := newAttestor(t)

	inner, err := a.Compile(ctx, doubler(0))
	require.NoError(t, err)
	innerProof, err := a.Prove(ctx, inner, provable.NewField(field.One()), nil)
	require.NoError(t, err)

	outer, err := a.Compile(ctx, doubler(1))
	require.NoError(t, err)
	require.False(t, inner.VerificationKey.Hash.Equal(outer.VerificationKey.Hash))
	proof, err := a.Prove(ctx, outer, provable.NewField(field.One()), nested{inner.VerificationKey, innerProof})
	require.NoError(t, err)
	require.Equal(t, 1, proof.MaxProofsVerified)

	_, err = a.Prove(ctx, inner, provable.NewField(field.One()), nested{inner.VerificationKey, innerProof})
	require.ErrorIs(t, err, backend.ErrTooManyProofs)

	bad := *innerProof
	bad.PublicOutput = provable.NewField(field.Zero())
	_, err = a.Prove(ctx, outer, provable.NewField(field.One()), nested{inner.VerificationKey, &bad})
	require.True(t, errors.Is(err, backend.ErrPublicOutputMismatch))
}

func TestCompileValidation(t *testing.T) {
	ctx := context.Background()
	a := newAttestor(t)

	c := doubler(3)
	_, err := a.Compile(ctx, c)
	require.Error(t, err)

	c = doubler(0)
	c.Digest = nil
	_, err = a.Compile(ctx, c)
	require.Error(t, err)

	_, err = New(key.NewKeyPair(nil))
	require.ErrorIs(t, err, key.ErrInvalidKeyScheme)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = a.Compile(cancelled, doubler(0))
	require.ErrorIs(t, err, context.Canceled)
}
