// Package attest implements the proving backend by attested execution: an
// attestor runs the circuit and signs its public input and output with a BLS
// key. The verification key of a program is the attestor public key followed
// by the circuit digest, so anyone holding the attestor public key compiles
// the same key for the same circuit.
package attest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/common/log"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
)

// header is the piDigest || poDigest prefix of every proof.
const header = 2 * field.Size

// Attestor is a backend holding an attestation key. A verify-only attestor
// holds the public key alone.
type Attestor struct {
	sync.Mutex
	pair   *key.Pair
	public key.PublicKey
	l      log.Logger
	proved uint64
}

// Option configures an Attestor.
type Option func(*Attestor)

// WithLogger sets the logger, the context logger is used otherwise.
func WithLogger(l log.Logger) Option {
	return func(a *Attestor) { a.l = l }
}

// New returns an attestor able to prove with the given pair, which must be a
// key of the attestation scheme.
func New(pair *key.Pair, opts ...Option) (*Attestor, error) {
	if pair == nil || pair.Scheme() == nil || pair.Scheme().Name != crypto.AttestationSchemeID {
		return nil, key.ErrInvalidKeyScheme
	}
	a := &Attestor{pair: pair, public: pair.Public}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// NewVerifier returns an attestor that compiles and verifies but cannot prove.
func NewVerifier(public key.PublicKey, opts ...Option) (*Attestor, error) {
	if public.IsZero() || public.Scheme.String() != crypto.AttestationSchemeID {
		return nil, key.ErrInvalidKeyScheme
	}
	a := &Attestor{public: public}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// PublicKey returns the attestor public key.
func (a *Attestor) PublicKey() key.PublicKey {
	return a.public
}

// Proved returns the number of proofs produced so far.
func (a *Attestor) Proved() uint64 {
	a.Lock()
	defer a.Unlock()
	return a.proved
}

func (a *Attestor) logger(ctx context.Context) log.Logger {
	if a.l != nil {
		return a.l
	}
	return log.FromContextOrDefault(ctx).Named("attest")
}

// Compile derives the verification key of a circuit. It is deterministic.
func (a *Attestor) Compile(ctx context.Context, c *backend.Circuit) (*backend.Program, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	data := append(a.public.Bytes(), c.Digest...)
	vk := backend.NewVerificationKey(data)
	a.logger(ctx).Debugw("compiled circuit", "circuit", c.Name, "vkHash", vk.Hash.String())
	return &backend.Program{Circuit: c, VerificationKey: vk}, nil
}

// Prove runs the circuit main and attests its public input and output.
func (a *Attestor) Prove(ctx context.Context, p *backend.Program, publicInput provable.Value, private interface{}) (*backend.Proof, error) {
	if a.pair == nil {
		return nil, backend.ErrCannotProve
	}
	c := p.Circuit
	if !publicInput.Type().Equal(c.PublicInput) {
		return nil, fmt.Errorf("public input of type %s, circuit %q expects %s", publicInput.Type(), c.Name, c.PublicInput)
	}

	inner := &countingVerifier{v: a}
	output, err := c.Main(ctx, inner, publicInput, private)
	if err != nil {
		return nil, err
	}
	if !output.Type().Equal(c.PublicOutput) {
		return nil, fmt.Errorf("circuit %q returned %s, declared %s", c.Name, output.Type(), c.PublicOutput)
	}
	if inner.count > c.MaxProofsVerified {
		return nil, fmt.Errorf("%w: %d > %d", backend.ErrTooManyProofs, inner.count, c.MaxProofsVerified)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	pi, po := inputDigest(publicInput), outputDigest(output)
	sig, err := a.pair.SignBytes(message(p.VerificationKey.Hash, pi, po))
	if err != nil {
		return nil, fmt.Errorf("attesting circuit %q: %w", c.Name, err)
	}
	data := make([]byte, 0, header+len(sig))
	data = append(data, pi.Bytes()...)
	data = append(data, po.Bytes()...)
	data = append(data, sig...)

	a.Lock()
	a.proved++
	a.Unlock()
	a.logger(ctx).Debugw("attested execution", "circuit", c.Name, "proofsVerified", inner.count)

	return &backend.Proof{
		PublicInput:       publicInput,
		PublicOutput:      output,
		MaxProofsVerified: c.MaxProofsVerified,
		Data:              data,
	}, nil
}

// Verify checks a proof against a verification key. The attestor key is
// read from the verification key, so proofs of other attestors verify as
// long as the caller trusts the key hash.
func (a *Attestor) Verify(ctx context.Context, vk backend.VerificationKey, proof *backend.Proof) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := vk.Check(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrInvalidProof, err)
	}
	if len(proof.Data) <= header {
		return fmt.Errorf("%w: truncated proof", backend.ErrInvalidProof)
	}
	pi, err := field.FromBytes(proof.Data[:field.Size])
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrInvalidProof, err)
	}
	po, err := field.FromBytes(proof.Data[field.Size:header])
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrInvalidProof, err)
	}

	attestor, err := attestorOf(vk)
	if err != nil {
		return err
	}
	if err := attestor.VerifyBytes(message(vk.Hash, pi, po), proof.Data[header:]); err != nil {
		return fmt.Errorf("%w: bad attestation", backend.ErrInvalidProof)
	}
	if !pi.Equal(inputDigest(proof.PublicInput)) {
		return backend.ErrPublicInputMismatch
	}
	if !po.Equal(outputDigest(proof.PublicOutput)) {
		return backend.ErrPublicOutputMismatch
	}
	return nil
}

func attestorOf(vk backend.VerificationKey) (key.PublicKey, error) {
	sch := crypto.AttestationScheme()
	size := sch.KeyGroup.PointLen()
	if len(vk.Data) <= size {
		return key.PublicKey{}, fmt.Errorf("%w: verification key too short", backend.ErrInvalidProof)
	}
	pk, err := key.PublicKeyFromBytes(sch, vk.Data[:size])
	if err != nil {
		return key.PublicKey{}, fmt.Errorf("%w: %v", backend.ErrInvalidProof, err)
	}
	return pk, nil
}

func inputDigest(v provable.Value) field.Element {
	return crypto.Hash(crypto.PrefixAttestationInput, v.TypedFields()...)
}

func outputDigest(v provable.Value) field.Element {
	return crypto.Hash(crypto.PrefixAttestationOutput, v.TypedFields()...)
}

func message(vkHash, pi, po field.Element) []byte {
	return crypto.Hash(crypto.PrefixAttestation, vkHash, pi, po).Bytes()
}

// countingVerifier verifies nested proofs and counts them against the
// circuit's declared maximum.
type countingVerifier struct {
	v     backend.Verifier
	count int
}

func (c *countingVerifier) Verify(ctx context.Context, vk backend.VerificationKey, proof *backend.Proof) error {
	c.count++
	if c.count > backend.MaxProofsVerified {
		return backend.ErrTooManyProofs
	}
	return c.v.Verify(ctx, vk, proof)
}

var _ backend.Backend = (*Attestor)(nil)

// IsMismatch reports whether err is a public input or output mismatch rather
// than a malformed or forged proof.
func IsMismatch(err error) bool {
	return errors.Is(err, backend.ErrPublicInputMismatch) || errors.Is(err, backend.ErrPublicOutputMismatch)
}
