// Package presentation implements the presentation protocol. A verifier
// builds a Request for a spec, a wallet picks credentials and prepares the
// message its owner key signs, proves the presentation and sends it back, and
// the verifier checks it against the same request.
package presentation

import (
	"context"
	"errors"
	"fmt"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/binding"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/internal/metrics"
	"github.com/zkcred/zkcred/provable"
)

// Proof is the opaque proof of a presentation.
type Proof struct {
	Data              []byte
	MaxProofsVerified int
}

// Presentation answers a request. It must be used once.
type Presentation struct {
	Version     string
	Claims      provable.Value
	OutputClaim provable.Value
	ServerNonce field.Element
	ClientNonce field.Element
	Proof       Proof
}

// Prepared is the wallet state between Prepare and Finalize. Message is what
// the owner key signs.
type Prepared struct {
	Compiled    *Compiled
	Credentials map[string]*credential.Stored
	Owner       key.PublicKey
	ClientNonce field.Element
	Context     field.Element
	Message     []field.Element
}

func checkUnsigned(c *config, r *Request) error {
	if !c.noUnsigned {
		return nil
	}
	for _, name := range r.Spec.CredentialNames() {
		if cs, _ := r.Spec.Credential(name); cs.Kind == credential.Unsigned {
			return &common.SchemaMismatchError{Input: name, Reason: "unsigned credentials are not accepted"}
		}
	}
	return nil
}

func compiledFor(ctx context.Context, b backend.Backend, r *Request, c *config) (*Compiled, error) {
	if r.Compiled != nil {
		return r.Compiled, nil
	}
	return precompile(ctx, b, r.Spec, c)
}

// presentationOwner is the common owner of the signed credentials, or the
// unsigned owner when there are none.
func presentationOwner(names []string, creds map[string]*credential.Stored) (key.PublicKey, error) {
	var owner key.PublicKey
	for _, name := range names {
		c := creds[name]
		if c.Kind() == credential.Unsigned {
			continue
		}
		if owner.IsZero() {
			owner = c.Credential.Owner
			continue
		}
		if !owner.Equal(c.Credential.Owner) {
			return key.PublicKey{}, &common.SchemaMismatchError{Input: name, Reason: "credentials of different owners"}
		}
	}
	if owner.IsZero() {
		owner = credential.UnsignedOwner().Public
	}
	return owner, nil
}

// Prepare picks and validates the credentials, draws the client nonce and
// computes the message the owner signs.
func Prepare(ctx context.Context, b backend.Backend, r *Request, w WalletContext, supplied []Supplied, opts ...Option) (*Prepared, error) {
	c := newConfig(ctx, opts)
	if err := checkUnsigned(c, r); err != nil {
		return nil, err
	}
	creds, err := PickCredentials(r.Spec, supplied)
	if err != nil {
		return nil, err
	}
	names := r.Spec.CredentialNames()
	for _, name := range names {
		cs, _ := r.Spec.Credential(name)
		if err := credential.Validate(ctx, b, cs, creds[name]); err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
	}
	owner, err := presentationOwner(names, creds)
	if err != nil {
		return nil, err
	}
	compiled, err := compiledFor(ctx, b, r, c)
	if err != nil {
		return nil, err
	}

	clientNonce := binding.RandomNonce(c.rand)
	in, err := contextInput(r, w, compiled.VerificationKey().Hash, clientNonce)
	if err != nil {
		return nil, err
	}
	ctxField := binding.Context(in)
	c.log.Debugw("prepared presentation", "type", r.Type, "credentials", names)
	return &Prepared{
		Compiled:    compiled,
		Credentials: creds,
		Owner:       owner,
		ClientNonce: clientNonce,
		Context:     ctxField,
		Message:     signable(r.Spec, ctxField, creds),
	}, nil
}

// Sign signs the prepared message with the owner key. It is the only step
// that needs the owner's private key.
func Sign(owner *key.Pair, p *Prepared) ([]byte, error) {
	if !owner.Public.Equal(p.Owner) {
		return nil, &common.InvalidSignatureError{Input: "owner"}
	}
	return owner.Sign(p.Message...)
}

// Finalize proves the presentation. A false assertion fails here with an
// AssertionError and no presentation is produced.
func Finalize(ctx context.Context, b backend.Backend, r *Request, signature []byte, p *Prepared, opts ...Option) (*Presentation, error) {
	c := newConfig(ctx, opts)
	start := c.clock.Now()
	proof, err := b.Prove(ctx, p.Compiled.Program, publicInput(p.Context, r.Claims), &witness{
		owner:       p.Owner,
		signature:   signature,
		credentials: p.Credentials,
	})
	c.metrics.Observe(metrics.OpProve, string(r.Type), c.clock.Since(start), err)
	if err != nil {
		return nil, err
	}
	c.log.Infow("created presentation", "type", r.Type, "vkHash", p.Compiled.VerificationKey().Hash.String())
	return &Presentation{
		Version:     common.Version,
		Claims:      r.Claims,
		OutputClaim: proof.PublicOutput,
		ServerNonce: r.ServerNonce(),
		ClientNonce: p.ClientNonce,
		Proof:       Proof{Data: proof.Data, MaxProofsVerified: proof.MaxProofsVerified},
	}, nil
}

// Create is Prepare, Sign and Finalize in one call, for callers holding the
// owner key next to the credentials.
func Create(ctx context.Context, b backend.Backend, owner *key.Pair, r *Request, w WalletContext, supplied []Supplied, opts ...Option) (*Presentation, error) {
	p, err := Prepare(ctx, b, r, w, supplied, opts...)
	if err != nil {
		return nil, err
	}
	sig, err := Sign(owner, p)
	if err != nil {
		return nil, err
	}
	return Finalize(ctx, b, r, sig, p, opts...)
}

// Verify checks a presentation against the request it answers and returns
// its output claim. Deciding whether the output is acceptable, for instance
// whether its issuer is trusted, is up to the caller.
func Verify(ctx context.Context, b backend.Backend, r *Request, p *Presentation, w WalletContext, opts ...Option) (provable.Value, error) {
	c := newConfig(ctx, opts)
	start := c.clock.Now()
	out, err := verify(ctx, b, r, p, w, c)
	c.metrics.Observe(metrics.OpVerify, string(r.Type), c.clock.Since(start), err)
	if err != nil {
		c.log.Warnw("rejected presentation", "type", r.Type, "err", err)
		return provable.Value{}, err
	}
	return out, nil
}

func verify(ctx context.Context, b backend.Backend, r *Request, p *Presentation, w WalletContext, c *config) (provable.Value, error) {
	if err := common.CheckVersion(p.Version); err != nil {
		return provable.Value{}, err
	}
	if err := checkUnsigned(c, r); err != nil {
		return provable.Value{}, err
	}
	if err := compareClaims(r.Claims, p.Claims); err != nil {
		return provable.Value{}, err
	}
	if !p.ServerNonce.Equal(r.ServerNonce()) {
		return provable.Value{}, &common.InvalidContextError{Reason: "server nonce differs from the request"}
	}
	compiled, err := compiledFor(ctx, b, r, c)
	if err != nil {
		return provable.Value{}, err
	}
	if p.Proof.MaxProofsVerified != compiled.Program.Circuit.MaxProofsVerified {
		return provable.Value{}, &common.InvalidProofError{Reason: "proof shape differs from the program"}
	}

	vk := compiled.VerificationKey()
	in, err := contextInput(r, w, vk.Hash, p.ClientNonce)
	if err != nil {
		return provable.Value{}, err
	}
	err = b.Verify(ctx, vk, &backend.Proof{
		PublicInput:       publicInput(binding.Context(in), r.Claims),
		PublicOutput:      p.OutputClaim,
		MaxProofsVerified: p.Proof.MaxProofsVerified,
		Data:              p.Proof.Data,
	})
	switch {
	case err == nil:
		return p.OutputClaim, nil
	case errors.Is(err, backend.ErrPublicInputMismatch):
		// claims were compared above, so the context differs
		return provable.Value{}, &common.InvalidContextError{Reason: "presentation bound to another context"}
	default:
		return provable.Value{}, &common.InvalidProofError{Reason: err.Error()}
	}
}

func compareClaims(expected, got provable.Value) error {
	if expected.Equal(got) {
		return nil
	}
	for name, v := range expected.Properties() {
		if g, ok := got.Property(name); !ok || !g.Equal(v) {
			return &common.InvalidClaimsError{Claim: name}
		}
	}
	return &common.InvalidClaimsError{}
}
