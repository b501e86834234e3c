// Package backend defines the proving collaborator the protocol is built on.
// A backend compiles circuits into programs with a verification key, proves
// executions of those programs and verifies the resulting proofs. Everything
// above this package treats proofs as opaque.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
)

var (
	// ErrPublicInputMismatch means the proof was produced for another public
	// input than the one supplied to Verify.
	ErrPublicInputMismatch = errors.New("proof bound to another public input")
	// ErrPublicOutputMismatch means the proof attests another public output.
	ErrPublicOutputMismatch = errors.New("proof bound to another public output")
	// ErrInvalidProof is returned for proofs that fail verification outright.
	ErrInvalidProof = errors.New("proof does not verify")
	// ErrTooManyProofs is returned when a circuit verifies more proofs than it
	// declared.
	ErrTooManyProofs = errors.New("circuit verified more proofs than declared")
	// ErrCannotProve is returned by verify-only backends.
	ErrCannotProve = errors.New("backend cannot prove")
)

// MaxProofsVerified bounds the number of proofs a circuit may verify.
const MaxProofsVerified = 2

// MainFunc is the body of a circuit. It receives the public input and the
// private witness, may verify other proofs through v, and returns the public
// output. Any error aborts proving.
type MainFunc func(ctx context.Context, v Verifier, publicInput provable.Value, private interface{}) (provable.Value, error)

// Circuit is a program definition before compilation.
type Circuit struct {
	// Name is informative only.
	Name string
	// Digest identifies the circuit; equal digests must denote equal logic.
	Digest            []byte
	PublicInput       provable.Type
	PublicOutput      provable.Type
	MaxProofsVerified int
	Main              MainFunc
}

// Validate checks the static shape of the circuit.
func (c *Circuit) Validate() error {
	if len(c.Digest) == 0 {
		return fmt.Errorf("circuit %q has no digest", c.Name)
	}
	if c.Main == nil {
		return fmt.Errorf("circuit %q has no main", c.Name)
	}
	if c.MaxProofsVerified < 0 || c.MaxProofsVerified > MaxProofsVerified {
		return fmt.Errorf("circuit %q: maxProofsVerified %d not in [0, %d]", c.Name, c.MaxProofsVerified, MaxProofsVerified)
	}
	return nil
}

// VerificationKey identifies a compiled program. Hash is the field commitment
// to Data that circuits and contexts refer to.
type VerificationKey struct {
	Data []byte
	Hash field.Element
}

// NewVerificationKey commits to the key data.
func NewVerificationKey(data []byte) VerificationKey {
	return VerificationKey{
		Data: data,
		Hash: crypto.Hash(crypto.PrefixVerificationKey, crypto.BytesToFields(data)...),
	}
}

// Check recomputes the hash commitment.
func (vk VerificationKey) Check() error {
	if !NewVerificationKey(vk.Data).Hash.Equal(vk.Hash) {
		return errors.New("verification key hash does not match its data")
	}
	return nil
}

type vkJSON struct {
	Data []byte        `json:"data"`
	Hash field.Element `json:"hash"`
}

func (vk VerificationKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(vkJSON{Data: vk.Data, Hash: vk.Hash})
}

func (vk *VerificationKey) UnmarshalJSON(b []byte) error {
	var j vkJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	decoded := VerificationKey{Data: j.Data, Hash: j.Hash}
	if err := decoded.Check(); err != nil {
		return err
	}
	*vk = decoded
	return nil
}

// Program is a compiled circuit.
type Program struct {
	Circuit         *Circuit
	VerificationKey VerificationKey
}

// Proof is a proof of one execution of a program. Data is opaque to callers.
type Proof struct {
	PublicInput       provable.Value
	PublicOutput      provable.Value
	MaxProofsVerified int
	Data              []byte
}

// Verifier checks proofs against verification keys.
type Verifier interface {
	Verify(ctx context.Context, vk VerificationKey, proof *Proof) error
}

// Backend compiles, proves and verifies.
type Backend interface {
	Verifier
	Compile(ctx context.Context, c *Circuit) (*Program, error)
	Prove(ctx context.Context, p *Program, publicInput provable.Value, private interface{}) (*Proof, error)
}
