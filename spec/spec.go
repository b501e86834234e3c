// Package spec assembles named inputs and disclosure logic into an immutable
// program definition. A Spec serializes losslessly: a wallet that receives one
// rebuilds the same logic, and so the same circuit, from the JSON alone.
package spec

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/node"
	"github.com/zkcred/zkcred/provable"
)

// Logic is what the builder callback returns. Several asserts are combined
// with a logical AND; no assert means true, no output claim means Undefined.
type Logic struct {
	Assert      []*node.Node
	OutputClaim *node.Node
}

// Spec is an immutable program definition.
type Spec struct {
	inputs      map[string]Input
	names       []string
	root        provable.Type
	assert      *node.Node
	outputClaim *node.Node
	json        []byte
	digest      []byte
}

// New builds a spec. The logic callback receives accessors for the inputs.
// Every problem found in the inputs and the logic is reported at once.
func New(inputs map[string]Input, logic func(Inputs) Logic) (*Spec, error) {
	own := make(map[string]Input, len(inputs))
	for name, in := range inputs {
		own[name] = in
	}
	root := rootType(own)

	var l Logic
	if logic != nil {
		l = logic(Inputs{root: node.Root(root), inputs: own})
	}
	var assert *node.Node
	switch len(l.Assert) {
	case 0:
		assert = node.Constant(provable.NewBool(true))
	case 1:
		assert = l.Assert[0]
	default:
		assert = node.And(l.Assert...)
	}
	outputClaim := l.OutputClaim
	if outputClaim == nil {
		outputClaim = node.Constant(provable.Undefined())
	}
	return build(own, root, assert, outputClaim)
}

func rootType(inputs map[string]Input) provable.Type {
	props := make(map[string]provable.Type, len(inputs))
	for name, in := range inputs {
		if in == nil {
			props[name] = provable.UndefinedType
			continue
		}
		props[name] = in.ValueType()
	}
	return provable.Struct(props)
}

func build(inputs map[string]Input, root provable.Type, assert, outputClaim *node.Node) (*Spec, error) {
	var errs *multierror.Error
	imported := 0
	for _, name := range provable.SortedNames(inputs) {
		switch in := inputs[name].(type) {
		case nil:
			errs = multierror.Append(errs, common.Validationf(name, "nil input"))
		case CredentialInput:
			switch in.Spec.Kind {
			case credential.Native, credential.Unsigned:
			case credential.Imported:
				imported++
				if err := in.Spec.VerificationKey.Check(); err != nil {
					errs = multierror.Append(errs, fmt.Errorf("input %q: %w", name, err))
				}
			default:
				errs = multierror.Append(errs, common.Validationf(name, "unknown credential kind %d", in.Spec.Kind))
			}
		case ConstantInput, ClaimInput:
		}
	}
	if imported > backend.MaxProofsVerified {
		errs = multierror.Append(errs, common.Validationf("inputs",
			"at most %d imported credentials, got %d", backend.MaxProofsVerified, imported))
	}
	if assert == nil {
		errs = multierror.Append(errs, &common.TypeError{Op: "assert", Reason: "nil node"})
	} else if err := assert.Err(); err != nil {
		errs = multierror.Append(errs, err)
	} else if assert.Type().Kind() != provable.KindBool {
		errs = multierror.Append(errs, &common.TypeError{Op: "assert", Reason: fmt.Sprintf("must be Bool, got %s", assert.Type())})
	}
	if err := outputClaim.Err(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	s := &Spec{
		inputs:      inputs,
		names:       provable.SortedNames(inputs),
		root:        root,
		assert:      assert,
		outputClaim: outputClaim,
	}
	b, err := s.encode()
	if err != nil {
		return nil, err
	}
	s.json = b
	s.digest = crypto.Digest(b)
	return s, nil
}

// Names lists every input in declaration order.
func (s *Spec) Names() []string { return append([]string(nil), s.names...) }

// Input returns a named input.
func (s *Spec) Input(name string) (Input, bool) {
	in, ok := s.inputs[name]
	return in, ok
}

func (s *Spec) namesOf(keep func(Input) bool) []string {
	var out []string
	for _, n := range s.names {
		if keep(s.inputs[n]) {
			out = append(out, n)
		}
	}
	return out
}

// CredentialNames lists the credential inputs in declaration order.
func (s *Spec) CredentialNames() []string {
	return s.namesOf(func(in Input) bool { _, ok := in.(CredentialInput); return ok })
}

// ClaimNames lists the claim inputs in declaration order.
func (s *Spec) ClaimNames() []string {
	return s.namesOf(func(in Input) bool { _, ok := in.(ClaimInput); return ok })
}

// Credential returns the credential spec of a credential input.
func (s *Spec) Credential(name string) (credential.Spec, bool) {
	c, ok := s.inputs[name].(CredentialInput)
	return c.Spec, ok
}

// MaxProofsVerified is the number of imported credential inputs.
func (s *Spec) MaxProofsVerified() int {
	n := 0
	for _, name := range s.CredentialNames() {
		if c, _ := s.Credential(name); c.Kind == credential.Imported {
			n++
		}
	}
	return n
}

// RootType is the struct of every input's type.
func (s *Spec) RootType() provable.Type { return s.root }

// ClaimsType is the struct of the claim inputs.
func (s *Spec) ClaimsType() provable.Type {
	props := make(map[string]provable.Type)
	for _, n := range s.ClaimNames() {
		props[n] = s.inputs[n].ValueType()
	}
	return provable.Struct(props)
}

// OutputType is the type of the output claim.
func (s *Spec) OutputType() provable.Type { return s.outputClaim.Type() }

func (s *Spec) Assert() *node.Node      { return s.assert }
func (s *Spec) OutputClaim() *node.Node { return s.outputClaim }

// Digest identifies the spec: the blake2b-256 digest of its canonical JSON.
func (s *Spec) Digest() []byte { return append([]byte(nil), s.digest...) }

// Equal compares specs by digest.
func (s *Spec) Equal(o *Spec) bool {
	return s != nil && o != nil && string(s.digest) == string(o.digest)
}

// CheckClaims verifies that claims have exactly the claim types.
func (s *Spec) CheckClaims(claims provable.Value) error {
	if !claims.Type().Equal(s.ClaimsType()) {
		return &common.TypeError{Op: "claims", Reason: fmt.Sprintf("expected %s, got %s", s.ClaimsType(), claims.Type())}
	}
	return nil
}

// RootValue assembles the root the logic is evaluated against from the data
// of each credential input and the claims.
func (s *Spec) RootValue(data map[string]provable.Value, claims provable.Value) (provable.Value, error) {
	if err := s.CheckClaims(claims); err != nil {
		return provable.Value{}, err
	}
	props := make(map[string]provable.Value, len(s.names))
	var missing []string
	for _, n := range s.names {
		switch in := s.inputs[n].(type) {
		case CredentialInput:
			d, ok := data[n]
			if !ok {
				missing = append(missing, n)
				continue
			}
			if !d.Type().Equal(in.Spec.Data) {
				return provable.Value{}, &common.SchemaMismatchError{Input: n, Reason: "data type differs from the input"}
			}
			props[n] = d
		case ConstantInput:
			props[n] = in.Value
		case ClaimInput:
			props[n], _ = claims.Property(n)
		}
	}
	if len(missing) > 0 {
		return provable.Value{}, &common.MissingCredentialError{Inputs: missing}
	}
	return provable.NewStruct(props), nil
}

// Scope is the decoding scope of nodes built on this spec.
func (s *Spec) Scope(computes node.ComputeRegistry) node.Scope {
	creds := make(map[string]credential.Spec)
	for _, n := range s.CredentialNames() {
		creds[n], _ = s.Credential(n)
	}
	return node.Scope{Root: s.root, Credentials: creds, Computes: computes}
}

func (s *Spec) String() string {
	return fmt.Sprintf("spec{inputs: %v, output: %s}", s.names, s.OutputType())
}

// MarshalJSON returns the canonical encoding.
func (s *Spec) MarshalJSON() ([]byte, error) {
	return append(json.RawMessage(nil), s.json...), nil
}
