package spec

import (
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/node"
	"github.com/zkcred/zkcred/provable"
)

// Input is a named input of a spec: a CredentialInput, a ConstantInput or a
// ClaimInput.
type Input interface {
	// ValueType is the type of the input as seen from the root node.
	ValueType() provable.Type
	isInput()
}

// CredentialInput is a private credential. Logic sees its data.
type CredentialInput struct {
	Spec credential.Spec
}

// ConstantInput is fixed when the spec is built.
type ConstantInput struct {
	Value provable.Value
}

// ClaimInput is a public value supplied with every request.
type ClaimInput struct {
	Type provable.Type
}

func (c CredentialInput) ValueType() provable.Type { return c.Spec.Data }
func (c ConstantInput) ValueType() provable.Type   { return c.Value.Type() }
func (c ClaimInput) ValueType() provable.Type      { return c.Type }

func (CredentialInput) isInput() {}
func (ConstantInput) isInput()   {}
func (ClaimInput) isInput()      {}

// Credential is a shorthand for a CredentialInput.
func Credential(s credential.Spec) Input { return CredentialInput{Spec: s} }

// Constant is a shorthand for a ConstantInput.
func Constant(v provable.Value) Input { return ConstantInput{Value: v} }

// Claim is a shorthand for a ClaimInput.
func Claim(t provable.Type) Input { return ClaimInput{Type: t} }

// Inputs hands out nodes for the inputs of a spec under construction.
type Inputs struct {
	root   *node.Node
	inputs map[string]Input
}

// Get is the value of an input: the credential data, the constant or the
// claim.
func (in Inputs) Get(name string, path ...string) *node.Node {
	return node.Get(in.root, append([]string{name}, path...)...)
}

// Owner is the key authorizing the presentation. Every credential input is
// owned by it.
func (in Inputs) Owner() *node.Node { return node.Owner() }

// Root is the struct of every input.
func (in Inputs) Root() *node.Node { return in.root }

func (in Inputs) credential(kind node.Kind, name string) (credential.Spec, *node.Node) {
	c, ok := in.inputs[name].(CredentialInput)
	if !ok {
		return credential.Spec{}, node.Invalid(kind, &common.UndefinedPropertyError{Key: name, Type: "credential inputs"})
	}
	return c.Spec, nil
}

// Issuer is the issuer identity of a credential input.
func (in Inputs) Issuer(name string) *node.Node {
	s, invalid := in.credential(node.KindIssuer, name)
	if invalid != nil {
		return invalid
	}
	return node.Issuer(name, s)
}

// IssuerPublicKey is the issuer key of a native credential input.
func (in Inputs) IssuerPublicKey(name string) *node.Node {
	s, invalid := in.credential(node.KindIssuerPublicKey, name)
	if invalid != nil {
		return invalid
	}
	return node.IssuerPublicKey(name, s)
}

// VerificationKeyHash identifies the program of an imported credential input.
func (in Inputs) VerificationKeyHash(name string) *node.Node {
	s, invalid := in.credential(node.KindVerificationKeyHash, name)
	if invalid != nil {
		return invalid
	}
	return node.VerificationKeyHash(name, s)
}

// PublicInput is the public input of an imported credential input.
func (in Inputs) PublicInput(name string) *node.Node {
	s, invalid := in.credential(node.KindPublicInput, name)
	if invalid != nil {
		return invalid
	}
	return node.PublicInput(name, s)
}
