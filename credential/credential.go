// Package credential implements the three kinds of credentials: native
// credentials signed by an issuer key, imported credentials attested by a
// proof of another program, and unsigned credentials carrying no authenticity
// at all.
package credential

import (
	"encoding/json"
	"fmt"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
)

// Kind is the closed set of credential kinds.
type Kind int

const (
	Native Kind = iota + 1
	Imported
	Unsigned
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Imported:
		return "imported"
	case Unsigned:
		return "unsigned"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindFromString parses a wire kind tag.
func KindFromString(s string) (Kind, error) {
	switch s {
	case "native":
		return Native, nil
	case "imported":
		return Imported, nil
	case "unsigned":
		return Unsigned, nil
	}
	return 0, common.Validationf("credentialType", "unknown credential type %q", s)
}

// Spec is the contract a credential input expects: its kind and data schema,
// and for imported credentials the program that must have produced it.
type Spec struct {
	Kind Kind
	Data provable.Type
	// VerificationKey and PublicInput are set for Imported specs only.
	VerificationKey backend.VerificationKey
	PublicInput     provable.Type
}

// NativeSpec expects a credential signed by an issuer key.
func NativeSpec(data provable.Type) Spec {
	return Spec{Kind: Native, Data: data}
}

// UnsignedSpec expects a credential with no authenticity. Only meant for
// testing; verifiers may reject it by policy.
func UnsignedSpec(data provable.Type) Spec {
	return Spec{Kind: Unsigned, Data: data}
}

// ImportedSpec expects a credential output by the program with the given
// verification key.
func ImportedSpec(vk backend.VerificationKey, publicInput, data provable.Type) Spec {
	return Spec{Kind: Imported, Data: data, VerificationKey: vk, PublicInput: publicInput}
}

// Equal compares two specs structurally.
func (s Spec) Equal(o Spec) bool {
	if s.Kind != o.Kind || !s.Data.Equal(o.Data) {
		return false
	}
	if s.Kind == Imported {
		return s.VerificationKey.Hash.Equal(o.VerificationKey.Hash) && s.PublicInput.Equal(o.PublicInput)
	}
	return true
}

// WitnessType is the public view of a witness that logic may read: the
// issuer of every kind, plus the issuer key of native credentials or the
// verification key hash and public input of imported ones.
func (s Spec) WitnessType() provable.Type {
	props := map[string]provable.Type{"issuer": provable.FieldType}
	switch s.Kind {
	case Native:
		props["issuerPublicKey"] = provable.PublicKeyType
	case Imported:
		props["verificationKeyHash"] = provable.FieldType
		props["publicInput"] = s.PublicInput
	case Unsigned:
	}
	return provable.Struct(props)
}

// Witness is the private authenticity material of a credential. It is one of
// NativeWitness, ImportedWitness or UnsignedWitness.
type Witness interface {
	Kind() Kind
	isWitness()
}

// NativeWitness is an issuer signature over the credential.
type NativeWitness struct {
	Issuer    key.PublicKey
	Signature []byte
}

func (NativeWitness) Kind() Kind { return Native }
func (NativeWitness) isWitness() {}

// ImportedWitness is a proof whose public output is the credential.
type ImportedWitness struct {
	VerificationKey backend.VerificationKey
	Proof           *backend.Proof
}

func (ImportedWitness) Kind() Kind { return Imported }
func (ImportedWitness) isWitness() {}

// UnsignedWitness carries nothing.
type UnsignedWitness struct{}

func (UnsignedWitness) Kind() Kind { return Unsigned }
func (UnsignedWitness) isWitness() {}

// Credential is the owner-bound data an issuer vouches for.
type Credential struct {
	Owner key.PublicKey
	Data  provable.Value
}

// Value is the credential as a {owner, data} struct.
func (c Credential) Value() provable.Value {
	return provable.NewStruct(map[string]provable.Value{
		"owner": provable.NewPublicKey(c.Owner),
		"data":  c.Data,
	})
}

// Type is the struct type of a credential with the given data type.
func Type(data provable.Type) provable.Type {
	return provable.Struct(map[string]provable.Type{
		"owner": provable.PublicKeyType,
		"data":  data,
	})
}

// Hash is the packed hash of owner and data. The data type is part of the
// hash: an issuer signature covers attribute names and widths.
func (c Credential) Hash() field.Element {
	return crypto.Hash(crypto.PrefixCredential, c.Value().TypedFields()...)
}

// Stored is a credential held by a wallet together with its witness. Stored
// credentials are never mutated. Metadata is opaque and never used for trust
// decisions.
type Stored struct {
	Version    string
	Witness    Witness
	Metadata   json.RawMessage
	Credential Credential
}

// Kind is the kind of the witness.
func (s *Stored) Kind() Kind {
	if s.Witness == nil {
		return 0
	}
	return s.Witness.Kind()
}
