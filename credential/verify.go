package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
)

// unsignedOwnerSeed derives the fixed dummy owner of unsigned credentials.
// Its private key is public knowledge.
var unsignedOwnerSeed = []byte("zkcred/unsigned-owner")

// UnsignedOwner returns the dummy owner pair of unsigned credentials.
func UnsignedOwner() *key.Pair {
	return key.DeterministicPair(unsignedOwnerSeed)
}

// Sign issues a native credential.
func Sign(issuer *key.Pair, c Credential) (*Stored, error) {
	if c.Owner.IsZero() {
		return nil, errors.New("credential has no owner")
	}
	iss := nativeIssuer(issuer.Public)
	sig, err := issuer.Sign(iss, c.Hash())
	if err != nil {
		return nil, fmt.Errorf("signing credential: %w", err)
	}
	return &Stored{
		Version:    common.Version,
		Witness:    NativeWitness{Issuer: issuer.Public, Signature: sig},
		Credential: c,
	}, nil
}

// NewUnsigned wraps data into an unsigned credential owned by the dummy owner.
func NewUnsigned(data provable.Value) *Stored {
	return &Stored{
		Version:    common.Version,
		Witness:    UnsignedWitness{},
		Credential: Credential{Owner: UnsignedOwner().Public, Data: data},
	}
}

// Issuer derives the issuer identity of a witness. Native and imported
// issuers hash under distinct prefixes; unsigned credentials have issuer 0.
func Issuer(w Witness) field.Element {
	switch w := w.(type) {
	case NativeWitness:
		return nativeIssuer(w.Issuer)
	case ImportedWitness:
		var public []field.Element
		if w.Proof != nil {
			public = w.Proof.PublicInput.Fields()
		}
		return crypto.Hash(crypto.PrefixImportedIssuer,
			w.VerificationKey.Hash,
			crypto.Hash(crypto.PrefixImportedPublicInput, public...))
	case UnsignedWitness:
		return field.Zero()
	}
	return field.Zero()
}

func nativeIssuer(pk key.PublicKey) field.Element {
	return crypto.Hash(crypto.PrefixNativeIssuer, pk.Fields()...)
}

// WitnessView is the value of Spec.WitnessType for a stored credential.
func WitnessView(w Witness) provable.Value {
	props := map[string]provable.Value{"issuer": provable.NewField(Issuer(w))}
	switch w := w.(type) {
	case NativeWitness:
		props["issuerPublicKey"] = provable.NewPublicKey(w.Issuer)
	case ImportedWitness:
		props["verificationKeyHash"] = provable.NewField(w.VerificationKey.Hash)
		if w.Proof != nil {
			props["publicInput"] = w.Proof.PublicInput
		}
	case UnsignedWitness:
	}
	return provable.NewStruct(props)
}

// Verify checks the authenticity of a stored credential. Inside a program v
// is the program's verifier, so imported proofs count against its budget.
func Verify(ctx context.Context, v backend.Verifier, s *Stored) error {
	switch w := s.Witness.(type) {
	case NativeWitness:
		iss := nativeIssuer(w.Issuer)
		if err := w.Issuer.Verify(w.Signature, iss, s.Credential.Hash()); err != nil {
			return &common.InvalidSignatureError{Input: "issuer"}
		}
		return nil
	case ImportedWitness:
		if w.Proof == nil {
			return &common.InvalidProofError{Reason: "imported credential without proof"}
		}
		if !w.Proof.PublicOutput.Equal(s.Credential.Value()) {
			return &common.InvalidProofError{Reason: "imported proof output is not the credential"}
		}
		if v == nil {
			return &common.InvalidProofError{Reason: "no verifier for imported credential"}
		}
		if err := v.Verify(ctx, w.VerificationKey, w.Proof); err != nil {
			return &common.InvalidProofError{Reason: err.Error()}
		}
		return nil
	case UnsignedWitness:
		return nil
	}
	return &common.SchemaMismatchError{Reason: fmt.Sprintf("unknown witness %T", s.Witness)}
}

// Validate is the wallet side check: the credential fits the spec and is
// authentic.
func Validate(ctx context.Context, v backend.Verifier, spec Spec, s *Stored) error {
	if err := common.CheckVersion(s.Version); err != nil {
		return err
	}
	if err := checkSpec(spec, s); err != nil {
		return err
	}
	return Verify(ctx, v, s)
}

// MatchesSpec is the structural compatibility test used to pick credentials:
// same kind, same program for imported credentials, same data schema.
func MatchesSpec(spec Spec, s *Stored) bool {
	return checkSpec(spec, s) == nil
}

func checkSpec(spec Spec, s *Stored) error {
	if s.Kind() != spec.Kind {
		return &common.SchemaMismatchError{Reason: fmt.Sprintf("expected %s credential, got %s", spec.Kind, s.Kind())}
	}
	switch w := s.Witness.(type) {
	case ImportedWitness:
		if !w.VerificationKey.Hash.Equal(spec.VerificationKey.Hash) {
			return &common.SchemaMismatchError{Reason: "verification key hash differs"}
		}
		if w.Proof == nil || !w.Proof.PublicInput.Type().Equal(spec.PublicInput) {
			return &common.SchemaMismatchError{Reason: "public input type differs"}
		}
	case NativeWitness, UnsignedWitness:
	}
	if !s.Credential.Data.Type().Equal(spec.Data) {
		return &common.SchemaMismatchError{Reason: fmt.Sprintf("data type %s, expected %s", s.Credential.Data.Type(), spec.Data)}
	}
	return nil
}
