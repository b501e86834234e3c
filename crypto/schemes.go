package crypto

import (
	"fmt"
	"hash"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/group/edwards25519"
	"github.com/drand/kyber/sign"
	signBls "github.com/drand/kyber/sign/bls"
	"github.com/drand/kyber/sign/schnorr"
	"github.com/drand/kyber/xof/blake2xb"
)

// Scheme bundles the groups and signature scheme used for one kind of key.
// Owner and issuer keys use the credential scheme, the attestation backend
// uses the attestation scheme.
//
// Note: Scheme is not meant to be marshaled directly. Instead use SchemeFromName.
type Scheme struct {
	// Name of the scheme
	Name string
	// KeyGroup is the group public keys live in
	KeyGroup kyber.Group
	// SigGroup is the group signatures live in, nil for schnorr
	SigGroup kyber.Group
	// AuthScheme signs and verifies byte messages
	AuthScheme sign.Scheme
	// IdentityHash hashes public keys into fingerprints
	IdentityHash func() hash.Hash `toml:"-"`
}

func (s *Scheme) String() string {
	if s != nil {
		return s.Name
	}
	return ""
}

// DeterministicScalar derives a scalar of the key group from a seed. Anyone
// knowing the seed knows the scalar.
func (s *Scheme) DeterministicScalar(seed []byte) kyber.Scalar {
	return s.KeyGroup.Scalar().Pick(blake2xb.New(seed))
}

// PublicFor returns the public point of a private scalar.
func (s *Scheme) PublicFor(private kyber.Scalar) kyber.Point {
	return s.KeyGroup.Point().Mul(private, nil)
}

func identityHash() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

// SchnorrSchemeID names the scheme of owner and issuer keys.
const SchnorrSchemeID = "schnorr-ed25519"

// NewSchnorrEd25519 returns the credential scheme: schnorr signatures over
// edwards25519, whose scalar field is the protocol's field.
func NewSchnorrEd25519() *Scheme {
	suite := edwards25519.NewBlakeSHA256Ed25519()
	return &Scheme{
		Name:         SchnorrSchemeID,
		KeyGroup:     suite,
		AuthScheme:   schnorr.NewScheme(suite),
		IdentityHash: identityHash,
	}
}

// AttestationSchemeID names the scheme of attestation backend keys.
const AttestationSchemeID = "bls-attest-g1"

// NewBLSAttestation returns BLS12-381 signatures on G1 with keys on G2.
func NewBLSAttestation() *Scheme {
	pairing := bls.NewBLS12381Suite()
	return &Scheme{
		Name:         AttestationSchemeID,
		KeyGroup:     pairing.G2(),
		SigGroup:     pairing.G1(),
		AuthScheme:   signBls.NewSchemeOnG1(pairing),
		IdentityHash: identityHash,
	}
}

// SchemeFromName returns the scheme registered under the given name.
func SchemeFromName(schemeName string) (*Scheme, error) {
	switch schemeName {
	case SchnorrSchemeID:
		return CredentialScheme(), nil
	case AttestationSchemeID:
		return AttestationScheme(), nil
	default:
		return nil, fmt.Errorf("invalid scheme name '%s'", schemeName)
	}
}

var schemeIDs = []string{SchnorrSchemeID, AttestationSchemeID}

// ListSchemes returns the valid scheme ids.
func ListSchemes() []string {
	return schemeIDs
}

var (
	credentialOnce   sync.Once
	credentialScheme *Scheme
	attestOnce       sync.Once
	attestScheme     *Scheme
)

// CredentialScheme returns the shared schnorr scheme. Schemes are stateless
// and safe for concurrent use.
func CredentialScheme() *Scheme {
	credentialOnce.Do(func() { credentialScheme = NewSchnorrEd25519() })
	return credentialScheme
}

// AttestationScheme returns the shared BLS scheme.
func AttestationScheme() *Scheme {
	attestOnce.Do(func() { attestScheme = NewBLSAttestation() })
	return attestScheme
}
