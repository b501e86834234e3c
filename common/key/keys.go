package key

import (
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"

	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
)

// limbSize is the width of the big-endian limbs a public key is split into
// when encoded as field elements.
const limbSize = 16

// ErrInvalidKeyScheme is returned when a key does not belong to the expected
// scheme.
var ErrInvalidKeyScheme = errors.New("the key's scheme does not match the expected scheme")

// PublicKey is a point of a scheme's key group. Owners and issuers use keys
// of the credential scheme; attestors use keys of the attestation scheme.
type PublicKey struct {
	Key    kyber.Point
	Scheme *crypto.Scheme
}

// Pair is a wrapper around a random scalar and the corresponding public
// key
type Pair struct {
	Key    kyber.Scalar
	Public PublicKey
}

// NewKeyPair returns a freshly created private / public key pair. A nil
// scheme selects the credential scheme.
func NewKeyPair(targetScheme *crypto.Scheme) *Pair {
	return NewKeyPairFrom(targetScheme, random.New())
}

// NewKeyPairFrom draws the private scalar from the given stream.
func NewKeyPairFrom(targetScheme *crypto.Scheme, rand cipher.Stream) *Pair {
	if targetScheme == nil {
		targetScheme = crypto.CredentialScheme()
	}
	return pairFromScalar(targetScheme, targetScheme.KeyGroup.Scalar().Pick(rand))
}

// DeterministicPair derives a credential scheme pair from a seed. The private
// key is public knowledge to anyone holding the seed.
func DeterministicPair(seed []byte) *Pair {
	sch := crypto.CredentialScheme()
	return pairFromScalar(sch, sch.DeterministicScalar(seed))
}

func pairFromScalar(sch *crypto.Scheme, s kyber.Scalar) *Pair {
	return &Pair{
		Key:    s,
		Public: PublicKey{Key: sch.PublicFor(s), Scheme: sch},
	}
}

// Scheme returns the key's crypto Scheme
func (p *Pair) Scheme() *crypto.Scheme {
	return p.Public.Scheme
}

// Sign signs the canonical encoding of a field sequence.
func (p *Pair) Sign(fields ...field.Element) ([]byte, error) {
	return p.SignBytes(field.Concat(fields...))
}

// SignBytes signs an arbitrary message.
func (p *Pair) SignBytes(msg []byte) ([]byte, error) {
	if p.Public.Scheme == nil {
		return nil, ErrInvalidKeyScheme
	}
	return p.Public.Scheme.AuthScheme.Sign(p.Key, msg)
}

// Verify checks a signature produced by Pair.Sign over the same fields.
func (k PublicKey) Verify(sig []byte, fields ...field.Element) error {
	return k.VerifyBytes(field.Concat(fields...), sig)
}

// VerifyBytes checks a signature over an arbitrary message.
func (k PublicKey) VerifyBytes(msg, sig []byte) error {
	if k.Key == nil || k.Scheme == nil {
		return ErrInvalidKeyScheme
	}
	return k.Scheme.AuthScheme.Verify(k.Key, msg, sig)
}

// Bytes returns the compressed point.
func (k PublicKey) Bytes() []byte {
	if k.Key == nil {
		return nil
	}
	buff, _ := k.Key.MarshalBinary()
	return buff
}

// Fields splits the compressed point into 16 byte big-endian limbs. A
// credential key is two field elements, high limb first.
func (k PublicKey) Fields() []field.Element {
	b := k.Bytes()
	out := make([]field.Element, 0, (len(b)+limbSize-1)/limbSize)
	for i := 0; i < len(b); i += limbSize {
		end := i + limbSize
		if end > len(b) {
			end = len(b)
		}
		out = append(out, field.FromDigest(b[i:end]))
	}
	return out
}

// Hash fingerprints the key with the scheme's identity hash.
func (k PublicKey) Hash() []byte {
	h := k.Scheme.IdentityHash()
	_, _ = h.Write(k.Bytes())
	return h.Sum(nil)
}

func (k PublicKey) String() string {
	if k.Key == nil {
		return ""
	}
	return toHex(k.Key)
}

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool {
	return k.Key == nil
}

// Equal indicates if two keys are the same point of the same scheme.
func (k PublicKey) Equal(o PublicKey) bool {
	if k.Key == nil || o.Key == nil {
		return k.Key == nil && o.Key == nil
	}
	if k.Scheme.String() != o.Scheme.String() {
		return false
	}
	return k.Key.Equal(o.Key)
}

// MarshalText encodes the key as hex.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a hex key of the credential scheme, or of the scheme
// already set on k.
func (k *PublicKey) UnmarshalText(b []byte) error {
	sch := k.Scheme
	if sch == nil {
		sch = crypto.CredentialScheme()
	}
	pk, err := PublicKeyFromString(sch, string(b))
	if err != nil {
		return err
	}
	*k = pk
	return nil
}

// PublicKeyFromString decodes a hex encoded point of the given scheme.
func PublicKeyFromString(sch *crypto.Scheme, s string) (PublicKey, error) {
	p, err := publicFromHex(sch, s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("decoding public key: %w", err)
	}
	return PublicKey{Key: p, Scheme: sch}, nil
}

// PublicKeyFromBytes decodes a compressed point of the given scheme.
func PublicKeyFromBytes(sch *crypto.Scheme, b []byte) (PublicKey, error) {
	p, err := publicFromBytes(sch, b)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{Key: p, Scheme: sch}, nil
}

// PairTOML is the TOML-able version of a private key
type PairTOML struct {
	Key        string
	SchemeName string
}

// PublicTOML is the TOML-able version of a public key
type PublicTOML struct {
	Key        string
	SchemeName string
}

// TOML returns a struct that can be marshaled using a TOML-encoding library
func (p *Pair) TOML() interface{} {
	return &PairTOML{toHex(p.Key), p.Public.Scheme.Name}
}

// FromTOML constructs the private key from an unmarshalled structure from TOML.
// The public key is recomputed from the scalar.
func (p *Pair) FromTOML(i interface{}) error {
	ptoml, ok := i.(*PairTOML)
	if !ok {
		return errors.New("private can't decode toml from non PairTOML struct")
	}
	sch, err := crypto.SchemeFromName(ptoml.SchemeName)
	if err != nil {
		return err
	}
	s, err := privateFromHex(sch, ptoml.Key)
	if err != nil {
		return fmt.Errorf("decoding private key: %w", err)
	}
	*p = *pairFromScalar(sch, s)
	return nil
}

// TOMLValue returns an empty TOML-compatible interface value
func (p *Pair) TOMLValue() interface{} {
	return &PairTOML{}
}

// TOML returns a TOML-compatible version of the public key
func (k *PublicKey) TOML() interface{} {
	return &PublicTOML{Key: k.String(), SchemeName: k.Scheme.String()}
}

// FromTOML loads reads the TOML description of the public key
func (k *PublicKey) FromTOML(t interface{}) error {
	ptoml, ok := t.(*PublicTOML)
	if !ok {
		return errors.New("public can't decode from non PublicTOML struct")
	}
	sch, err := crypto.SchemeFromName(ptoml.SchemeName)
	if err != nil {
		return err
	}
	pk, err := PublicKeyFromString(sch, ptoml.Key)
	if err != nil {
		return err
	}
	*k = pk
	return nil
}

// TOMLValue returns a TOML-compatible interface value
func (k *PublicKey) TOMLValue() interface{} {
	return &PublicTOML{}
}
