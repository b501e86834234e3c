package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/zkcred/zkcred/crypto/field"
)

// Domain prefixes. Every hash computed by the protocol uses exactly one of
// these, and they are pairwise distinct.
const (
	PrefixNonce               = "nonce"
	PrefixClaims              = "claims"
	PrefixContext             = "context"
	PrefixVerifier            = "verifier"
	PrefixAction              = "action"
	PrefixRequestType         = "request-type"
	PrefixCredential          = "credential"
	PrefixNativeIssuer        = "native-issuer"
	PrefixImportedIssuer      = "imported-issuer"
	PrefixImportedPublicInput = "imported-public-input"
	PrefixVerificationKey     = "verification-key"
	PrefixAttestation         = "attestation"
	PrefixAttestationInput    = "attestation-input"
	PrefixAttestationOutput   = "attestation-output"
	PrefixCircuit             = "circuit"
	PrefixBytes               = "bytes"
)

// chunkSize bytes always fit below the field modulus.
const chunkSize = field.Size - 1

// Hash is the domain separated hash of a field sequence: blake2b-512 over
// len(prefix) || prefix || fields, reduced into the field. Field elements
// have a fixed width so the encoding is injective.
func Hash(prefix string, fields ...field.Element) field.Element {
	h, _ := blake2b.New512(nil)
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(prefix)))
	_, _ = h.Write(l[:])
	_, _ = h.Write([]byte(prefix))
	for _, f := range fields {
		_, _ = h.Write(f.Bytes())
	}
	return field.FromDigest(h.Sum(nil))
}

// BytesToFields packs bytes into field elements: the byte length followed by
// 31 byte big-endian chunks.
func BytesToFields(b []byte) []field.Element {
	out := make([]field.Element, 0, 1+(len(b)+chunkSize-1)/chunkSize)
	out = append(out, field.FromUint64(uint64(len(b))))
	for i := 0; i < len(b); i += chunkSize {
		end := i + chunkSize
		if end > len(b) {
			end = len(b)
		}
		out = append(out, field.FromDigest(b[i:end]))
	}
	return out
}

// StringToFields packs the UTF-8 bytes of s.
func StringToFields(s string) []field.Element {
	return BytesToFields([]byte(s))
}

// HashString hashes a string under the given prefix.
func HashString(prefix, s string) field.Element {
	return Hash(prefix, StringToFields(s)...)
}

// HashBytes hashes opaque bytes into the field.
func HashBytes(b []byte) field.Element {
	return Hash(PrefixBytes, BytesToFields(b)...)
}

// Digest is the 32 byte blake2b digest used for circuit identities.
func Digest(data ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		_, _ = h.Write(d)
	}
	return h.Sum(nil)
}
