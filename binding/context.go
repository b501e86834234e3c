// Package binding derives the context commitment a presentation is bound to.
// The context commits to the circuit, the claims, the verifier, the action and
// a nonce pair, so a presentation produced for one request verifies against
// no other.
package binding

import (
	"crypto/cipher"
	"fmt"

	"github.com/drand/kyber/util/random"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
)

// RequestType names the kind of verifier a request comes from.
type RequestType string

const (
	NoContext RequestType = "no-context"
	HTTPS     RequestType = "https"
	ZkApp     RequestType = "zk-app"
)

// ParseRequestType rejects unknown request types.
func ParseRequestType(s string) (RequestType, error) {
	switch t := RequestType(s); t {
	case NoContext, HTTPS, ZkApp:
		return t, nil
	}
	return "", common.Validationf("type", "unknown request type %q", s)
}

// Tag is the field the request type contributes to the context.
func (t RequestType) Tag() field.Element {
	return crypto.HashString(crypto.PrefixRequestType, string(t))
}

// Input gathers everything the context commits to. VerifierIdentity and
// Action are field encodings, see StringIdentity and ZkAppIdentity.
type Input struct {
	Type             RequestType
	VerificationKey  field.Element
	ServerNonce      field.Element
	ClientNonce      field.Element
	VerifierIdentity []field.Element
	Action           []field.Element
	Claims           provable.Value
}

// Nonce combines the verifier and the wallet nonce.
func Nonce(serverNonce, clientNonce field.Element) field.Element {
	return crypto.Hash(crypto.PrefixNonce, serverNonce, clientNonce)
}

// ClaimsHash commits to the claims and their type.
func ClaimsHash(claims provable.Value) field.Element {
	return crypto.Hash(crypto.PrefixClaims, claims.TypedFields()...)
}

// Context computes the commitment
//
//	H("context", typeTag, vkHash, nonce, H("verifier", id), H("action", action), claimsHash)
func Context(in Input) field.Element {
	return crypto.Hash(crypto.PrefixContext,
		in.Type.Tag(),
		in.VerificationKey,
		Nonce(in.ServerNonce, in.ClientNonce),
		crypto.Hash(crypto.PrefixVerifier, in.VerifierIdentity...),
		crypto.Hash(crypto.PrefixAction, in.Action...),
		ClaimsHash(in.Claims),
	)
}

// StringIdentity encodes a verifier identity or an action given as a string,
// such as the origin of an https verifier.
func StringIdentity(s string) []field.Element {
	return crypto.StringToFields(s)
}

// ZkAppIdentity encodes an on-chain verifier: its account key and token id.
func ZkAppIdentity(address key.PublicKey, tokenID field.Element) []field.Element {
	return append(address.Fields(), tokenID)
}

// RandomNonce draws a nonce from the stream, or from crypto/rand when stream
// is nil.
func RandomNonce(stream cipher.Stream) field.Element {
	if stream == nil {
		stream = random.New()
	}
	return field.Random(stream)
}

func (in Input) String() string {
	return fmt.Sprintf("context{type: %s, vk: %s}", in.Type, in.VerificationKey)
}
