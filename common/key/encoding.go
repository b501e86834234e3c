package key

import (
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/drand/kyber"

	"github.com/zkcred/zkcred/crypto"
)

// ErrDegenerateKey is returned when a decoded key is the identity point or a
// zero scalar. Neither can sign.
var ErrDegenerateKey = errors.New("degenerate key")

// toHex encodes a point or scalar of a key file or a credential payload.
func toHex(m encoding.BinaryMarshaler) string {
	buff, _ := m.MarshalBinary()
	return hex.EncodeToString(buff)
}

// publicFromHex decodes a public key point of the scheme's key group.
func publicFromHex(sch *crypto.Scheme, s string) (kyber.Point, error) {
	buff, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return publicFromBytes(sch, buff)
}

func publicFromBytes(sch *crypto.Scheme, buff []byte) (kyber.Point, error) {
	if len(buff) != sch.KeyGroup.PointLen() {
		return nil, fmt.Errorf("%s key of %d bytes - %w", sch, len(buff), ErrInvalidKeyScheme)
	}
	p := sch.KeyGroup.Point()
	if err := p.UnmarshalBinary(buff); err != nil {
		return nil, fmt.Errorf("could not unmarshal key - %w", ErrInvalidKeyScheme)
	}
	if p.Equal(sch.KeyGroup.Point().Null()) {
		return nil, ErrDegenerateKey
	}
	return p, nil
}

// privateFromHex decodes a private scalar from a key file.
func privateFromHex(sch *crypto.Scheme, s string) (kyber.Scalar, error) {
	buff, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	sc := sch.KeyGroup.Scalar()
	if err := sc.UnmarshalBinary(buff); err != nil {
		return nil, err
	}
	if sc.Equal(sch.KeyGroup.Scalar().Zero()) {
		return nil, ErrDegenerateKey
	}
	return sc, nil
}
