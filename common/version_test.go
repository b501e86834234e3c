package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckVersion(t *testing.T) {
	require.NoError(t, CheckVersion("v0"))

	err := CheckVersion("v1")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedVersion))

	var verr *UnsupportedVersionError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "v1", verr.Version)
}

func TestErrorTaxonomy(t *testing.T) {
	errs := map[error]error{
		&ValidationError{Field: "spec", Reason: "bad"}:      ErrValidation,
		&SchemaMismatchError{Input: "passport"}:             ErrSchemaMismatch,
		&MissingCredentialError{Inputs: []string{"a", "b"}}: ErrMissingCredential,
		&UndefinedPropertyError{Key: "age", Type: "Field"}:  ErrUndefinedProperty,
		&InvalidSignatureError{Input: "owner"}:              ErrInvalidSignature,
		&InvalidProofError{Reason: "bad"}:                   ErrInvalidProof,
		&InvalidContextError{Reason: "nonce"}:               ErrInvalidContext,
		&InvalidClaimsError{Claim: "minAge"}:                ErrInvalidClaims,
		&AssertionError{Reason: "false"}:                    ErrAssertion,
		&TypeError{Op: "add", Reason: "bool"}:               ErrType,
		&ArithmeticError{Op: "div", Reason: "zero"}:         ErrArithmetic,
		&UnsupportedVersionError{Version: "v9"}:             ErrUnsupportedVersion,
	}
	for err, sentinel := range errs {
		require.ErrorIs(t, err, sentinel, err.Error())
		require.NotEmpty(t, err.Error())
	}

	missing := &MissingCredentialError{Inputs: []string{"a", "b"}}
	require.Contains(t, missing.Error(), "a, b")
}
