package common

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below matches its sentinel with errors.Is.
var (
	ErrValidation         = errors.New("invalid payload")
	ErrSchemaMismatch     = errors.New("credential does not match schema")
	ErrMissingCredential  = errors.New("missing credential")
	ErrUndefinedProperty  = errors.New("undefined property")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidProof       = errors.New("invalid proof")
	ErrInvalidContext     = errors.New("invalid context")
	ErrInvalidClaims      = errors.New("invalid claims")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrAssertion          = errors.New("assertion failed")
	ErrType               = errors.New("type error")
	ErrArithmetic         = errors.New("arithmetic error")
)

// ValidationError reports a malformed or unparseable wire payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validationf is a shorthand for a ValidationError with a formatted reason.
func Validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SchemaMismatchError reports a credential whose witness or data does not fit
// the expected credential spec of an input.
type SchemaMismatchError struct {
	Input  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch for input %q: %s", e.Input, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// MissingCredentialError lists every credential input left unresolved.
type MissingCredentialError struct {
	Inputs []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credentials for inputs: %s", strings.Join(e.Inputs, ", "))
}

func (e *MissingCredentialError) Is(target error) bool { return target == ErrMissingCredential }

// UndefinedPropertyError reports access to a key absent from a node's type.
type UndefinedPropertyError struct {
	Key  string
	Type string
}

func (e *UndefinedPropertyError) Error() string {
	return fmt.Sprintf("property %q is not defined on %s", e.Key, e.Type)
}

func (e *UndefinedPropertyError) Is(target error) bool { return target == ErrUndefinedProperty }

// InvalidSignatureError reports a failed authenticity check. Input names the
// credential input, or "owner" for the owner signature.
type InvalidSignatureError struct {
	Input string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature for %q", e.Input)
}

func (e *InvalidSignatureError) Is(target error) bool { return target == ErrInvalidSignature }

// InvalidProofError reports a proof that does not verify.
type InvalidProofError struct {
	Reason string
}

func (e *InvalidProofError) Error() string {
	return fmt.Sprintf("invalid proof: %s", e.Reason)
}

func (e *InvalidProofError) Is(target error) bool { return target == ErrInvalidProof }

// InvalidContextError reports a presentation bound to another context: a
// replay or a relay from another verifier is suspected.
type InvalidContextError struct {
	Reason string
}

func (e *InvalidContextError) Error() string {
	return fmt.Sprintf("invalid context: %s", e.Reason)
}

func (e *InvalidContextError) Is(target error) bool { return target == ErrInvalidContext }

// InvalidClaimsError reports presentation claims differing from the request.
type InvalidClaimsError struct {
	Claim string
}

func (e *InvalidClaimsError) Error() string {
	if e.Claim == "" {
		return "invalid claims"
	}
	return fmt.Sprintf("invalid claims: %q differs from the request", e.Claim)
}

func (e *InvalidClaimsError) Is(target error) bool { return target == ErrInvalidClaims }

// UnsupportedVersionError reports an unknown payload version.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported version %q, expected %q", e.Version, Version)
}

func (e *UnsupportedVersionError) Is(target error) bool { return target == ErrUnsupportedVersion }

// AssertionError is raised while proving when the spec's assertion is false.
type AssertionError struct {
	Reason string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s", e.Reason)
}

func (e *AssertionError) Is(target error) bool { return target == ErrAssertion }

// TypeError reports an ill-typed operation.
type TypeError struct {
	Op     string
	Reason string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *TypeError) Is(target error) bool { return target == ErrType }

// ArithmeticError reports overflow, underflow or division by zero.
type ArithmeticError struct {
	Op     string
	Reason string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ArithmeticError) Is(target error) bool { return target == ErrArithmetic }
