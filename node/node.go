// Package node implements the expression language disclosure logic is written
// in. A Node is an immutable, typed expression; subtrees may be shared freely.
// Type errors are detected when a node is built and stick to it and to every
// node built on top of it.
package node

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/provable"
)

// Kind tags a node. The values are the wire tags.
type Kind string

const (
	KindOwner               Kind = "owner"
	KindRoot                Kind = "root"
	KindConstant            Kind = "constant"
	KindProperty            Kind = "property"
	KindRecord              Kind = "record"
	KindEquals              Kind = "equals"
	KindEqualsOneOf         Kind = "equalsOneOf"
	KindLessThan            Kind = "lessThan"
	KindLessThanEq          Kind = "lessThanEq"
	KindAdd                 Kind = "add"
	KindSub                 Kind = "sub"
	KindMul                 Kind = "mul"
	KindDiv                 Kind = "div"
	KindAnd                 Kind = "and"
	KindOr                  Kind = "or"
	KindNot                 Kind = "not"
	KindHash                Kind = "hash"
	KindIfThenElse          Kind = "ifThenElse"
	KindIssuer              Kind = "issuer"
	KindIssuerPublicKey     Kind = "issuerPublicKey"
	KindVerificationKeyHash Kind = "verificationKeyHash"
	KindPublicInput         Kind = "publicInput"
	KindCompute             Kind = "compute"
)

// ComputeFunc is a pure function over evaluated inputs.
type ComputeFunc func(inputs []provable.Value) (provable.Value, error)

// ComputeRegistry resolves compute nodes by name when decoding. The name is
// the only identity a compute function has: it is what the spec digest and
// the circuit commit to, so a function whose behavior changes must be
// registered under a new name, for example "age/v2".
type ComputeRegistry map[string]ComputeFunc

// Node is an immutable typed expression.
type Node struct {
	kind Kind
	typ  provable.Type
	err  error

	value    provable.Value
	key      string
	prefixed bool
	names    []string
	args     []*Node
	fn       ComputeFunc
}

func (n *Node) Kind() Kind { return n.kind }

// Type is the inferred output type; Undefined when Err is set.
func (n *Node) Type() provable.Type { return n.typ }

// Err returns the construction errors of the node and its subtree.
func (n *Node) Err() error { return n.err }

func (n *Node) String() string {
	if n.err != nil {
		return fmt.Sprintf("%s<error>", n.kind)
	}
	return fmt.Sprintf("%s<%s>", n.kind, n.typ)
}

func build(kind Kind, args []*Node, typer func() (provable.Type, error)) *Node {
	n := &Node{kind: kind, args: args}
	if err := childErrors(args); err != nil {
		n.err, n.typ = err, provable.UndefinedType
		return n
	}
	t, err := typer()
	if err != nil {
		n.err, n.typ = err, provable.UndefinedType
		return n
	}
	n.typ = t
	return n
}

func childErrors(args []*Node) error {
	var result *multierror.Error
	var seen []error
outer:
	for _, a := range args {
		if a == nil {
			result = multierror.Append(result, &common.TypeError{Op: "node", Reason: "nil operand"})
			continue
		}
		if a.err == nil {
			continue
		}
		for _, s := range seen {
			if s == a.err {
				continue outer
			}
		}
		seen = append(seen, a.err)
		result = multierror.Append(result, a.err)
	}
	return result.ErrorOrNil()
}

func typeErr(kind Kind, format string, args ...interface{}) error {
	return &common.TypeError{Op: string(kind), Reason: fmt.Sprintf(format, args...)}
}

// Invalid returns a node of the given kind carrying err, for references a
// builder cannot resolve.
func Invalid(kind Kind, err error) *Node {
	return &Node{kind: kind, typ: provable.UndefinedType, err: err}
}

// Owner is the public key of the credential owner authorizing a presentation.
func Owner() *Node {
	return &Node{kind: KindOwner, typ: provable.PublicKeyType}
}

// Root is the struct of all inputs of a spec.
func Root(t provable.Type) *Node {
	return &Node{kind: KindRoot, typ: t}
}

// Constant embeds a fixed value.
func Constant(v provable.Value) *Node {
	return &Node{kind: KindConstant, typ: v.Type(), value: v}
}

// Property reads a struct member.
func Property(inner *Node, key string) *Node {
	n := build(KindProperty, []*Node{inner}, func() (provable.Type, error) {
		if t, ok := inner.typ.Property(key); ok && inner.typ.Kind() == provable.KindStruct {
			return t, nil
		}
		return provable.Type{}, &common.UndefinedPropertyError{Key: key, Type: inner.typ.String()}
	})
	n.key = key
	return n
}

// Get follows a path of properties.
func Get(inner *Node, path ...string) *Node {
	for _, p := range path {
		inner = Property(inner, p)
	}
	return inner
}

// Record builds a struct out of nodes.
func Record(members map[string]*Node) *Node {
	names := provable.SortedNames(members)
	args := make([]*Node, len(names))
	for i, name := range names {
		args[i] = members[name]
	}
	n := build(KindRecord, args, func() (provable.Type, error) {
		props := make(map[string]provable.Type, len(names))
		for i, name := range names {
			props[name] = args[i].typ
		}
		return provable.Struct(props), nil
	})
	n.names = names
	return n
}

func checkComparable(kind Kind, a, b provable.Type) error {
	if a.IsNumeric() && b.IsNumeric() {
		return nil
	}
	if !a.Equal(b) {
		return typeErr(kind, "cannot compare %s with %s", a, b)
	}
	return nil
}

// Equals compares two values. Numeric values compare after promotion, other
// values must have identical types.
func Equals(left, right *Node) *Node {
	return build(KindEquals, []*Node{left, right}, func() (provable.Type, error) {
		return provable.BoolType, checkComparable(KindEquals, left.typ, right.typ)
	})
}

// EqualsOneOf is true when input equals any of the options.
func EqualsOneOf(input *Node, options ...*Node) *Node {
	args := append([]*Node{input}, options...)
	return build(KindEqualsOneOf, args, func() (provable.Type, error) {
		if len(options) == 0 {
			return provable.Type{}, typeErr(KindEqualsOneOf, "no options")
		}
		for _, o := range options {
			if err := checkComparable(KindEqualsOneOf, input.typ, o.typ); err != nil {
				return provable.Type{}, err
			}
		}
		return provable.BoolType, nil
	})
}

func numeric(kind Kind, left, right *Node, result func(provable.Type) provable.Type) *Node {
	return build(kind, []*Node{left, right}, func() (provable.Type, error) {
		t, err := provable.Promote(left.typ, right.typ)
		if err != nil {
			return provable.Type{}, typeErr(kind, "%s and %s are not both numeric", left.typ, right.typ)
		}
		return result(t), nil
	})
}

func boolResult(provable.Type) provable.Type   { return provable.BoolType }
func sameResult(t provable.Type) provable.Type { return t }

func LessThan(left, right *Node) *Node   { return numeric(KindLessThan, left, right, boolResult) }
func LessThanEq(left, right *Node) *Node { return numeric(KindLessThanEq, left, right, boolResult) }
func Add(left, right *Node) *Node        { return numeric(KindAdd, left, right, sameResult) }
func Sub(left, right *Node) *Node        { return numeric(KindSub, left, right, sameResult) }
func Mul(left, right *Node) *Node        { return numeric(KindMul, left, right, sameResult) }
func Div(left, right *Node) *Node        { return numeric(KindDiv, left, right, sameResult) }

func logical(kind Kind, inputs []*Node) *Node {
	return build(kind, inputs, func() (provable.Type, error) {
		if len(inputs) == 0 {
			return provable.Type{}, typeErr(kind, "no inputs")
		}
		for _, in := range inputs {
			if in.typ.Kind() != provable.KindBool {
				return provable.Type{}, typeErr(kind, "input of type %s", in.typ)
			}
		}
		return provable.BoolType, nil
	})
}

// And is the conjunction of its inputs. Every input is evaluated.
func And(inputs ...*Node) *Node { return logical(KindAnd, inputs) }

// Or is the disjunction of its inputs. Every input is evaluated.
func Or(inputs ...*Node) *Node { return logical(KindOr, inputs) }

func Not(inner *Node) *Node {
	return build(KindNot, []*Node{inner}, func() (provable.Type, error) {
		if inner.typ.Kind() != provable.KindBool {
			return provable.Type{}, typeErr(KindNot, "input of type %s", inner.typ)
		}
		return provable.BoolType, nil
	})
}

// Hash hashes the field encoding of its inputs.
func Hash(inputs ...*Node) *Node {
	return build(KindHash, inputs, func() (provable.Type, error) {
		return provable.FieldType, nil
	})
}

// HashWithPrefix hashes its inputs under a domain prefix, as used for
// nullifiers.
func HashWithPrefix(prefix string, inputs ...*Node) *Node {
	n := Hash(inputs...)
	n.key, n.prefixed = prefix, true
	return n
}

// IfThenElse selects a branch. Both branches must have the same type and are
// both evaluated.
func IfThenElse(condition, thenNode, elseNode *Node) *Node {
	return build(KindIfThenElse, []*Node{condition, thenNode, elseNode}, func() (provable.Type, error) {
		if condition.typ.Kind() != provable.KindBool {
			return provable.Type{}, typeErr(KindIfThenElse, "condition of type %s", condition.typ)
		}
		if !thenNode.typ.Equal(elseNode.typ) {
			return provable.Type{}, typeErr(KindIfThenElse, "branches of types %s and %s", thenNode.typ, elseNode.typ)
		}
		return thenNode.typ, nil
	})
}

func witnessNode(kind Kind, credentialKey string, spec credential.Spec) *Node {
	n := &Node{kind: kind, key: credentialKey}
	t, ok := spec.WitnessType().Property(string(kind))
	if !ok {
		n.err = &common.UndefinedPropertyError{Key: string(kind), Type: spec.Kind.String() + " credential " + credentialKey}
		n.typ = provable.UndefinedType
		return n
	}
	n.typ = t
	return n
}

// Issuer is the issuer identity of a credential input.
func Issuer(credentialKey string, spec credential.Spec) *Node {
	return witnessNode(KindIssuer, credentialKey, spec)
}

// IssuerPublicKey is the issuer key of a native credential input.
func IssuerPublicKey(credentialKey string, spec credential.Spec) *Node {
	return witnessNode(KindIssuerPublicKey, credentialKey, spec)
}

// VerificationKeyHash is the program of an imported credential input.
func VerificationKeyHash(credentialKey string, spec credential.Spec) *Node {
	return witnessNode(KindVerificationKeyHash, credentialKey, spec)
}

// PublicInput is the public input of the proof of an imported credential.
func PublicInput(credentialKey string, spec credential.Spec) *Node {
	return witnessNode(KindPublicInput, credentialKey, spec)
}

// Compute applies a named pure function. Its output type is declared, not
// inferred, and checked on evaluation. Encodings carry the name, never the
// function, see ComputeRegistry.
func Compute(name string, fn ComputeFunc, output provable.Type, inputs ...*Node) *Node {
	n := build(KindCompute, inputs, func() (provable.Type, error) {
		if fn == nil {
			return provable.Type{}, typeErr(KindCompute, "no function for %q", name)
		}
		return output, nil
	})
	n.key, n.fn = name, fn
	return n
}
