package node

import (
	"fmt"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
)

// Env is what a node is evaluated against.
type Env struct {
	Root        provable.Value
	Owner       key.PublicKey
	Credentials map[string]*credential.Stored
}

// Evaluate computes the value of a node. Shared subtrees are evaluated once.
// Evaluation has no side effects and every operand is evaluated, including
// both branches of IfThenElse.
func Evaluate(n *Node, env Env) (provable.Value, error) {
	if n == nil {
		return provable.Value{}, &common.TypeError{Op: "evaluate", Reason: "nil node"}
	}
	if n.err != nil {
		return provable.Value{}, n.err
	}
	e := &evaluator{env: env, memo: make(map[*Node]provable.Value)}
	return e.eval(n)
}

type evaluator struct {
	env  Env
	memo map[*Node]provable.Value
}

func (e *evaluator) eval(n *Node) (provable.Value, error) {
	if v, ok := e.memo[n]; ok {
		return v, nil
	}
	args := make([]provable.Value, len(n.args))
	for i, a := range n.args {
		v, err := e.eval(a)
		if err != nil {
			return provable.Value{}, err
		}
		args[i] = v
	}
	v, err := e.apply(n, args)
	if err != nil {
		return provable.Value{}, err
	}
	e.memo[n] = v
	return v, nil
}

func (e *evaluator) apply(n *Node, args []provable.Value) (provable.Value, error) {
	switch n.kind {
	case KindOwner:
		return provable.NewPublicKey(e.env.Owner), nil
	case KindRoot:
		if !e.env.Root.Type().Equal(n.typ) {
			return provable.Value{}, typeErr(n.kind, "root of type %s, expected %s", e.env.Root.Type(), n.typ)
		}
		return e.env.Root, nil
	case KindConstant:
		return n.value, nil
	case KindProperty:
		v, ok := args[0].Property(n.key)
		if !ok {
			return provable.Value{}, &common.UndefinedPropertyError{Key: n.key, Type: args[0].Type().String()}
		}
		return v, nil
	case KindRecord:
		members := make(map[string]provable.Value, len(args))
		for i, name := range n.names {
			members[name] = args[i]
		}
		return provable.NewStruct(members), nil
	case KindEquals:
		eq, err := equal(args[0], args[1])
		return provable.NewBool(eq), err
	case KindEqualsOneOf:
		found := false
		for _, o := range args[1:] {
			eq, err := equal(args[0], o)
			if err != nil {
				return provable.Value{}, err
			}
			found = found || eq
		}
		return provable.NewBool(found), nil
	case KindLessThan, KindLessThanEq:
		c, err := provable.Compare(args[0], args[1])
		if err != nil {
			return provable.Value{}, err
		}
		if n.kind == KindLessThan {
			return provable.NewBool(c < 0), nil
		}
		return provable.NewBool(c <= 0), nil
	case KindAdd:
		return provable.Arith(provable.OpAdd, args[0], args[1])
	case KindSub:
		return provable.Arith(provable.OpSub, args[0], args[1])
	case KindMul:
		return provable.Arith(provable.OpMul, args[0], args[1])
	case KindDiv:
		return provable.Arith(provable.OpDiv, args[0], args[1])
	case KindAnd:
		out := true
		for _, a := range args {
			out = out && a.Bool()
		}
		return provable.NewBool(out), nil
	case KindOr:
		out := false
		for _, a := range args {
			out = out || a.Bool()
		}
		return provable.NewBool(out), nil
	case KindNot:
		return provable.NewBool(!args[0].Bool()), nil
	case KindHash:
		var fields []field.Element
		for _, a := range args {
			fields = append(fields, a.Fields()...)
		}
		return provable.NewField(crypto.Hash(n.key, fields...)), nil
	case KindIfThenElse:
		if args[0].Bool() {
			return args[1], nil
		}
		return args[2], nil
	case KindIssuer, KindIssuerPublicKey, KindVerificationKeyHash, KindPublicInput:
		stored, ok := e.env.Credentials[n.key]
		if !ok || stored == nil {
			return provable.Value{}, &common.MissingCredentialError{Inputs: []string{n.key}}
		}
		v, ok := credential.WitnessView(stored.Witness).Property(string(n.kind))
		if !ok {
			return provable.Value{}, &common.UndefinedPropertyError{Key: string(n.kind), Type: stored.Kind().String() + " credential " + n.key}
		}
		return v, nil
	case KindCompute:
		v, err := n.fn(args)
		if err != nil {
			return provable.Value{}, fmt.Errorf("compute %q: %w", n.key, err)
		}
		if !v.Type().Equal(n.typ) {
			return provable.Value{}, typeErr(n.kind, "%q returned %s, declared %s", n.key, v.Type(), n.typ)
		}
		return v, nil
	}
	return provable.Value{}, typeErr(n.kind, "unknown node kind")
}

func equal(a, b provable.Value) (bool, error) {
	if a.Type().IsNumeric() && b.Type().IsNumeric() {
		c, err := provable.Compare(a, b)
		return c == 0, err
	}
	return a.Equal(b), nil
}
