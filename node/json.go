package node

import (
	"encoding/json"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/provable"
)

// Scope is what a serialized node needs to be rebuilt: the root type, the
// credential inputs and the compute functions it may reference.
type Scope struct {
	Root        provable.Type
	Credentials map[string]credential.Spec
	Computes    ComputeRegistry
}

type wireNode struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	Key           string          `json:"key,omitempty"`
	Inner         *wireNode       `json:"inner,omitempty"`
	Left          *wireNode       `json:"left,omitempty"`
	Right         *wireNode       `json:"right,omitempty"`
	Input         *wireNode       `json:"input,omitempty"`
	Options       []*wireNode     `json:"options,omitempty"`
	Inputs        []*wireNode     `json:"inputs,omitempty"`
	Prefix        *string         `json:"prefix,omitempty"`
	Condition     *wireNode       `json:"condition,omitempty"`
	Then          *wireNode       `json:"thenNode,omitempty"`
	Else          *wireNode       `json:"elseNode,omitempty"`
	CredentialKey string          `json:"credentialKey,omitempty"`
	Name          string          `json:"name,omitempty"`
	OutputType    *provable.Type  `json:"outputType,omitempty"`
}

// MarshalJSON encodes the node tree. Shared subtrees are written out at every
// use.
func (n *Node) MarshalJSON() ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func toWire(n *Node) (*wireNode, error) {
	if n.err != nil {
		return nil, n.err
	}
	w := &wireNode{Type: string(n.kind)}
	args := make([]*wireNode, len(n.args))
	for i, a := range n.args {
		aw, err := toWire(a)
		if err != nil {
			return nil, err
		}
		args[i] = aw
	}

	switch n.kind {
	case KindOwner, KindRoot:
	case KindConstant:
		b, err := json.Marshal(n.value)
		if err != nil {
			return nil, err
		}
		w.Data = b
	case KindProperty:
		w.Key, w.Inner = n.key, args[0]
	case KindRecord:
		members := make(map[string]*wireNode, len(args))
		for i, name := range n.names {
			members[name] = args[i]
		}
		b, err := json.Marshal(members)
		if err != nil {
			return nil, err
		}
		w.Data = b
	case KindEquals, KindLessThan, KindLessThanEq, KindAdd, KindSub, KindMul, KindDiv:
		w.Left, w.Right = args[0], args[1]
	case KindEqualsOneOf:
		w.Input, w.Options = args[0], args[1:]
	case KindAnd, KindOr:
		w.Inputs = args
	case KindNot:
		w.Inner = args[0]
	case KindHash:
		w.Inputs = args
		if n.prefixed {
			prefix := n.key
			w.Prefix = &prefix
		}
	case KindIfThenElse:
		w.Condition, w.Then, w.Else = args[0], args[1], args[2]
	case KindIssuer, KindIssuerPublicKey, KindVerificationKeyHash, KindPublicInput:
		w.CredentialKey = n.key
	case KindCompute:
		t := n.typ
		w.Name, w.Inputs, w.OutputType = n.key, args, &t
	}
	return w, nil
}

// Decode rebuilds a node tree within a scope. Construction errors of the
// decoded tree are returned, not only stored on the node.
func Decode(b []byte, scope Scope) (*Node, error) {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, common.Validationf("node", "%v", err)
	}
	n, err := fromWire(&w, scope)
	if err != nil {
		return nil, err
	}
	return n, n.Err()
}

func fromWire(w *wireNode, scope Scope) (*Node, error) {
	if w == nil {
		return nil, common.Validationf("node", "missing node")
	}
	sub := func(ws ...*wireNode) ([]*Node, error) {
		out := make([]*Node, len(ws))
		for i, c := range ws {
			n, err := fromWire(c, scope)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	switch Kind(w.Type) {
	case KindOwner:
		return Owner(), nil
	case KindRoot:
		return Root(scope.Root), nil
	case KindConstant:
		var v provable.Value
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, common.Validationf("data", "%v", err)
		}
		return Constant(v), nil
	case KindProperty:
		a, err := sub(w.Inner)
		if err != nil {
			return nil, err
		}
		return Property(a[0], w.Key), nil
	case KindRecord:
		var raw map[string]*wireNode
		if err := json.Unmarshal(w.Data, &raw); err != nil {
			return nil, common.Validationf("record", "%v", err)
		}
		members := make(map[string]*Node, len(raw))
		for name, m := range raw {
			a, err := sub(m)
			if err != nil {
				return nil, err
			}
			members[name] = a[0]
		}
		return Record(members), nil
	case KindEquals, KindLessThan, KindLessThanEq, KindAdd, KindSub, KindMul, KindDiv:
		a, err := sub(w.Left, w.Right)
		if err != nil {
			return nil, err
		}
		return binary(Kind(w.Type), a[0], a[1]), nil
	case KindEqualsOneOf:
		a, err := sub(append([]*wireNode{w.Input}, w.Options...)...)
		if err != nil {
			return nil, err
		}
		return EqualsOneOf(a[0], a[1:]...), nil
	case KindAnd, KindOr:
		a, err := sub(w.Inputs...)
		if err != nil {
			return nil, err
		}
		return logical(Kind(w.Type), a), nil
	case KindNot:
		a, err := sub(w.Inner)
		if err != nil {
			return nil, err
		}
		return Not(a[0]), nil
	case KindHash:
		a, err := sub(w.Inputs...)
		if err != nil {
			return nil, err
		}
		if w.Prefix != nil {
			return HashWithPrefix(*w.Prefix, a...), nil
		}
		return Hash(a...), nil
	case KindIfThenElse:
		a, err := sub(w.Condition, w.Then, w.Else)
		if err != nil {
			return nil, err
		}
		return IfThenElse(a[0], a[1], a[2]), nil
	case KindIssuer, KindIssuerPublicKey, KindVerificationKeyHash, KindPublicInput:
		spec, ok := scope.Credentials[w.CredentialKey]
		if !ok {
			return nil, common.Validationf("credentialKey", "%q is not a credential input", w.CredentialKey)
		}
		return witnessNode(Kind(w.Type), w.CredentialKey, spec), nil
	case KindCompute:
		fn, ok := scope.Computes[w.Name]
		if !ok {
			return nil, common.Validationf("compute", "unknown function %q", w.Name)
		}
		if w.OutputType == nil {
			return nil, common.Validationf("compute", "missing outputType for %q", w.Name)
		}
		a, err := sub(w.Inputs...)
		if err != nil {
			return nil, err
		}
		return Compute(w.Name, fn, *w.OutputType, a...), nil
	}
	return nil, common.Validationf("type", "unknown node type %q", w.Type)
}

func binary(kind Kind, left, right *Node) *Node {
	switch kind {
	case KindEquals:
		return Equals(left, right)
	case KindLessThan:
		return LessThan(left, right)
	case KindLessThanEq:
		return LessThanEq(left, right)
	case KindAdd:
		return Add(left, right)
	case KindSub:
		return Sub(left, right)
	case KindMul:
		return Mul(left, right)
	}
	return Div(left, right)
}
