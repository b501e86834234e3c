package spec

import (
	"encoding/json"
	"fmt"

	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/internal/schema"
	"github.com/zkcred/zkcred/node"
	"github.com/zkcred/zkcred/provable"
)

const (
	inputConstant = "constant"
	inputClaim    = "claim"
)

const specSchemaName = "spec"

const specSchema = `{
  "type": "object",
  "required": ["inputs", "logic"],
  "properties": {
    "inputs": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type", "data"],
        "properties": {"type": {"enum": ["credential", "constant", "claim"]}}
      }
    },
    "logic": {
      "type": "object",
      "required": ["assert", "outputClaim"],
      "properties": {
        "assert": {"type": "object", "required": ["type"]},
        "outputClaim": {"type": "object", "required": ["type"]}
      }
    }
  }
}`

func init() {
	schema.MustRegister(specSchemaName, specSchema)
}

type inputJSON struct {
	Type  string          `json:"type"`
	Data  provable.Type   `json:"data"`
	Value *provable.Value `json:"value,omitempty"`
}

type logicJSON struct {
	Assert      json.RawMessage `json:"assert"`
	OutputClaim json.RawMessage `json:"outputClaim"`
}

type specJSON struct {
	Inputs map[string]json.RawMessage `json:"inputs"`
	Logic  logicJSON                  `json:"logic"`
}

func (s *Spec) encode() ([]byte, error) {
	out := specJSON{Inputs: make(map[string]json.RawMessage, len(s.inputs))}
	for name, in := range s.inputs {
		var v interface{}
		switch in := in.(type) {
		case CredentialInput:
			v = in.Spec
		case ConstantInput:
			value := in.Value
			v = inputJSON{Type: inputConstant, Data: value.Type(), Value: &value}
		case ClaimInput:
			v = inputJSON{Type: inputClaim, Data: in.Type}
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		out.Inputs[name] = b
	}
	var err error
	if out.Logic.Assert, err = json.Marshal(s.assert); err != nil {
		return nil, err
	}
	if out.Logic.OutputClaim, err = json.Marshal(s.outputClaim); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// FromJSON rebuilds a spec. Compute nodes are resolved through computes.
func FromJSON(b []byte, computes node.ComputeRegistry) (*Spec, error) {
	if err := schema.Validate(specSchemaName, b); err != nil {
		return nil, err
	}
	var in specJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, common.Validationf("spec", "%v", err)
	}

	inputs := make(map[string]Input, len(in.Inputs))
	for name, raw := range in.Inputs {
		input, err := decodeInput(raw)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		inputs[name] = input
	}
	root := rootType(inputs)
	scope := (&Spec{inputs: inputs, names: provable.SortedNames(inputs), root: root}).Scope(computes)

	assert, err := node.Decode(in.Logic.Assert, scope)
	if err != nil {
		return nil, fmt.Errorf("assert: %w", err)
	}
	outputClaim, err := node.Decode(in.Logic.OutputClaim, scope)
	if err != nil {
		return nil, fmt.Errorf("outputClaim: %w", err)
	}
	return build(inputs, root, assert, outputClaim)
}

func decodeInput(raw json.RawMessage) (Input, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, common.Validationf("input", "%v", err)
	}
	if head.Type == credential.InputType {
		var s credential.Spec
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return CredentialInput{Spec: s}, nil
	}

	var in inputJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, common.Validationf("input", "%v", err)
	}
	switch in.Type {
	case inputConstant:
		if in.Value == nil {
			return nil, common.Validationf("value", "constant without a value")
		}
		if !in.Value.Type().Equal(in.Data) {
			return nil, common.Validationf("value", "constant of type %s declared %s", in.Value.Type(), in.Data)
		}
		return ConstantInput{Value: *in.Value}, nil
	case inputClaim:
		return ClaimInput{Type: in.Data}, nil
	}
	return nil, common.Validationf("type", "unknown input type %q", in.Type)
}
