package presentation

import (
	"encoding/json"

	"github.com/zkcred/zkcred/binding"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/internal/schema"
	"github.com/zkcred/zkcred/node"
	"github.com/zkcred/zkcred/provable"
	"github.com/zkcred/zkcred/spec"
)

const (
	requestSchemaName      = "presentation-request"
	presentationSchemaName = "presentation"
)

const fieldEnvelope = `{"type": "object", "required": ["_type", "value"], "properties": {"_type": {"const": "Field"}}}`

const requestSchema = `{
  "type": "object",
  "required": ["type", "spec", "claims", "inputContext"],
  "properties": {
    "type": {"enum": ["no-context", "https", "zk-app"]},
    "spec": {"type": "object"},
    "claims": {"type": "object", "additionalProperties": {"type": "object", "required": ["_type"]}},
    "inputContext": {
      "oneOf": [
        {"type": "null"},
        {
          "type": "object",
          "required": ["type", "action", "serverNonce"],
          "properties": {
            "type": {"const": "https"},
            "action": {"type": "string"},
            "serverNonce": ` + fieldEnvelope + `
          }
        },
        {
          "type": "object",
          "required": ["type", "action", "serverNonce"],
          "properties": {
            "type": {"const": "zk-app"},
            "action": ` + fieldEnvelope + `,
            "serverNonce": ` + fieldEnvelope + `
          }
        }
      ]
    }
  }
}`

const presentationSchema = `{
  "type": "object",
  "required": ["version", "claims", "outputClaim", "serverNonce", "clientNonce", "proof"],
  "properties": {
    "version": {"type": "string"},
    "claims": {"type": "object", "additionalProperties": {"type": "object", "required": ["_type"]}},
    "outputClaim": {"type": "object", "required": ["_type"]},
    "serverNonce": ` + fieldEnvelope + `,
    "clientNonce": ` + fieldEnvelope + `,
    "proof": {
      "type": "object",
      "required": ["proof", "maxProofsVerified"],
      "properties": {
        "proof": {"type": "string"},
        "maxProofsVerified": {"type": "integer", "minimum": 0, "maximum": 2}
      }
    }
  }
}`

func init() {
	schema.MustRegister(requestSchemaName, requestSchema)
	schema.MustRegister(presentationSchemaName, presentationSchema)
}

type inputContextJSON struct {
	Type        string          `json:"type"`
	Action      json.RawMessage `json:"action"`
	ServerNonce provable.Value  `json:"serverNonce"`
}

type requestJSON struct {
	Type         string                    `json:"type"`
	Spec         json.RawMessage           `json:"spec"`
	Claims       map[string]provable.Value `json:"claims"`
	InputContext *inputContextJSON         `json:"inputContext"`
}

type proofJSON struct {
	Proof             []byte `json:"proof"`
	MaxProofsVerified int    `json:"maxProofsVerified"`
}

type presentationJSON struct {
	Version     string                    `json:"version"`
	Claims      map[string]provable.Value `json:"claims"`
	OutputClaim provable.Value            `json:"outputClaim"`
	ServerNonce provable.Value            `json:"serverNonce"`
	ClientNonce provable.Value            `json:"clientNonce"`
	Proof       proofJSON                 `json:"proof"`
}

func claimsMap(claims provable.Value) map[string]provable.Value {
	out := claims.Properties()
	if out == nil {
		out = map[string]provable.Value{}
	}
	return out
}

// MarshalJSON drops the compiled program, a receiver compiles the spec
// itself.
func (r *Request) MarshalJSON() ([]byte, error) {
	s, err := r.Spec.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := requestJSON{Type: string(r.Type), Spec: s, Claims: claimsMap(r.Claims)}
	if ic := r.InputContext; ic != nil {
		var action interface{} = ic.Action
		if ic.Type == binding.ZkApp {
			action = provable.NewField(ic.ZkAppAction)
		}
		a, err := json.Marshal(action)
		if err != nil {
			return nil, err
		}
		out.InputContext = &inputContextJSON{Type: string(ic.Type), Action: a, ServerNonce: provable.NewField(ic.ServerNonce)}
	}
	return json.Marshal(out)
}

// RequestFromJSON decodes a request. Compute nodes of its spec are resolved
// through computes.
func RequestFromJSON(b []byte, computes node.ComputeRegistry) (*Request, error) {
	if err := schema.Validate(requestSchemaName, b); err != nil {
		return nil, err
	}
	var in requestJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, common.Validationf("request", "%v", err)
	}
	t, err := binding.ParseRequestType(in.Type)
	if err != nil {
		return nil, err
	}
	s, err := spec.FromJSON(in.Spec, computes)
	if err != nil {
		return nil, err
	}
	claims := provable.NewStruct(in.Claims)
	if err := s.CheckClaims(claims); err != nil {
		return nil, err
	}

	r := &Request{Type: t, Spec: s, Claims: claims}
	if in.InputContext == nil {
		if t != binding.NoContext {
			return nil, common.Validationf("inputContext", "%s request without input context", t)
		}
		return r, nil
	}
	ict, err := binding.ParseRequestType(in.InputContext.Type)
	if err != nil {
		return nil, err
	}
	if ict != t {
		return nil, common.Validationf("inputContext", "%s context in a %s request", ict, t)
	}
	ic := &InputContext{Type: ict, ServerNonce: in.InputContext.ServerNonce.Field()}
	switch ict {
	case binding.HTTPS:
		if err := json.Unmarshal(in.InputContext.Action, &ic.Action); err != nil {
			return nil, common.Validationf("action", "%v", err)
		}
	case binding.ZkApp:
		var action provable.Value
		if err := json.Unmarshal(in.InputContext.Action, &action); err != nil {
			return nil, err
		}
		ic.ZkAppAction = action.Field()
	case binding.NoContext:
		return nil, common.Validationf("inputContext", "no-context request with an input context")
	}
	r.InputContext = ic
	return r, nil
}

func (p Presentation) MarshalJSON() ([]byte, error) {
	return json.Marshal(presentationJSON{
		Version:     p.Version,
		Claims:      claimsMap(p.Claims),
		OutputClaim: p.OutputClaim,
		ServerNonce: provable.NewField(p.ServerNonce),
		ClientNonce: provable.NewField(p.ClientNonce),
		Proof:       proofJSON{Proof: p.Proof.Data, MaxProofsVerified: p.Proof.MaxProofsVerified},
	})
}

func (p *Presentation) UnmarshalJSON(b []byte) error {
	if err := schema.Validate(presentationSchemaName, b); err != nil {
		return err
	}
	var in presentationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return common.Validationf("presentation", "%v", err)
	}
	if err := common.CheckVersion(in.Version); err != nil {
		return err
	}
	*p = Presentation{
		Version:     in.Version,
		Claims:      provable.NewStruct(in.Claims),
		OutputClaim: in.OutputClaim,
		ServerNonce: in.ServerNonce.Field(),
		ClientNonce: in.ClientNonce.Field(),
		Proof:       Proof{Data: in.Proof.Proof, MaxProofsVerified: in.Proof.MaxProofsVerified},
	}
	return nil
}
