package credential

import (
	"encoding/json"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/internal/schema"
	"github.com/zkcred/zkcred/provable"
)

const storedSchemaName = "stored-credential"

const storedSchema = `{
  "type": "object",
  "required": ["version", "witness", "credential"],
  "properties": {
    "version": {"type": "string"},
    "metadata": {},
    "witness": {
      "type": "object",
      "required": ["type"],
      "oneOf": [
        {
          "properties": {
            "type": {"const": "native"},
            "issuer": {"type": "string", "pattern": "^[0-9a-f]+$"},
            "issuerSignature": {"type": "string"}
          },
          "required": ["issuer", "issuerSignature"]
        },
        {
          "properties": {
            "type": {"const": "imported"},
            "vk": {"type": "object", "required": ["data", "hash"]},
            "proof": {
              "type": "object",
              "required": ["publicInput", "publicOutput", "maxProofsVerified", "proof"],
              "properties": {"maxProofsVerified": {"type": "integer", "minimum": 0, "maximum": 2}}
            }
          },
          "required": ["vk", "proof"]
        },
        {
          "properties": {"type": {"const": "unsigned"}}
        }
      ]
    },
    "credential": {
      "type": "object",
      "required": ["owner", "data"],
      "properties": {
        "owner": {"type": "string", "pattern": "^[0-9a-f]+$"},
        "data": {"type": "object", "required": ["_type"]}
      }
    }
  }
}`

func init() {
	schema.MustRegister(storedSchemaName, storedSchema)
}

type proofJSON struct {
	PublicInput       provable.Value `json:"publicInput"`
	PublicOutput      provable.Value `json:"publicOutput"`
	MaxProofsVerified int            `json:"maxProofsVerified"`
	Proof             []byte         `json:"proof"`
}

type witnessJSON struct {
	Type            string                   `json:"type"`
	Issuer          *key.PublicKey           `json:"issuer,omitempty"`
	IssuerSignature []byte                   `json:"issuerSignature,omitempty"`
	VK              *backend.VerificationKey `json:"vk,omitempty"`
	Proof           *proofJSON               `json:"proof,omitempty"`
}

type credentialJSON struct {
	Owner key.PublicKey  `json:"owner"`
	Data  provable.Value `json:"data"`
}

type storedJSON struct {
	Version    string          `json:"version"`
	Witness    witnessJSON     `json:"witness"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Credential credentialJSON  `json:"credential"`
}

func (s Stored) MarshalJSON() ([]byte, error) {
	out := storedJSON{
		Version:    s.Version,
		Metadata:   s.Metadata,
		Credential: credentialJSON{Owner: s.Credential.Owner, Data: s.Credential.Data},
	}
	switch w := s.Witness.(type) {
	case NativeWitness:
		issuer := w.Issuer
		out.Witness = witnessJSON{Type: Native.String(), Issuer: &issuer, IssuerSignature: w.Signature}
	case ImportedWitness:
		vk := w.VerificationKey
		out.Witness = witnessJSON{Type: Imported.String(), VK: &vk}
		if w.Proof != nil {
			out.Witness.Proof = &proofJSON{
				PublicInput:       w.Proof.PublicInput,
				PublicOutput:      w.Proof.PublicOutput,
				MaxProofsVerified: w.Proof.MaxProofsVerified,
				Proof:             w.Proof.Data,
			}
		}
	case UnsignedWitness:
		out.Witness = witnessJSON{Type: Unsigned.String()}
	default:
		return nil, common.Validationf("witness", "unknown witness %T", s.Witness)
	}
	return json.Marshal(out)
}

func (s *Stored) UnmarshalJSON(b []byte) error {
	if err := schema.Validate(storedSchemaName, b); err != nil {
		return err
	}
	var in storedJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return common.Validationf("credential", "%v", err)
	}
	if err := common.CheckVersion(in.Version); err != nil {
		return err
	}

	kind, err := KindFromString(in.Witness.Type)
	if err != nil {
		return err
	}
	var w Witness
	switch kind {
	case Native:
		if in.Witness.Issuer == nil {
			return common.Validationf("witness.issuer", "missing issuer")
		}
		w = NativeWitness{Issuer: *in.Witness.Issuer, Signature: in.Witness.IssuerSignature}
	case Imported:
		if in.Witness.VK == nil || in.Witness.Proof == nil {
			return common.Validationf("witness", "imported witness needs vk and proof")
		}
		p := in.Witness.Proof
		w = ImportedWitness{
			VerificationKey: *in.Witness.VK,
			Proof: &backend.Proof{
				PublicInput:       p.PublicInput,
				PublicOutput:      p.PublicOutput,
				MaxProofsVerified: p.MaxProofsVerified,
				Data:              p.Proof,
			},
		}
	case Unsigned:
		w = UnsignedWitness{}
	}

	*s = Stored{
		Version:    in.Version,
		Witness:    w,
		Metadata:   in.Metadata,
		Credential: Credential{Owner: in.Credential.Owner, Data: in.Credential.Data},
	}
	return nil
}

type specJSON struct {
	Type            string                   `json:"type"`
	CredentialType  string                   `json:"credentialType"`
	Data            provable.Type            `json:"data"`
	VerificationKey *backend.VerificationKey `json:"verificationKey,omitempty"`
	PublicInput     *provable.Type           `json:"publicInput,omitempty"`
}

// InputType is the tag of credential inputs in serialized specs.
const InputType = "credential"

func (s Spec) MarshalJSON() ([]byte, error) {
	out := specJSON{Type: InputType, CredentialType: s.Kind.String(), Data: s.Data}
	if s.Kind == Imported {
		vk, pi := s.VerificationKey, s.PublicInput
		out.VerificationKey = &vk
		out.PublicInput = &pi
	}
	return json.Marshal(out)
}

func (s *Spec) UnmarshalJSON(b []byte) error {
	var in specJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return common.Validationf("credential", "%v", err)
	}
	if in.Type != InputType {
		return common.Validationf("type", "expected %q, got %q", InputType, in.Type)
	}
	kind, err := KindFromString(in.CredentialType)
	if err != nil {
		return err
	}
	switch kind {
	case Native:
		*s = NativeSpec(in.Data)
	case Unsigned:
		*s = UnsignedSpec(in.Data)
	case Imported:
		if in.VerificationKey == nil || in.PublicInput == nil {
			return common.Validationf("credential", "imported spec needs verificationKey and publicInput")
		}
		*s = ImportedSpec(*in.VerificationKey, *in.PublicInput, in.Data)
	}
	return nil
}
