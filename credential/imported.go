package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/provable"
)

// ImportedConfig describes a program whose outputs are credentials. Name and
// types identify the program: two configs with equal name and types must
// have the same Main.
type ImportedConfig struct {
	Name        string
	PublicInput provable.Type
	Data        provable.Type
	Main        func(ctx context.Context, publicInput provable.Value, private interface{}) (Credential, error)
}

// ImportedProgram is a compiled program producing imported credentials.
type ImportedProgram struct {
	spec    Spec
	program *backend.Program
	backend backend.Backend
}

// NewImportedProgram compiles the program with the given backend.
func NewImportedProgram(ctx context.Context, b backend.Backend, cfg ImportedConfig) (*ImportedProgram, error) {
	if cfg.Main == nil {
		return nil, fmt.Errorf("imported program %q has no main", cfg.Name)
	}
	digest, err := importedDigest(cfg)
	if err != nil {
		return nil, err
	}
	circuit := &backend.Circuit{
		Name:         cfg.Name,
		Digest:       digest,
		PublicInput:  cfg.PublicInput,
		PublicOutput: Type(cfg.Data),
		Main: func(ctx context.Context, _ backend.Verifier, pub provable.Value, private interface{}) (provable.Value, error) {
			c, err := cfg.Main(ctx, pub, private)
			if err != nil {
				return provable.Value{}, err
			}
			if !c.Data.Type().Equal(cfg.Data) {
				return provable.Value{}, &common.TypeError{Op: cfg.Name, Reason: fmt.Sprintf("credential data %s, declared %s", c.Data.Type(), cfg.Data)}
			}
			return c.Value(), nil
		},
	}
	program, err := b.Compile(ctx, circuit)
	if err != nil {
		return nil, fmt.Errorf("compiling imported program %q: %w", cfg.Name, err)
	}
	return &ImportedProgram{
		spec:    ImportedSpec(program.VerificationKey, cfg.PublicInput, cfg.Data),
		program: program,
		backend: b,
	}, nil
}

func importedDigest(cfg ImportedConfig) ([]byte, error) {
	pi, err := json.Marshal(cfg.PublicInput)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(cfg.Data)
	if err != nil {
		return nil, err
	}
	return crypto.Digest([]byte(crypto.PrefixImportedIssuer), []byte(cfg.Name), pi, data), nil
}

// Spec is the credential spec matching the program's outputs.
func (p *ImportedProgram) Spec() Spec {
	return p.spec
}

// Create runs the program and wraps its output into a stored credential.
func (p *ImportedProgram) Create(ctx context.Context, publicInput provable.Value, private interface{}) (*Stored, error) {
	proof, err := p.backend.Prove(ctx, p.program, publicInput, private)
	if err != nil {
		return nil, err
	}
	owner, _ := proof.PublicOutput.Property("owner")
	data, _ := proof.PublicOutput.Property("data")
	return &Stored{
		Version: common.Version,
		Witness: ImportedWitness{
			VerificationKey: p.program.VerificationKey,
			Proof:           proof,
		},
		Credential: Credential{Owner: owner.PublicKey(), Data: data},
	}, nil
}
