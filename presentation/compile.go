package presentation

import (
	"context"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/crypto"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/internal/metrics"
	"github.com/zkcred/zkcred/node"
	"github.com/zkcred/zkcred/provable"
	"github.com/zkcred/zkcred/spec"
)

// Compiled is a spec with its program. It is immutable and may be shared by
// any number of requests and verifications.
type Compiled struct {
	Spec    *spec.Spec
	Program *backend.Program
}

// VerificationKey of the compiled program.
func (c *Compiled) VerificationKey() backend.VerificationKey {
	return c.Program.VerificationKey
}

// Cache memoizes compiled specs by spec digest. A cache must only be used
// with one backend. Concurrent first calls for a spec may both compile.
type Cache struct {
	arc *lru.ARCCache
}

// NewCache returns a cache holding up to size compiled specs.
func NewCache(size int) (*Cache, error) {
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Cache{arc: arc}, nil
}

func (c *Cache) get(s *spec.Spec) (*Compiled, bool) {
	v, ok := c.arc.Get(hex.EncodeToString(s.Digest()))
	if !ok {
		return nil, false
	}
	return v.(*Compiled), true
}

func (c *Cache) add(compiled *Compiled) {
	c.arc.Add(hex.EncodeToString(compiled.Spec.Digest()), compiled)
}

// Len is the number of cached specs.
func (c *Cache) Len() int { return c.arc.Len() }

// Purge empties the cache.
func (c *Cache) Purge() { c.arc.Purge() }

// PublicInputType is the public input of the presentation program of a spec:
// the context and the claims.
func PublicInputType(s *spec.Spec) provable.Type {
	return provable.Struct(map[string]provable.Type{
		"context": provable.FieldType,
		"claims":  s.ClaimsType(),
	})
}

func publicInput(context field.Element, claims provable.Value) provable.Value {
	return provable.NewStruct(map[string]provable.Value{
		"context": provable.NewField(context),
		"claims":  claims,
	})
}

// Precompile compiles the presentation program of a spec. The result only
// depends on the spec and the backend.
func Precompile(ctx context.Context, b backend.Backend, s *spec.Spec, opts ...Option) (*Compiled, error) {
	c := newConfig(ctx, opts)
	return precompile(ctx, b, s, c)
}

func precompile(ctx context.Context, b backend.Backend, s *spec.Spec, c *config) (*Compiled, error) {
	if c.cache != nil {
		if compiled, ok := c.cache.get(s); ok {
			c.metrics.Cache(true)
			return compiled, nil
		}
		c.metrics.Cache(false)
	}

	start := c.clock.Now()
	program, err := b.Compile(ctx, &backend.Circuit{
		Name:              "presentation",
		Digest:            crypto.Digest([]byte(crypto.PrefixCircuit), s.Digest()),
		PublicInput:       PublicInputType(s),
		PublicOutput:      s.OutputType(),
		MaxProofsVerified: s.MaxProofsVerified(),
		Main:              programMain(s),
	})
	c.metrics.Observe(metrics.OpCompile, "", c.clock.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("precompile: %w", err)
	}
	compiled := &Compiled{Spec: s, Program: program}
	if c.cache != nil {
		c.cache.add(compiled)
	}
	c.log.Debugw("precompiled spec", "inputs", s.Names(), "vkHash", program.VerificationKey.Hash.String())
	return compiled, nil
}

// witness is the private input of the presentation program.
type witness struct {
	owner       key.PublicKey
	signature   []byte
	credentials map[string]*credential.Stored
}

// signable is the sequence the owner signs: the context followed by the hash
// and issuer of every credential, in declaration order.
func signable(s *spec.Spec, context field.Element, creds map[string]*credential.Stored) []field.Element {
	out := []field.Element{context}
	for _, name := range s.CredentialNames() {
		c := creds[name]
		out = append(out, c.Credential.Hash(), credential.Issuer(c.Witness))
	}
	return out
}

func programMain(s *spec.Spec) backend.MainFunc {
	return func(ctx context.Context, v backend.Verifier, pub provable.Value, private interface{}) (provable.Value, error) {
		w, ok := private.(*witness)
		if !ok {
			return provable.Value{}, fmt.Errorf("presentation program: unexpected witness %T", private)
		}
		contextValue, _ := pub.Property("context")
		claims, _ := pub.Property("claims")

		var missing []string
		for _, name := range s.CredentialNames() {
			if w.credentials[name] == nil {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return provable.Value{}, &common.MissingCredentialError{Inputs: missing}
		}
		if err := w.owner.Verify(w.signature, signable(s, contextValue.Field(), w.credentials)...); err != nil {
			return provable.Value{}, &common.InvalidSignatureError{Input: "owner"}
		}

		data := make(map[string]provable.Value, len(w.credentials))
		for _, name := range s.CredentialNames() {
			stored := w.credentials[name]
			cs, _ := s.Credential(name)
			if err := checkOwner(name, cs, stored, w.owner); err != nil {
				return provable.Value{}, err
			}
			if err := credential.Validate(ctx, v, cs, stored); err != nil {
				return provable.Value{}, fmt.Errorf("input %q: %w", name, err)
			}
			data[name] = stored.Credential.Data
		}

		root, err := s.RootValue(data, claims)
		if err != nil {
			return provable.Value{}, err
		}
		env := node.Env{Root: root, Owner: w.owner, Credentials: w.credentials}
		holds, err := node.Evaluate(s.Assert(), env)
		if err != nil {
			return provable.Value{}, err
		}
		if !holds.Bool() {
			return provable.Value{}, &common.AssertionError{Reason: "assertion does not hold"}
		}
		return node.Evaluate(s.OutputClaim(), env)
	}
}

// checkOwner requires signed credentials to belong to the presenting owner.
// Unsigned credentials carry a fixed dummy owner.
func checkOwner(name string, cs credential.Spec, stored *credential.Stored, owner key.PublicKey) error {
	switch cs.Kind {
	case credential.Unsigned:
		return nil
	case credential.Native, credential.Imported:
		if !stored.Credential.Owner.Equal(owner) {
			return &common.SchemaMismatchError{Input: name, Reason: "credential belongs to another owner"}
		}
	}
	return nil
}
