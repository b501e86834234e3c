package presentation

import (
	"context"

	"github.com/zkcred/zkcred/binding"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/provable"
	"github.com/zkcred/zkcred/spec"
)

// InputContext is the verifier side of the context: the action the
// presentation authorizes and the server nonce.
type InputContext struct {
	Type binding.RequestType
	// Action of https requests.
	Action string
	// ZkAppAction is the action of zk-app requests, typically a method id.
	ZkAppAction field.Element
	ServerNonce field.Element
}

// Request asks a wallet for a presentation of a spec. It is ephemeral: every
// verification attempt gets its own request and server nonce.
type Request struct {
	Type     binding.RequestType
	Spec     *spec.Spec
	Compiled *Compiled
	Claims   provable.Value
	// InputContext is nil for no-context requests.
	InputContext *InputContext
}

// NoContext requests a presentation that is not bound to any verifier. It
// can be replayed and should only be used where that is acceptable.
func NoContext(s *spec.Spec, claims provable.Value) (*Request, error) {
	return newRequest(binding.NoContext, s, nil, claims, nil)
}

// HTTPS requests a presentation bound to a web verifier and an action.
func HTTPS(s *spec.Spec, claims provable.Value, action string, opts ...Option) (*Request, error) {
	return newRequest(binding.HTTPS, s, nil, claims, &InputContext{Type: binding.HTTPS, Action: action}, opts...)
}

// ZkApp requests a presentation bound to an on-chain verifier and an action.
func ZkApp(s *spec.Spec, claims provable.Value, action field.Element, opts ...Option) (*Request, error) {
	return newRequest(binding.ZkApp, s, nil, claims, &InputContext{Type: binding.ZkApp, ZkAppAction: action}, opts...)
}

// NoContextFromCompiled is NoContext reusing a precompiled spec.
func NoContextFromCompiled(c *Compiled, claims provable.Value) (*Request, error) {
	return newRequest(binding.NoContext, c.Spec, c, claims, nil)
}

// HTTPSFromCompiled is HTTPS reusing a precompiled spec.
func HTTPSFromCompiled(c *Compiled, claims provable.Value, action string, opts ...Option) (*Request, error) {
	return newRequest(binding.HTTPS, c.Spec, c, claims, &InputContext{Type: binding.HTTPS, Action: action}, opts...)
}

// ZkAppFromCompiled is ZkApp reusing a precompiled spec.
func ZkAppFromCompiled(c *Compiled, claims provable.Value, action field.Element, opts ...Option) (*Request, error) {
	return newRequest(binding.ZkApp, c.Spec, c, claims, &InputContext{Type: binding.ZkApp, ZkAppAction: action}, opts...)
}

func newRequest(t binding.RequestType, s *spec.Spec, c *Compiled, claims provable.Value, ic *InputContext, opts ...Option) (*Request, error) {
	if s == nil {
		return nil, common.Validationf("spec", "missing spec")
	}
	if err := s.CheckClaims(claims); err != nil {
		return nil, err
	}
	if ic != nil {
		cfg := newConfig(context.Background(), opts)
		if cfg.serverNonce != nil {
			ic.ServerNonce = *cfg.serverNonce
		} else {
			ic.ServerNonce = binding.RandomNonce(cfg.rand)
		}
	}
	return &Request{Type: t, Spec: s, Compiled: c, Claims: claims, InputContext: ic}, nil
}

// ServerNonce is the nonce of the request, zero for no-context requests.
func (r *Request) ServerNonce() field.Element {
	if r.InputContext == nil {
		return field.Zero()
	}
	return r.InputContext.ServerNonce
}

// WalletContext is what the wallet knows about the verifier it talks to.
// The verifier identity never travels in the request: the wallet takes it
// from the channel, the origin of a web page or the account of a zk-app.
type WalletContext struct {
	VerifierIdentity string
	Address          key.PublicKey
	TokenID          field.Element
}

// HTTPSWallet is the wallet context of an https verifier.
func HTTPSWallet(verifierIdentity string) WalletContext {
	return WalletContext{VerifierIdentity: verifierIdentity}
}

// ZkAppWallet is the wallet context of a zk-app verifier.
func ZkAppWallet(address key.PublicKey, tokenID field.Element) WalletContext {
	return WalletContext{Address: address, TokenID: tokenID}
}

// contextInput derives everything the context commits to.
func contextInput(r *Request, w WalletContext, vkHash, clientNonce field.Element) (binding.Input, error) {
	in := binding.Input{
		Type:            r.Type,
		VerificationKey: vkHash,
		ServerNonce:     r.ServerNonce(),
		ClientNonce:     clientNonce,
		Claims:          r.Claims,
	}
	switch r.Type {
	case binding.NoContext:
	case binding.HTTPS:
		if r.InputContext == nil {
			return binding.Input{}, common.Validationf("inputContext", "https request without input context")
		}
		if w.VerifierIdentity == "" {
			return binding.Input{}, &common.InvalidContextError{Reason: "https request needs a verifier identity"}
		}
		in.VerifierIdentity = binding.StringIdentity(w.VerifierIdentity)
		in.Action = binding.StringIdentity(r.InputContext.Action)
	case binding.ZkApp:
		if r.InputContext == nil {
			return binding.Input{}, common.Validationf("inputContext", "zk-app request without input context")
		}
		if w.Address.IsZero() {
			return binding.Input{}, &common.InvalidContextError{Reason: "zk-app request needs a verifier address"}
		}
		in.VerifierIdentity = binding.ZkAppIdentity(w.Address, w.TokenID)
		in.Action = []field.Element{r.InputContext.ZkAppAction}
	default:
		return binding.Input{}, common.Validationf("type", "unknown request type %q", r.Type)
	}
	return in, nil
}
