package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	clock "github.com/jonboulle/clockwork"

	"github.com/zkcred/zkcred/backend"
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/common/key"
	"github.com/zkcred/zkcred/common/log"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/presentation"
)

// Wallet verifies credentials before storing them and presents them on
// request.
type Wallet struct {
	store   Store
	backend backend.Backend
	clock   clock.Clock
	log     log.Logger
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithClock sets the clock stamping new records.
func WithClock(c clock.Clock) Option {
	return func(w *Wallet) { w.clock = c }
}

// WithLogger sets the wallet logger.
func WithLogger(l log.Logger) Option {
	return func(w *Wallet) { w.log = l }
}

// New returns a wallet over a store. The backend verifies imported
// credentials and proves presentations.
func New(s Store, b backend.Backend, opts ...Option) *Wallet {
	w := &Wallet{store: s, backend: b, clock: clock.NewRealClock(), log: log.DefaultLogger()}
	for _, o := range opts {
		o(w)
	}
	w.log = w.log.Named("wallet")
	return w
}

// Add verifies a credential and stores it.
func (w *Wallet) Add(ctx context.Context, c *credential.Stored, inputKey string) (*Record, error) {
	if err := common.CheckVersion(c.Version); err != nil {
		return nil, err
	}
	if err := credential.Verify(ctx, w.backend, c); err != nil {
		return nil, err
	}
	r := NewRecord(c, inputKey, w.clock.Now())
	if err := w.store.Put(ctx, r); err != nil {
		return nil, err
	}
	w.log.Infow("stored credential", "id", r.ID, "kind", c.Kind(), "key", inputKey)
	return r, nil
}

// Import decodes a credential payload and adds it.
func (w *Wallet) Import(ctx context.Context, payload []byte, inputKey string) (*Record, error) {
	var c credential.Stored
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("importing credential: %w", err)
	}
	return w.Add(ctx, &c, inputKey)
}

// Remove deletes a credential.
func (w *Wallet) Remove(ctx context.Context, id string) error {
	r, err := w.lookup(ctx, id)
	if err != nil {
		return err
	}
	return w.store.Delete(ctx, r.ID)
}

// Get returns a credential by id.
func (w *Wallet) Get(ctx context.Context, id string) (*Record, error) {
	return w.lookup(ctx, id)
}

func (w *Wallet) lookup(ctx context.Context, id string) (*Record, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return w.store.Get(ctx, uid)
}

// Prepare picks credentials for a request among all stored ones.
func (w *Wallet) Prepare(ctx context.Context, r *presentation.Request, wc presentation.WalletContext, opts ...presentation.Option) (*presentation.Prepared, error) {
	records, err := w.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return presentation.Prepare(ctx, w.backend, r, wc, Supplied(records), append([]presentation.Option{presentation.WithLogger(w.log)}, opts...)...)
}

// Present answers a request with the stored credentials, signing with owner.
func (w *Wallet) Present(ctx context.Context, owner *key.Pair, r *presentation.Request, wc presentation.WalletContext, opts ...presentation.Option) (*presentation.Presentation, error) {
	p, err := w.Prepare(ctx, r, wc, opts...)
	if err != nil {
		return nil, err
	}
	sig, err := presentation.Sign(owner, p)
	if err != nil {
		return nil, err
	}
	return presentation.Finalize(ctx, w.backend, r, sig, p, append([]presentation.Option{presentation.WithLogger(w.log)}, opts...)...)
}

// Matching lists the stored credentials usable for a credential spec.
func (w *Wallet) Matching(ctx context.Context, s credential.Spec) ([]*Record, error) {
	records, err := w.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, r := range records {
		if credential.MatchesSpec(s, r.Credential) {
			out = append(out, r)
		}
	}
	return out, nil
}
