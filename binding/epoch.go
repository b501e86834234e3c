package binding

import (
	"math"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/zkcred/zkcred/crypto/field"
)

// Epochs bound how long a server nonce stays acceptable without storing every
// nonce handed out. Epoch 1 starts at genesis; epoch 0 is every instant before.
type Epochs struct {
	Genesis time.Time
	Period  time.Duration
	Clock   clock.Clock
}

// NewEpochs uses the real clock.
func NewEpochs(genesis time.Time, period time.Duration) *Epochs {
	return &Epochs{Genesis: genesis, Period: period, Clock: clock.NewRealClock()}
}

// Current is the epoch the clock is in.
func (e *Epochs) Current() uint64 {
	return CurrentEpoch(e.Clock.Now(), e.Period, e.Genesis)
}

// Nonce is the server nonce of the current epoch.
func (e *Epochs) Nonce() field.Element {
	return field.FromUint64(e.Current())
}

// Accept reports whether a server nonce belongs to the current epoch or to
// one of the previous `grace` epochs.
func (e *Epochs) Accept(nonce field.Element, grace uint64) bool {
	cur := e.Current()
	for i := uint64(0); i <= grace && i <= cur; i++ {
		if nonce.Equal(field.FromUint64(cur - i)) {
			return true
		}
	}
	return false
}

// CurrentEpoch returns the epoch active at now.
func CurrentEpoch(now time.Time, period time.Duration, genesis time.Time) uint64 {
	if now.Before(genesis) || period <= 0 {
		return 0
	}
	return uint64(now.Sub(genesis)/period) + 1
}

// TimeOfEpoch returns the start of an epoch, or the far future when it
// overflows.
func TimeOfEpoch(period time.Duration, genesis time.Time, epoch uint64) time.Time {
	if epoch == 0 {
		return genesis
	}
	if period <= 0 || epoch-1 > uint64(math.MaxInt64/int64(period)) {
		return time.Unix(math.MaxInt64>>1, 0)
	}
	return genesis.Add(time.Duration(epoch-1) * period)
}
